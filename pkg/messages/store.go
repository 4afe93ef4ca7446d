package messages

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aeolun/afternoon/pkg/api"
	"github.com/aeolun/afternoon/pkg/metrics"
	"github.com/aeolun/afternoon/pkg/snapshot"
)

// ErrDiscarded is returned by a fetch whose result arrived after Clear
var ErrDiscarded = errors.New("messages: fetch discarded after clear")

// Fetcher is the part of the API client the store needs
type Fetcher interface {
	GetMessages(ctx context.Context, channelID string, limit int, opts ...api.CallOption) ([]api.Message, error)
	GetMessagesAfter(ctx context.Context, channelID string, limit int, after string, opts ...api.CallOption) ([]api.Message, error)
	GetMessage(ctx context.Context, channelID, messageID string, opts ...api.CallOption) (*api.Message, error)
}

// Snapshot is an immutable view of the store. Slices must not be modified.
type Snapshot struct {
	ChannelID       string
	Messages        []api.Message // ascending by timestamp
	View            []Entry
	Selected        *api.Message
	OriginatingPost *api.Message
	Loading         bool
	Err             string
}

// Store accumulates the messages of the open channel.
// Every change publishes a new Snapshot.
type Store struct {
	fetcher Fetcher
	logger  zerolog.Logger
	metrics *metrics.Metrics
	callOpt []api.CallOption

	mu        sync.Mutex
	channelID string
	messages  []api.Message
	selected  *api.Message
	op        *api.Message
	err       string
	inflight  int
	snap      Snapshot

	// gen is bumped by Clear; results of an older generation are dropped
	gen       uint64
	genCtx    context.Context
	genCancel context.CancelFunc

	feed snapshot.Feed[Snapshot]
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithLogger sets the store logger
func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithMetrics records merges and fetch failures
func WithMetrics(m *metrics.Metrics) StoreOption {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithCallOptions applies API call options (e.g. a user token) to every fetch
func WithCallOptions(opts ...api.CallOption) StoreOption {
	return func(s *Store) {
		s.callOpt = append(s.callOpt, opts...)
	}
}

// NewStore creates an empty store
func NewStore(fetcher Fetcher, opts ...StoreOption) *Store {
	s := &Store{
		fetcher: fetcher,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.genCtx, s.genCancel = context.WithCancel(context.Background())
	s.snap = s.buildSnapshot()
	return s
}

// FetchInitial loads the newest page of a channel and merges it, together
// with the originating post when given, into the accumulated set.
// Opening a different channel starts from an empty set.
func (s *Store) FetchInitial(ctx context.Context, channelID string, limit int, op *api.Message) error {
	s.mu.Lock()
	if s.channelID != channelID {
		s.resetLocked()
		s.channelID = channelID
	}
	if op != nil {
		clone := *op
		s.op = &clone
	} else if s.op != nil {
		clone := *s.op
		op = &clone
	}
	ctx, gen, done := s.beginLocked(ctx)
	s.mu.Unlock()
	defer done()

	fetched, err := s.fetcher.GetMessages(ctx, channelID, limit, s.callOpt...)
	if err != nil {
		return s.fail(gen, "initial", err)
	}

	return s.commit(gen, func(existing []api.Message) []api.Message {
		return Merge(existing, fetched, op)
	})
}

// FetchMore loads messages newer than the highest accumulated id and appends
// the ones not seen yet. With nothing accumulated it loads the newest page.
func (s *Store) FetchMore(ctx context.Context, channelID string, limit int) error {
	s.mu.Lock()
	if s.channelID != channelID {
		s.resetLocked()
		s.channelID = channelID
	}
	ids := make([]string, len(s.messages))
	for i, msg := range s.messages {
		ids[i] = msg.ID
	}
	var opID string
	if s.op != nil {
		opID = s.op.ID
	}
	ctx, gen, done := s.beginLocked(ctx)
	s.mu.Unlock()
	defer done()

	var (
		fetched []api.Message
		err     error
	)
	if after := api.MaxID(ids...); after != "" {
		fetched, err = s.fetcher.GetMessagesAfter(ctx, channelID, limit, after, s.callOpt...)
	} else {
		fetched, err = s.fetcher.GetMessages(ctx, channelID, limit, s.callOpt...)
	}
	if err != nil {
		return s.fail(gen, "more", err)
	}

	return s.commit(gen, func(existing []api.Message) []api.Message {
		return Append(existing, fetched, opID)
	})
}

// FetchOriginatingPost loads the first post of a thread channel, whose id is
// the channel id, and remembers it for later merges
func (s *Store) FetchOriginatingPost(ctx context.Context, channelID string) (*api.Message, error) {
	s.mu.Lock()
	ctx, gen, done := s.beginLocked(ctx)
	s.mu.Unlock()
	defer done()

	msg, err := s.fetcher.GetMessage(ctx, channelID, channelID, s.callOpt...)
	if err != nil {
		return nil, s.fail(gen, "op", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return nil, ErrDiscarded
	}
	s.op = msg
	s.publishLocked()
	clone := *msg
	return &clone, nil
}

// Clear forgets the channel: messages, selection, originating post and
// error. In-flight fetches are cancelled and their results dropped.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.publishLocked()
}

// Select marks the message with id as selected. An unknown or empty id
// clears the selection and returns false.
func (s *Store) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = nil
	for i := range s.messages {
		if s.messages[i].ID == id {
			msg := s.messages[i]
			s.selected = &msg
			break
		}
	}
	s.publishLocked()
	return s.selected != nil
}

// Snapshot returns the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe returns a channel always holding the latest snapshot.
// Call cancel to unsubscribe.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feed.Subscribe(s.snap)
}

// Close cancels in-flight fetches and closes all subscriptions
func (s *Store) Close() {
	s.mu.Lock()
	s.genCancel()
	s.mu.Unlock()
	s.feed.Close()
}

// beginLocked registers an in-flight fetch of the current generation; s.mu
// must be held. The returned context is cancelled by Clear as well as by the
// caller. The returned func takes s.mu itself.
func (s *Store) beginLocked(ctx context.Context) (context.Context, uint64, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.genCtx, cancel)

	gen := s.gen
	s.inflight++
	s.publishLocked()

	return ctx, gen, func() {
		stop()
		cancel()

		s.mu.Lock()
		defer s.mu.Unlock()
		if gen == s.gen {
			s.inflight--
			s.publishLocked()
		}
	}
}

// commit applies merge to the accumulated set, re-sorts it and publishes
func (s *Store) commit(gen uint64, merge func(existing []api.Message) []api.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return ErrDiscarded
	}

	before := len(s.messages)
	s.messages = SortByTimestamp(merge(s.messages))
	s.err = ""
	s.metrics.RecordMerge(len(s.messages)-before, len(s.messages))

	s.logger.Debug().
		Str("channel_id", s.channelID).
		Int("added", len(s.messages)-before).
		Int("total", len(s.messages)).
		Msg("merged messages")

	s.publishLocked()
	return nil
}

// fail records a fetch error unless the fetch belongs to a cleared generation
func (s *Store) fail(gen uint64, kind string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return ErrDiscarded
	}

	s.err = err.Error()
	s.metrics.RecordMessageFetchFailure(kind)
	s.logger.Error().Err(err).
		Str("channel_id", s.channelID).
		Str("kind", kind).
		Msg("failed to fetch messages")

	s.publishLocked()
	return err
}

// resetLocked empties the store and starts a new generation
func (s *Store) resetLocked() {
	s.genCancel()
	s.gen++
	s.genCtx, s.genCancel = context.WithCancel(context.Background())

	s.channelID = ""
	s.messages = nil
	s.selected = nil
	s.op = nil
	s.err = ""
	s.inflight = 0
}

func (s *Store) publishLocked() {
	s.snap = s.buildSnapshot()
	s.feed.Publish(s.snap)
}

func (s *Store) buildSnapshot() Snapshot {
	msgs := make([]api.Message, len(s.messages))
	copy(msgs, s.messages)

	snap := Snapshot{
		ChannelID: s.channelID,
		Messages:  msgs,
		View:      BuildThreadView(msgs),
		Loading:   s.inflight > 0,
		Err:       s.err,
	}
	if s.selected != nil {
		sel := *s.selected
		snap.Selected = &sel
	}
	if s.op != nil {
		op := *s.op
		snap.OriginatingPost = &op
	}
	return snap
}
