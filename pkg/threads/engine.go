package threads

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aeolun/afternoon/pkg/api"
	"github.com/aeolun/afternoon/pkg/metrics"
	"github.com/aeolun/afternoon/pkg/snapshot"
)

// ErrNotLoaded is returned by Refresh before any LoadThreads call
var ErrNotLoaded = errors.New("threads: refresh before load")

// Fetcher is the part of the API client the engine needs
type Fetcher interface {
	GetActiveThreads(ctx context.Context, guildID string, opts ...api.CallOption) (*api.ThreadsResponse, error)
	GetMessage(ctx context.Context, channelID, messageID string, opts ...api.CallOption) (*api.Message, error)
}

// Config controls enrichment pacing
type Config struct {
	// Delay is waited after every successful lookup before the next one
	Delay time.Duration
}

// DefaultConfig returns the default pacing (500ms between lookups)
func DefaultConfig() Config {
	return Config{Delay: 500 * time.Millisecond}
}

// Engine owns the thread list of one forum. It publishes a new State after
// every change and enriches queued threads one at a time.
type Engine struct {
	fetcher Fetcher
	cfg     Config
	logger  zerolog.Logger
	metrics *metrics.Metrics
	callOpt []api.CallOption

	mu      sync.Mutex
	state   State
	guildID string
	forumID string
	loaded  bool
	gen     uint64 // bumped by every load; older lookups are dropped

	queued     map[string]struct{} // queued or processed in this generation
	queue      []string
	processing bool
	closed     bool

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	feed snapshot.Feed[State]
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics records loads, lookups and queue depth
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithCallOptions applies API call options to every request
func WithCallOptions(opts ...api.CallOption) Option {
	return func(e *Engine) {
		e.callOpt = append(e.callOpt, opts...)
	}
}

// NewEngine creates an engine in the Loading state. Start Run in a goroutine
// to drain the enrichment queue.
func NewEngine(fetcher Fetcher, cfg Config, opts ...Option) *Engine {
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	e := &Engine{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  zerolog.Nop(),
		state:   State{Status: StatusLoading},
		queued:  make(map[string]struct{}),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LoadThreads fetches the active threads of guildID and keeps those in
// forumID, most recently active first. Enrichment tracking starts over.
// On failure the state becomes StatusError with the service's message.
func (e *Engine) LoadThreads(ctx context.Context, guildID, forumID string) error {
	e.mu.Lock()
	e.guildID = guildID
	e.forumID = forumID
	e.loaded = true
	e.gen++
	gen := e.gen
	e.queued = make(map[string]struct{})
	e.queue = nil
	e.metrics.RecordQueueDepth(0)
	// Keep showing the previous list while loading
	e.setStateLocked(State{Status: StatusLoading, Threads: e.state.Threads})
	e.mu.Unlock()

	resp, err := e.fetcher.GetActiveThreads(ctx, guildID, e.callOpt...)

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen {
		e.logger.Debug().Str("forum_id", forumID).Msg("discarding superseded thread list")
		return nil
	}

	if err != nil {
		e.metrics.RecordThreadLoadFailure()
		e.logger.Error().Err(err).Str("guild_id", guildID).Msg("failed to load threads")
		e.setStateLocked(State{Status: StatusError, Err: err.Error()})
		return err
	}

	threads := filterForum(resp.Threads, forumID)
	e.metrics.RecordThreadsLoaded(len(threads))
	e.logger.Info().
		Str("forum_id", forumID).
		Int("total", len(resp.Threads)).
		Int("in_forum", len(threads)).
		Msg("loaded threads")

	e.setStateLocked(State{Status: StatusSuccess, Threads: threads})
	return nil
}

// filterForum keeps threads of forumID, ordered by last message id descending.
// Missing or non-numeric ids count as 0. Ties keep the listing order.
func filterForum(all []api.Thread, forumID string) []api.Thread {
	threads := make([]api.Thread, 0, len(all))
	for _, th := range all {
		if th.ParentID == forumID {
			threads = append(threads, th)
		}
	}
	sort.SliceStable(threads, func(i, j int) bool {
		return api.ParseID(threads[i].LastMessageID) > api.ParseID(threads[j].LastMessageID)
	})
	return threads
}

// Refresh reloads with the ids of the last LoadThreads call
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	if !e.loaded {
		e.mu.Unlock()
		return ErrNotLoaded
	}
	guildID, forumID := e.guildID, e.forumID
	e.mu.Unlock()

	return e.LoadThreads(ctx, guildID, forumID)
}

// QueueThreadLoad asks for threadID to be enriched. Repeated calls are
// no-ops until a lookup for it fails. Reports whether it was enqueued.
func (e *Engine) QueueThreadLoad(threadID string) bool {
	e.mu.Lock()
	if e.closed || threadID == "" {
		e.mu.Unlock()
		return false
	}
	if _, ok := e.queued[threadID]; ok {
		e.mu.Unlock()
		return false
	}
	e.queued[threadID] = struct{}{}
	e.queue = append(e.queue, threadID)
	e.metrics.RecordQueueDepth(len(e.queue))
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return true
}

// Pending returns the number of threads waiting for enrichment
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Run drains the queue until ctx is done or Close is called
func (e *Engine) Run(ctx context.Context) {
	for {
		for e.ProcessNext(ctx) {
			if ctx.Err() != nil {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case <-e.wake:
		}
	}
}

// ProcessNext enriches the thread at the head of the queue. It returns false
// without doing anything when the queue is empty, the engine is closed or
// another call is already processing.
func (e *Engine) ProcessNext(ctx context.Context) bool {
	e.mu.Lock()
	if e.processing || e.closed || len(e.queue) == 0 {
		e.mu.Unlock()
		return false
	}
	e.processing = true
	id := e.queue[0]
	e.queue = e.queue[1:]
	gen := e.gen
	e.metrics.RecordQueueDepth(len(e.queue))
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.processing = false
		more := len(e.queue) > 0
		e.mu.Unlock()
		if more {
			select {
			case e.wake <- struct{}{}:
			default:
			}
		}
	}()

	// The originating post shares its id with the thread
	post, err := e.fetcher.GetMessage(ctx, id, id, e.callOpt...)
	if err != nil {
		e.metrics.RecordEnrichment(false)
		e.logger.Warn().Err(err).Str("thread_id", id).Msg("failed to load originating post")

		e.mu.Lock()
		if gen == e.gen {
			delete(e.queued, id)
		}
		e.mu.Unlock()
		return true
	}
	e.metrics.RecordEnrichment(true)

	// Rate limit backoff before the result becomes visible
	if e.cfg.Delay > 0 {
		select {
		case <-ctx.Done():
		case <-e.done:
		case <-time.After(e.cfg.Delay):
		}
	}

	e.patch(gen, id, post)
	return true
}

// patch attaches post to thread id and publishes a new snapshot.
// An already enriched thread is left alone.
func (e *Engine) patch(gen uint64, id string, post *api.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen || e.state.Status != StatusSuccess {
		e.logger.Debug().Str("thread_id", id).Msg("discarding stale enrichment")
		return
	}

	idx := -1
	for i := range e.state.Threads {
		if e.state.Threads[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 || e.state.Threads[idx].Enriched() {
		return
	}

	threads := make([]api.Thread, len(e.state.Threads))
	copy(threads, e.state.Threads)

	first := *post
	threads[idx].Author = post.Author.DisplayName()
	threads[idx].Username = post.Author.Username
	threads[idx].FirstPost = &first

	e.setStateLocked(State{Status: StatusSuccess, Threads: threads})
}

// State returns the current snapshot
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Subscribe returns a channel always holding the latest snapshot.
// Call cancel to unsubscribe.
func (e *Engine) Subscribe() (<-chan State, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feed.Subscribe(e.state)
}

// Close stops queue draining, drops pending work and closes subscriptions.
// A lookup already in flight finishes but is not waited for.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.queue = nil
		e.mu.Unlock()

		close(e.done)
		e.feed.Close()
	})
}

func (e *Engine) setStateLocked(s State) {
	e.state = s
	e.feed.Publish(s)
}
