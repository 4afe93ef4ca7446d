package messages

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeolun/afternoon/pkg/api"
	"github.com/aeolun/afternoon/pkg/metrics"
)

// fakeFetcher serves messages of one channel from memory
type fakeFetcher struct {
	mu       sync.Mutex
	messages []api.Message
	err      error
	block    chan struct{} // when set, fetches wait on it or ctx
	afters   []string
	opCalls  int
}

func (f *fakeFetcher) wait(ctx context.Context) error {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block == nil {
		return nil
	}
	select {
	case <-block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeFetcher) GetMessages(ctx context.Context, channelID string, limit int, opts ...api.CallOption) ([]api.Message, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	// Newest first, like the service
	sorted := append([]api.Message(nil), f.messages...)
	sort.Slice(sorted, func(i, j int) bool { return api.CompareIDs(sorted[i].ID, sorted[j].ID) > 0 })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (f *fakeFetcher) GetMessagesAfter(ctx context.Context, channelID string, limit int, after string, opts ...api.CallOption) ([]api.Message, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.afters = append(f.afters, after)
	if f.err != nil {
		return nil, f.err
	}
	var out []api.Message
	for _, m := range f.messages {
		if api.CompareIDs(m.ID, after) > 0 && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeFetcher) GetMessage(ctx context.Context, channelID, messageID string, opts ...api.CallOption) (*api.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opCalls++
	if f.err != nil {
		return nil, f.err
	}
	for _, m := range f.messages {
		if m.ID == messageID {
			found := m
			return &found, nil
		}
	}
	return nil, &api.Error{StatusCode: 404, Message: "Unknown Message"}
}

func (f *fakeFetcher) add(msgs ...api.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msgs...)
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func TestFetchInitialSortsAndIncludesOriginatingPost(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.add(msg(2, 1), msg(3, 1), msg(4, 2))
	store := NewStore(fetcher)

	op := msg(1)
	require.NoError(t, store.FetchInitial(context.Background(), "c1", 50, &op))

	snap := store.Snapshot()
	assert.Equal(t, "c1", snap.ChannelID)
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(snap.Messages))
	assert.Equal(t, []string{"1(0)", "2(1)", "4(2)", "3(1)"}, rows(snap.View))
	require.NotNil(t, snap.OriginatingPost)
	assert.Equal(t, "1", snap.OriginatingPost.ID)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Err)
}

func TestFetchMorePagesAfterHighestID(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.add(msg(1), msg(2))
	store := NewStore(fetcher)
	ctx := context.Background()

	require.NoError(t, store.FetchInitial(ctx, "c1", 50, nil))

	fetcher.add(msg(10, 1), msg(11, 10))
	require.NoError(t, store.FetchMore(ctx, "c1", 50))
	require.NoError(t, store.FetchMore(ctx, "c1", 50))

	assert.Equal(t, []string{"2", "11"}, fetcher.afters)
	assert.Equal(t, []string{"1", "2", "10", "11"}, ids(store.Snapshot().Messages))
}

func TestFetchMoreOnEmptySetLoadsNewestPage(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.add(msg(1), msg(2))
	store := NewStore(fetcher)

	require.NoError(t, store.FetchMore(context.Background(), "c1", 50))

	assert.Empty(t, fetcher.afters)
	assert.Equal(t, []string{"1", "2"}, ids(store.Snapshot().Messages))
}

func TestFetchMoreSkipsOriginatingPost(t *testing.T) {
	fetcher := &fakeFetcher{}
	store := NewStore(fetcher)
	ctx := context.Background()

	// The originating post is known but the page does not hold it yet
	op := msg(5)
	require.NoError(t, store.FetchInitial(ctx, "c1", 50, &op))
	require.Equal(t, []string{"5"}, ids(store.Snapshot().Messages))

	fetcher.add(msg(5), msg(6, 5))
	require.NoError(t, store.FetchMore(ctx, "c1", 50))

	assert.Equal(t, []string{"5", "6"}, ids(store.Snapshot().Messages))
}

func TestFetchFailureKeepsMessages(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.add(msg(1), msg(2))
	reg := prometheus.NewRegistry()
	store := NewStore(fetcher, WithMetrics(metrics.New(reg)))
	ctx := context.Background()

	require.NoError(t, store.FetchInitial(ctx, "c1", 50, nil))

	fetcher.setErr(errors.New("connection reset by peer"))
	err := store.FetchMore(ctx, "c1", 50)
	require.Error(t, err)

	snap := store.Snapshot()
	assert.Equal(t, "connection reset by peer", snap.Err)
	assert.Equal(t, []string{"1", "2"}, ids(snap.Messages))

	// A later success clears the error
	fetcher.setErr(nil)
	require.NoError(t, store.FetchMore(ctx, "c1", 50))
	assert.Empty(t, store.Snapshot().Err)
}

func TestFetchOriginatingPost(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.add(msg(7))
	store := NewStore(fetcher)

	op, err := store.FetchOriginatingPost(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "7", op.ID)
	assert.Equal(t, "7", store.Snapshot().OriginatingPost.ID)

	_, err = store.FetchOriginatingPost(context.Background(), "8")
	require.Error(t, err)
	assert.Equal(t, "Unknown Message", store.Snapshot().Err)
}

func TestSelect(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.add(msg(1), msg(2))
	store := NewStore(fetcher)
	require.NoError(t, store.FetchInitial(context.Background(), "c1", 50, nil))

	assert.True(t, store.Select("2"))
	assert.Equal(t, "2", store.Snapshot().Selected.ID)

	assert.False(t, store.Select("nope"))
	assert.Nil(t, store.Snapshot().Selected)
}

func TestClearResetsEverything(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.add(msg(1), msg(2))
	store := NewStore(fetcher)
	op := msg(1)
	require.NoError(t, store.FetchInitial(context.Background(), "c1", 50, &op))
	store.Select("2")

	store.Clear()

	snap := store.Snapshot()
	assert.Empty(t, snap.ChannelID)
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.View)
	assert.Nil(t, snap.Selected)
	assert.Nil(t, snap.OriginatingPost)
	assert.Empty(t, snap.Err)
}

func TestClearCancelsInFlightFetch(t *testing.T) {
	fetcher := &fakeFetcher{block: make(chan struct{})}
	fetcher.add(msg(1))
	store := NewStore(fetcher)

	errCh := make(chan error, 1)
	go func() {
		errCh <- store.FetchInitial(context.Background(), "c1", 50, nil)
	}()

	require.Eventually(t, func() bool {
		return store.Snapshot().Loading
	}, time.Second, 5*time.Millisecond)

	store.Clear()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrDiscarded)
	case <-time.After(2 * time.Second):
		t.Fatal("fetch was not cancelled by Clear")
	}

	snap := store.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Err, "a cancelled fetch must not surface an error")
	assert.False(t, snap.Loading)
}

func TestClearRacingFetchNeverLeavesOrphanMessages(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.add(msg(1), msg(2))

	for i := 0; i < 200; i++ {
		store := NewStore(fetcher)
		start := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			err := store.FetchInitial(context.Background(), "c1", 50, nil)
			if err != nil {
				assert.ErrorIs(t, err, ErrDiscarded)
			}
		}()
		go func() {
			defer wg.Done()
			<-start
			store.Clear()
		}()
		close(start)
		wg.Wait()

		snap := store.Snapshot()
		if len(snap.Messages) > 0 {
			require.Equal(t, "c1", snap.ChannelID, "messages committed after the channel was cleared")
		} else {
			require.Empty(t, snap.ChannelID)
		}
		require.False(t, snap.Loading)
	}
}

func TestOpeningAnotherChannelStartsEmpty(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.add(msg(1))
	store := NewStore(fetcher)
	ctx := context.Background()

	require.NoError(t, store.FetchInitial(ctx, "c1", 50, nil))
	require.NoError(t, store.FetchInitial(ctx, "c2", 50, nil))

	snap := store.Snapshot()
	assert.Equal(t, "c2", snap.ChannelID)
	assert.Equal(t, []string{"1"}, ids(snap.Messages))
}

func TestSubscribeSeesLatestSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.add(msg(1), msg(2))
	store := NewStore(fetcher)

	ch, cancel := store.Subscribe()
	defer cancel()

	require.NoError(t, store.FetchInitial(context.Background(), "c1", 50, nil))

	var last Snapshot
	require.Eventually(t, func() bool {
		select {
		case last = <-ch:
		default:
		}
		return len(last.Messages) == 2
	}, time.Second, 5*time.Millisecond)
}
