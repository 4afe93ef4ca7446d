package threads

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/aeolun/afternoon/pkg/api"
)

// fakeService serves an in-memory thread listing and originating posts
type fakeService struct {
	mu        sync.Mutex
	threads   []api.Thread
	listErr   error
	failPosts map[string]int // remaining failures per thread id
	calls     []string
	inFlight  int32
	maxFlight int32
	gate      chan struct{} // when set, GetMessage waits on it
}

func newFakeService(threads ...api.Thread) *fakeService {
	return &fakeService{threads: threads, failPosts: make(map[string]int)}
}

func (f *fakeService) GetActiveThreads(ctx context.Context, guildID string, opts ...api.CallOption) (*api.ThreadsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &api.ThreadsResponse{Threads: append([]api.Thread(nil), f.threads...)}, nil
}

func (f *fakeService) GetMessage(ctx context.Context, channelID, messageID string, opts ...api.CallOption) (*api.Message, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		max := atomic.LoadInt32(&f.maxFlight)
		if n <= max || atomic.CompareAndSwapInt32(&f.maxFlight, max, n) {
			break
		}
	}

	f.mu.Lock()
	gate := f.gate
	f.calls = append(f.calls, channelID)
	fail := f.failPosts[channelID]
	if fail > 0 {
		f.failPosts[channelID] = fail - 1
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if fail > 0 {
		return nil, &api.Error{StatusCode: 429, Message: "You are being rate limited."}
	}
	return &api.Message{
		ID:        messageID,
		ChannelID: channelID,
		Author:    api.Author{ID: "u" + channelID, Username: "user" + channelID},
		Content:   "first post of " + channelID,
	}, nil
}

func (f *fakeService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func stub(id, parent, lastMessage string) api.Thread {
	return api.Thread{ID: id, ParentID: parent, Name: "thread " + id, LastMessageID: lastMessage}
}

func threadIDs(threads []api.Thread) []string {
	out := make([]string, len(threads))
	for i, th := range threads {
		out[i] = th.ID
	}
	return out
}

func TestLoadThreadsFiltersAndOrders(t *testing.T) {
	svc := newFakeService(
		stub("10", "F", "100"),
		stub("11", "G", "200"),
		stub("12", "F", "50"),
	)
	e := NewEngine(svc, Config{})
	assert.Equal(t, StatusLoading, e.State().Status)

	require.NoError(t, e.LoadThreads(context.Background(), "guild", "F"))

	st := e.State()
	assert.Equal(t, StatusSuccess, st.Status)
	assert.Equal(t, []string{"10", "12"}, threadIDs(st.Threads))
}

func TestLoadThreadsNonNumericSortsLast(t *testing.T) {
	svc := newFakeService(
		stub("1", "F", ""),
		stub("2", "F", "abc"),
		stub("3", "F", "7"),
		stub("4", "F", "18446744073709551615"),
	)
	e := NewEngine(svc, Config{})

	require.NoError(t, e.LoadThreads(context.Background(), "guild", "F"))

	assert.Equal(t, []string{"4", "3", "1", "2"}, threadIDs(e.State().Threads))
}

func TestLoadThreadsFailure(t *testing.T) {
	svc := newFakeService()
	svc.listErr = &api.Error{StatusCode: 403, Message: "Missing Access"}
	e := NewEngine(svc, Config{})

	err := e.LoadThreads(context.Background(), "guild", "F")
	require.Error(t, err)

	st := e.State()
	assert.Equal(t, StatusError, st.Status)
	assert.Equal(t, "Missing Access", st.Err)

	// Only a new load leaves the error state
	svc.listErr = nil
	svc.threads = []api.Thread{stub("1", "F", "1")}
	require.NoError(t, e.Refresh(context.Background()))
	assert.Equal(t, StatusSuccess, e.State().Status)
}

func TestRefreshBeforeLoad(t *testing.T) {
	e := NewEngine(newFakeService(), Config{})
	assert.ErrorIs(t, e.Refresh(context.Background()), ErrNotLoaded)
}

func TestQueueThreadLoadIsIdempotent(t *testing.T) {
	svc := newFakeService(stub("10", "F", "100"))
	e := NewEngine(svc, Config{})
	ctx := context.Background()
	require.NoError(t, e.LoadThreads(ctx, "guild", "F"))

	assert.True(t, e.QueueThreadLoad("10"))
	assert.False(t, e.QueueThreadLoad("10"))
	assert.Equal(t, 1, e.Pending())

	assert.True(t, e.ProcessNext(ctx))
	assert.False(t, e.ProcessNext(ctx))

	// Processed ids stay claimed
	assert.False(t, e.QueueThreadLoad("10"))
	assert.Equal(t, 1, svc.callCount())
}

func TestEnrichmentPatchesSnapshot(t *testing.T) {
	svc := newFakeService(stub("10", "F", "100"), stub("12", "F", "50"))
	e := NewEngine(svc, Config{})
	ctx := context.Background()
	require.NoError(t, e.LoadThreads(ctx, "guild", "F"))

	before := e.State()
	e.QueueThreadLoad("12")
	require.True(t, e.ProcessNext(ctx))

	after := e.State()
	th, ok := after.Find("12")
	require.True(t, ok)
	assert.True(t, th.Enriched())
	assert.Equal(t, "user12", th.Author)
	assert.Equal(t, "user12", th.Username)
	assert.Equal(t, "first post of 12", th.FirstPost.Content)

	// The earlier snapshot is untouched
	old, _ := before.Find("12")
	assert.False(t, old.Enriched())

	// Order and the other thread are unchanged
	assert.Equal(t, []string{"10", "12"}, threadIDs(after.Threads))
	other, _ := after.Find("10")
	assert.False(t, other.Enriched())
}

func TestFailedEnrichmentCanBeRequeued(t *testing.T) {
	svc := newFakeService(stub("10", "F", "100"))
	svc.failPosts["10"] = 1
	e := NewEngine(svc, Config{Delay: time.Hour})
	ctx := context.Background()
	require.NoError(t, e.LoadThreads(ctx, "guild", "F"))

	require.True(t, e.QueueThreadLoad("10"))

	// A failure neither patches nor waits the delay
	start := time.Now()
	require.True(t, e.ProcessNext(ctx))
	assert.Less(t, time.Since(start), time.Second)

	th, _ := e.State().Find("10")
	assert.False(t, th.Enriched())
	assert.Equal(t, StatusSuccess, e.State().Status, "a lookup failure does not fail the list")

	assert.True(t, e.QueueThreadLoad("10"), "a failed id is released for retry")
}

func TestDelayAfterSuccess(t *testing.T) {
	svc := newFakeService(stub("10", "F", "100"))
	delay := 50 * time.Millisecond
	e := NewEngine(svc, Config{Delay: delay})
	ctx := context.Background()
	require.NoError(t, e.LoadThreads(ctx, "guild", "F"))

	e.QueueThreadLoad("10")
	start := time.Now()
	require.True(t, e.ProcessNext(ctx))
	assert.GreaterOrEqual(t, time.Since(start), delay)

	th, _ := e.State().Find("10")
	assert.True(t, th.Enriched())
}

func TestReloadDiscardsStaleEnrichment(t *testing.T) {
	svc := newFakeService(stub("10", "F", "100"))
	svc.gate = make(chan struct{})
	e := NewEngine(svc, Config{})
	ctx := context.Background()
	require.NoError(t, e.LoadThreads(ctx, "guild", "F"))

	e.QueueThreadLoad("10")
	done := make(chan bool)
	go func() { done <- e.ProcessNext(ctx) }()

	require.Eventually(t, func() bool { return svc.callCount() == 1 }, time.Second, time.Millisecond)

	// The list is reloaded while the lookup is in flight
	require.NoError(t, e.LoadThreads(ctx, "guild", "F"))
	close(svc.gate)
	require.True(t, <-done)

	th, _ := e.State().Find("10")
	assert.False(t, th.Enriched(), "a lookup from a previous load must not patch the new list")
	assert.True(t, e.QueueThreadLoad("10"), "reload resets the queued set")
}

func TestEnrichedThreadIsNotOverwritten(t *testing.T) {
	svc := newFakeService(stub("10", "F", "100"))
	e := NewEngine(svc, Config{})
	ctx := context.Background()
	require.NoError(t, e.LoadThreads(ctx, "guild", "F"))

	e.QueueThreadLoad("10")
	require.True(t, e.ProcessNext(ctx))
	first, _ := e.State().Find("10")

	// Force a duplicate response for the same id in the same generation
	e.patch(e.gen, "10", &api.Message{ID: "10", Author: api.Author{Username: "intruder"}, Content: "late"})

	again, _ := e.State().Find("10")
	assert.Equal(t, first.Username, again.Username)
	assert.Equal(t, first.FirstPost.Content, again.FirstPost.Content)
}

func TestRunDrainsInFIFOOrderOneAtATime(t *testing.T) {
	var threads []api.Thread
	for i := 1; i <= 8; i++ {
		threads = append(threads, stub(fmt.Sprint(i), "F", fmt.Sprint(i)))
	}
	svc := newFakeService(threads...)
	e := NewEngine(svc, Config{Delay: time.Millisecond})
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.LoadThreads(ctx, "guild", "F"))
	go e.Run(ctx)

	order := []string{"3", "1", "8", "2", "7", "4", "6", "5"}
	for _, id := range order {
		e.QueueThreadLoad(id)
	}

	require.Eventually(t, func() bool {
		for _, th := range e.State().Threads {
			if !th.Enriched() {
				return false
			}
		}
		return true
	}, 5*time.Second, 5*time.Millisecond)

	svc.mu.Lock()
	calls := append([]string(nil), svc.calls...)
	svc.mu.Unlock()
	assert.Equal(t, order, calls)
	assert.Equal(t, int32(1), atomic.LoadInt32(&svc.maxFlight), "lookups must never overlap")
}

func TestConcurrentProcessNextIsSingleFlight(t *testing.T) {
	svc := newFakeService(stub("1", "F", "1"), stub("2", "F", "2"))
	svc.gate = make(chan struct{})
	e := NewEngine(svc, Config{})
	ctx := context.Background()
	require.NoError(t, e.LoadThreads(ctx, "guild", "F"))
	e.QueueThreadLoad("1")
	e.QueueThreadLoad("2")

	first := make(chan bool)
	go func() { first <- e.ProcessNext(ctx) }()
	require.Eventually(t, func() bool { return svc.callCount() == 1 }, time.Second, time.Millisecond)

	assert.False(t, e.ProcessNext(ctx), "a second drainer must back off while one is processing")

	close(svc.gate)
	assert.True(t, <-first)
	assert.Equal(t, 1, e.Pending())
}

func TestSubscribeReceivesPatches(t *testing.T) {
	svc := newFakeService(stub("10", "F", "100"))
	e := NewEngine(svc, Config{})
	defer e.Close()
	ctx := context.Background()

	ch, cancel := e.Subscribe()
	defer cancel()

	require.NoError(t, e.LoadThreads(ctx, "guild", "F"))
	e.QueueThreadLoad("10")
	e.ProcessNext(ctx)

	var last State
	require.Eventually(t, func() bool {
		select {
		case last = <-ch:
		default:
		}
		th, ok := last.Find("10")
		return ok && th.Enriched()
	}, time.Second, time.Millisecond)
}

func TestCloseStopsDraining(t *testing.T) {
	svc := newFakeService(stub("10", "F", "100"))
	e := NewEngine(svc, Config{})
	ctx := context.Background()
	require.NoError(t, e.LoadThreads(ctx, "guild", "F"))

	e.QueueThreadLoad("10")
	e.Close()

	assert.False(t, e.ProcessNext(ctx))
	assert.False(t, e.QueueThreadLoad("11"))
	assert.Equal(t, 0, svc.callCount())

	// Run returns immediately on a closed engine
	finished := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestVisible(t *testing.T) {
	threads := []api.Thread{stub("1", "F", "3"), stub("2", "F", "2"), stub("3", "F", "1")}

	assert.Equal(t, []string{"1", "3"}, threadIDs(Visible(threads, map[string]bool{"2": true})))
	assert.Equal(t, []string{"1", "2", "3"}, threadIDs(Visible(threads, nil)))
}

func TestLoadThreadsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 25).Draw(t, "n")
		forums := []string{"F", "G", "H"}

		var all []api.Thread
		for i := 0; i < n; i++ {
			parent := rapid.SampledFrom(forums).Draw(t, fmt.Sprintf("parent%d", i))
			last := rapid.OneOf(
				rapid.Just(""),
				rapid.Just("junk"),
				rapid.Map(rapid.Uint64(), func(v uint64) string { return fmt.Sprint(v) }),
			).Draw(t, fmt.Sprintf("last%d", i))
			all = append(all, stub(fmt.Sprint(i), parent, last))
		}

		e := NewEngine(newFakeService(all...), Config{})
		if err := e.LoadThreads(context.Background(), "guild", "F"); err != nil {
			t.Fatalf("load failed: %v", err)
		}
		got := e.State().Threads

		want := 0
		for _, th := range all {
			if th.ParentID == "F" {
				want++
			}
		}
		if len(got) != want {
			t.Fatalf("got %d threads, want %d", len(got), want)
		}
		for _, th := range got {
			if th.ParentID != "F" {
				t.Fatalf("thread %s from forum %s leaked in", th.ID, th.ParentID)
			}
		}
		if !sort.SliceIsSorted(got, func(i, j int) bool {
			return api.ParseID(got[i].LastMessageID) > api.ParseID(got[j].LastMessageID)
		}) {
			t.Fatalf("threads not sorted by last message id: %v", threadIDs(got))
		}
	})
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "loading", StatusLoading.String())
	assert.Equal(t, "success", StatusSuccess.String())
	assert.Equal(t, "error", StatusError.String())
	assert.Equal(t, "unknown", Status(42).String())
}
