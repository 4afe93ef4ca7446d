// ABOUTME: Latest-value fan-out of immutable snapshots to subscribers.
// ABOUTME: Publishing never blocks; a slow subscriber only ever sees the newest value.
package snapshot

import "sync"

// Feed broadcasts values of T to any number of subscribers.
// Each subscriber channel has capacity 1 and always holds the most recent
// value that it has not yet received.
type Feed[T any] struct {
	mu     sync.Mutex
	subs   map[int]chan T
	nextID int
	closed bool
}

// Publish delivers v to every subscriber, replacing any unread older value
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	for _, ch := range f.subs {
		offer(ch, v)
	}
}

// Subscribe registers a subscriber primed with current.
// The returned func unsubscribes and closes the channel.
func (f *Feed[T]) Subscribe(current T) (<-chan T, func()) {
	ch := make(chan T, 1)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		close(ch)
		return ch, func() {}
	}
	ch <- current
	if f.subs == nil {
		f.subs = make(map[int]chan T)
	}
	id := f.nextID
	f.nextID++
	f.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if sub, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(sub)
			}
		})
	}
}

// Close closes every subscriber channel. Later publishes are dropped.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		close(ch)
		delete(f.subs, id)
	}
}

// offer sends v, dropping a stale buffered value first if needed.
// Only the publisher sends, and it holds the lock, so the second send
// can only fail if a receiver raced us, which is fine.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
