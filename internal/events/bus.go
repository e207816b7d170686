// Package events fans request lifecycle events out to in-process
// subscribers such as the websocket stream.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/flemzord/hlbroker/internal/approval"
)

// DefaultBuffer is the subscriber channel size used when none is given.
const DefaultBuffer = 64

// Bus is a non-blocking publish/subscribe hub. A subscriber that cannot keep
// up loses events rather than slowing publishers down.
type Bus struct {
	mu      sync.RWMutex
	nextID  uint64
	subs    map[uint64]chan approval.Event
	dropped atomic.Int64
	closed  bool
}

var _ approval.Observer = (*Bus)(nil)

// New returns an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[uint64]chan approval.Event)}
}

// Publish delivers e to every subscriber with room in its buffer.
func (b *Bus) Publish(e approval.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Observe implements approval.Observer.
func (b *Bus) Observe(e approval.Event) { b.Publish(e) }

// Subscribe registers a subscriber. The returned cancel func unsubscribes
// and closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe(buffer int) (<-chan approval.Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan approval.Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Later subscriptions receive a
// closed channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
