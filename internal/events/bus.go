package events

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

type subscription struct {
	id uint64
	fn Listener
}

// Bus delivers every published event to all listeners in subscription order.
// A panicking listener is recovered and logged; delivery to the others
// continues and the publisher never observes the failure.
type Bus struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners []subscription

	published atomic.Int64
	failures  atomic.Int64

	log zerolog.Logger
}

func NewBus(log zerolog.Logger) *Bus {
	return &Bus{log: log}
}

// Subscribe registers fn and returns a func that removes it. The returned
// func is idempotent.
func (b *Bus) Subscribe(fn Listener) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.listeners {
		if sub.id == id {
			// Copy on write: in-flight Publish calls keep their snapshot.
			next := make([]subscription, 0, len(b.listeners)-1)
			next = append(next, b.listeners[:i]...)
			next = append(next, b.listeners[i+1:]...)
			b.listeners = next
			return
		}
	}
}

// Publish delivers ev synchronously. Listeners added or removed during
// delivery take effect from the next Publish.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	snapshot := b.listeners
	b.mu.RUnlock()

	b.published.Add(1)
	for _, sub := range snapshot {
		b.deliver(sub, ev)
	}
}

func (b *Bus) deliver(sub subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.failures.Add(1)
			b.log.Error().
				Str("event", string(ev.Type)).
				Uint64("listener", sub.id).
				Str("panic", fmt.Sprint(r)).
				Msg("event listener failed")
		}
	}()
	sub.fn(ev)
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Published returns the number of Publish calls.
func (b *Bus) Published() int64 { return b.published.Load() }

// Failures returns the number of recovered listener panics.
func (b *Bus) Failures() int64 { return b.failures.Load() }
