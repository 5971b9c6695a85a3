// Package clock abstracts wall time and scheduled callbacks so that every
// timer-driven state transition can be driven deterministically in tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the
	// callback already fired or the timer was already stopped.
	Stop() bool
}

// Clock is the time source used by the registry and the orchestrator.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Real is the Clock backed by package time.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Fake is a manually advanced Clock. Callbacks fire synchronously on the
// goroutine calling Advance, ordered by deadline and then by scheduling order.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	pending []*fakeTimer
}

type fakeTimer struct {
	clock    *Fake
	deadline time.Time
	seq      uint64
	fn       func()
	done     bool
}

// NewFake creates a Fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d < 0 {
		d = 0
	}
	f.seq++
	t := &fakeTimer{clock: f, deadline: f.now.Add(d), seq: f.seq, fn: fn}
	f.pending = append(f.pending, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	t.clock.removeLocked(t)
	return true
}

func (f *Fake) removeLocked(t *fakeTimer) {
	for i, p := range f.pending {
		if p == t {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return
		}
	}
}

// Advance moves the clock forward by d, firing every callback whose deadline
// falls inside the window. Callbacks scheduled by fired callbacks are honoured
// if their deadline is also inside the window.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		next := f.nextDueLocked(target)
		if next == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		next.done = true
		f.removeLocked(next)
		if next.deadline.After(f.now) {
			f.now = next.deadline
		}
		fn := next.fn
		f.mu.Unlock()

		fn()
	}
}

func (f *Fake) nextDueLocked(target time.Time) *fakeTimer {
	if len(f.pending) == 0 {
		return nil
	}
	sort.SliceStable(f.pending, func(i, j int) bool {
		a, b := f.pending[i], f.pending[j]
		if !a.deadline.Equal(b.deadline) {
			return a.deadline.Before(b.deadline)
		}
		return a.seq < b.seq
	})
	if f.pending[0].deadline.After(target) {
		return nil
	}
	return f.pending[0]
}

// Pending returns the number of scheduled callbacks that have not fired.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}
