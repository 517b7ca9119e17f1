// Package clock lets plugins read the time and schedule callbacks through an
// interface so tests can drive time by hand.
package clock

import (
	"sync"
	"time"
)

// Clock is the subset of the time package plugins use.
type Clock interface {
	Now() time.Time

	// AfterFunc calls f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc callback.
type Timer interface {
	// Stop cancels the callback and reports whether it was still pending.
	Stop() bool
}

// Real is the wall clock.
type Real struct{}

// NewReal returns the wall clock.
func NewReal() Real {
	return Real{}
}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Mock is a Clock that only moves when Advance is called.
type Mock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*mockTimer
}

type mockTimer struct {
	clock    *Mock
	deadline time.Time
	f        func()
	fired    bool
	stopped  bool
}

// NewMock returns a Mock set to start.
func NewMock(start time.Time) *Mock {
	return &Mock{now: start}
}

func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Mock) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &mockTimer{clock: m, deadline: m.now.Add(d), f: f}
	m.pending = append(m.pending, t)
	return t
}

// Advance moves the clock forward by d and runs every callback that came due,
// synchronously and in registration order.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)

	var due, rest []*mockTimer
	for _, t := range m.pending {
		switch {
		case t.stopped:
		case !t.deadline.After(m.now):
			t.fired = true
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	m.pending = rest
	m.mu.Unlock()

	// Callbacks may use the clock, so they run without the lock.
	for _, t := range due {
		t.f()
	}
}

// Pending returns the number of callbacks that have not fired or been stopped.
func (m *Mock) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.pending {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (t *mockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}
