// Package clock provides the monotonic time and timer primitives the
// run loop and watchdog build on. Tests substitute Fake so the
// scheduling logic can be exercised without real sleeps.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time so the run loop can be driven deterministically
// in tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks for d or until ctx is done, whichever comes first.
	// It returns true if the sleep completed in full, false if it was
	// cancelled by ctx.
	Sleep(ctx context.Context, d time.Duration) bool

	// NewTimer returns a one-shot timer firing after d. Callers must
	// call Stop when done with it.
	NewTimer(d time.Duration) Timer
}

// Timer is a one-shot, resettable alarm. It is the primitive the
// watchdog uses to arm and re-arm the TTL deadline.
type Timer interface {
	// C delivers the fire time when the timer expires.
	C() <-chan time.Time
	// Reset rearms the timer for d from now. It must only be called
	// after the channel has been drained or the timer has been
	// stopped, matching the contract of time.Timer.Reset.
	Reset(d time.Duration) bool
	// Stop disarms the timer. It returns false if the timer had
	// already fired or been stopped.
	Stop() bool
}

// Real is the production Clock, backed by the time package.
type Real struct{}

// New returns the production Clock.
func New() Clock { return Real{} }

func (Real) Now() time.Time { return time.Now() }

func (Real) Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (Real) NewTimer(d time.Duration) Timer {
	return &realTimer{t: time.NewTimer(d)}
}

type realTimer struct {
	t *time.Timer
}

func (r *realTimer) C() <-chan time.Time       { return r.t.C }
func (r *realTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }
func (r *realTimer) Stop() bool                 { return r.t.Stop() }

// Fake is a deterministic Clock for tests: Now is frozen until Advance
// is called, Sleep returns as soon as enough time has been advanced or
// ctx is cancelled, and timers fire when Advance crosses their
// deadline.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
	timers  []*fakeTimer
}

// NewFake returns a Fake clock starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

type fakeWaiter struct {
	deadline time.Time
	done     chan struct{}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	f.mu.Lock()
	w := &fakeWaiter{deadline: f.now.Add(d), done: make(chan struct{})}
	f.waiters = append(f.waiters, w)
	f.mu.Unlock()

	select {
	case <-w.done:
		return true
	case <-ctx.Done():
		return false
	}
}

func (f *Fake) NewTimer(d time.Duration) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{clock: f, deadline: f.now.Add(d), ch: make(chan time.Time, 1)}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves the fake clock forward by d, waking any sleepers and
// firing any timers whose deadline is now in the past.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now

	remaining := f.waiters[:0]
	for _, w := range f.waiters {
		if !now.Before(w.deadline) {
			close(w.done)
		} else {
			remaining = append(remaining, w)
		}
	}
	f.waiters = remaining

	for _, t := range f.timers {
		t.maybeFire(now)
	}
	f.mu.Unlock()
}

type fakeTimer struct {
	clock    *Fake
	deadline time.Time
	ch       chan time.Time
	stopped  bool
	fired    bool
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func (t *fakeTimer) Reset(d time.Duration) bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = false
	t.fired = false
	t.deadline = t.clock.now.Add(d)
	return wasActive
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

// maybeFire must be called with clock.mu held.
func (t *fakeTimer) maybeFire(now time.Time) {
	if t.stopped || t.fired {
		return
	}
	if !now.Before(t.deadline) {
		t.fired = true
		select {
		case t.ch <- now:
		default:
		}
	}
}
