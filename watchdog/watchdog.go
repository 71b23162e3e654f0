// Package watchdog guarantees the job body cannot keep running past
// the lock's TTL: a one-shot timer is armed on acquisition and, absent
// a coalesced extend request, fires an abort callback.
package watchdog

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/seznam/jobslib-go/clock"
)

// Watchdog arms a single TTL timer per lease. ExtendLock only sets a
// flag; the actual renewal call happens inside the timer goroutine so
// the job body's call to ExtendLock never blocks on I/O.
type Watchdog struct {
	clk    clock.Clock
	logger *zap.Logger

	mu     sync.Mutex
	armed  bool
	timer  clock.Timer
	stopCh chan struct{}
	wg     sync.WaitGroup
	extend atomic.Bool
}

// New returns a disarmed Watchdog.
func New(clk clock.Clock, logger *zap.Logger) *Watchdog {
	return &Watchdog{clk: clk, logger: logger}
}

// Arm starts the TTL timer. If it fires and ExtendLock was called
// since the last fire, refresh is invoked; on success the timer is
// re-armed for another ttl. Otherwise onExpire is called exactly once
// and the watchdog disarms itself. refresh and onExpire run on the
// watchdog's own goroutine, never concurrently with each other.
func (w *Watchdog) Arm(ttl time.Duration, refresh func() bool, onExpire func()) {
	w.mu.Lock()
	if w.armed {
		w.mu.Unlock()
		panic("watchdog: Arm called while already armed")
	}
	w.extend.Store(false)
	w.timer = w.clk.NewTimer(ttl)
	w.stopCh = make(chan struct{})
	w.armed = true
	stopCh := w.stopCh
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ttl, refresh, onExpire, stopCh)
}

func (w *Watchdog) run(ttl time.Duration, refresh func() bool, onExpire func(), stopCh chan struct{}) {
	defer w.wg.Done()
	for {
		select {
		case <-stopCh:
			return
		case <-w.timer.C():
			if w.extend.Swap(false) && refresh() {
				w.mu.Lock()
				if !w.armed {
					w.mu.Unlock()
					return
				}
				w.timer.Reset(ttl)
				w.mu.Unlock()
				continue
			}

			w.mu.Lock()
			w.armed = false
			w.mu.Unlock()
			onExpire()
			return
		}
	}
}

// ExtendLock requests that the next timer fire renew the lease instead
// of aborting. Multiple calls before the next fire coalesce into a
// single renewal.
func (w *Watchdog) ExtendLock() {
	w.extend.Store(true)
}

// Disarm stops the timer and waits for any in-flight callback to
// finish. It is a no-op if the watchdog already fired or was never
// armed. Must be called before Release returns.
func (w *Watchdog) Disarm() {
	w.mu.Lock()
	if !w.armed {
		w.mu.Unlock()
		return
	}
	w.armed = false
	w.timer.Stop()
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
}

// Armed reports whether the watchdog currently has a live timer.
func (w *Watchdog) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}
