package runloop

import (
	"sync"

	jerrors "github.com/seznam/jobslib-go/pkg/errors"
)

// abortTracker records the highest-priority cancellation source that
// has fired this iteration. Watchdog expiry outranks termination
// requests, and both outrank "no abort at all".
type abortTracker struct {
	mu   sync.Mutex
	kind jerrors.Kind
}

func priority(k jerrors.Kind) int {
	switch k {
	case jerrors.KindWatchdogExpired:
		return 2
	case jerrors.KindTerminateRequested:
		return 1
	default:
		return 0
	}
}

// set records kind if it outranks whatever was previously recorded.
func (a *abortTracker) set(kind jerrors.Kind) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if priority(kind) > priority(a.kind) {
		a.kind = kind
	}
}

// get returns the current highest-priority kind, or "" if none fired.
func (a *abortTracker) get() jerrors.Kind {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.kind
}

func (a *abortTracker) fired() bool {
	return a.get() != ""
}

func (a *abortTracker) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.kind = ""
}
