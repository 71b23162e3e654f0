// Package lock provides the distributed mutual-exclusion primitive the
// run loop builds on: at most one Lease may be held for a given key at
// any time across the fleet.
package lock

import (
	"context"
	"sync"
	"time"
)

// OwnerInfo is the best-effort record the current (or most recent)
// holder wrote when it acquired the lease. It is read-only information
// for logging and diagnostics, never used to make acquisition decisions.
type OwnerInfo struct {
	FQDN      string
	Timestamp time.Time
	TimeUTC   string
	TimeLocal string
}

// String renders owner info the way operators expect to see it in logs
// when acquisition fails due to contention.
func (o *OwnerInfo) String() string {
	if o == nil {
		return "unknown"
	}
	return o.FQDN + ", locked at " + o.TimeUTC + " UTC"
}

// Lease is the opaque token returned by a successful Acquire. Release is
// idempotent: a Lease remembers whether it has already been released so
// a second Release call returns success without contacting the backend.
type Lease struct {
	SessionID string
	TTL       time.Duration
	LockDelay time.Duration

	mu       sync.Mutex
	released bool
}

// markReleased returns true the first time it is called for this Lease,
// false on every subsequent call.
func (l *Lease) markReleased() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return false
	}
	l.released = true
	return true
}

// Provider is the pluggable mutual-exclusion backend the run loop
// drives. Acquire returning (nil, nil) means contention, not failure:
// the loop treats it as PENDING and retries next iteration. A non-nil
// error means a transport or protocol problem; the loop logs it and
// behaves as if the lease was not acquired.
type Provider interface {
	// Acquire attempts to obtain the exclusive lease. Returns
	// (nil, nil) on contention, a *Lease on success, or a non-nil
	// error on transport/protocol failure.
	Acquire(ctx context.Context) (*Lease, error)

	// Release gives up lease. Idempotent: releasing an already
	// released (or nil) Lease succeeds without contacting the
	// backend. Returns whether the backend confirmed release.
	Release(ctx context.Context, lease *Lease) (bool, error)

	// Refresh extends lease by one TTL. Returns whether the backend
	// confirmed the renewal.
	Refresh(ctx context.Context, lease *Lease) (bool, error)

	// OwnerInfo best-effort reads the record written by the current
	// holder. Returns (nil, nil) if no record exists or it can't be
	// parsed; a non-nil error only on transport failure.
	OwnerInfo(ctx context.Context) (*OwnerInfo, error)
}
