// Package liveness advertises the last successful completion of a
// job, independent of whether the lock is currently held.
package liveness

import (
	"context"
	"time"
)

// Record is the liveness payload, overwritten on every successful run
// completion. There is no history: Read always returns the latest.
type Record struct {
	FQDN      string    `json:"fqdn"`
	Timestamp int64     `json:"timestamp"`
	TimeUTC   time.Time `json:"time_utc"`
	TimeLocal time.Time `json:"time_local"`
}

// Writer is the pluggable liveness backend. Write failures are
// best-effort: the caller logs and swallows them, never changing job
// status over a liveness I/O failure.
type Writer interface {
	// Write serializes state under the configured key.
	Write(ctx context.Context, state Record) error

	// Read returns the stored record, or an error if none exists or
	// it is unreadable.
	Read(ctx context.Context) (Record, error)

	// Check reports whether the stored record's timestamp is no older
	// than maxAge. A read failure counts as not alive.
	Check(ctx context.Context, maxAge time.Duration) bool
}
