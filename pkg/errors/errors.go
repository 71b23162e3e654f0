// Package errors provides the run loop's error taxonomy: a small set
// of Kinds the run loop switches on to decide job status and exit
// code, each wrapping the underlying cause the way a plain %w would,
// but carrying enough structure that runloop never has to string-match
// an error message.
package errors

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of error kinds the run loop reacts to.
type Kind string

const (
	// KindImproperlyConfigured is fatal at startup; exit code 2.
	KindImproperlyConfigured Kind = "IMPROPERLY_CONFIGURED"
	// KindTransport comes from the lock, liveness or metrics backend.
	// For the lock it degrades Acquire to "not held"; for liveness and
	// metrics it is logged and swallowed.
	KindTransport Kind = "TRANSPORT_ERROR"
	// KindProtocol is an unexpected response from a backend, distinct
	// from a transport failure so callers can tell "unreachable" from
	// "reachable but broken" apart in logs.
	KindProtocol Kind = "PROTOCOL_ERROR"
	// KindWatchdogExpired means the TTL timer fired before the job
	// body finished or extended its lease.
	KindWatchdogExpired Kind = "WATCHDOG_EXPIRED"
	// KindTerminateRequested means the process received a termination
	// signal while the job body was running.
	KindTerminateRequested Kind = "TERMINATE_REQUESTED"
	// KindJobFailure wraps any error the job body itself returned.
	KindJobFailure Kind = "JOB_FAILURE"
)

// ExitCode returns the process exit code associated with a Kind when
// it terminates a one-shot run.
func (k Kind) ExitCode() int {
	switch k {
	case KindImproperlyConfigured:
		return 2
	default:
		return 1
	}
}

// Error is the single error type used across jobslib-go. Err, when
// set, is the underlying cause and participates in errors.Is/As via
// Unwrap.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given Kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given Kind wrapping err.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is reports whether err is a jobslib Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err is not an Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
