package runloop

import (
	"time"

	jerrors "github.com/seznam/jobslib-go/pkg/errors"
)

// Config is the frozen run configuration, resolved once at startup
// from command line, environment, settings, and defaults (highest
// precedence first) and never mutated afterward.
type Config struct {
	// JobName identifies the job. The run loop itself does not read it;
	// the metrics "task" tag is applied by the metrics sink.
	JobName string

	// TTL is the lock's lease lifetime; the watchdog arms for the same
	// duration.
	TTL time.Duration

	// RunOnce performs a single iteration then returns.
	RunOnce bool

	// SleepInterval is the fixed gap after a run completes. Mutually
	// exclusive with a non-zero RunInterval.
	SleepInterval time.Duration

	// RunInterval is the target period between run starts; if the
	// body overruns it, the next iteration starts immediately.
	RunInterval time.Duration

	// KeepLock holds the lease during inter-iteration sleep instead of
	// releasing and re-acquiring it.
	KeepLock bool

	// ReleaseOnError releases the lease when the job body returns an
	// error. In the current field set this has no observable effect:
	// every non-SUCCEEDED-with-KeepLock outcome releases regardless
	// (see DESIGN.md's Open Question resolution); it is kept as an
	// explicit field because the CLI/env surface names it.
	ReleaseOnError bool
}

// Validate enforces the invariants placed on Config: sleep_interval
// and run_interval are mutually exclusive when both are positive; TTL
// must be in [10s, 24h].
func (c Config) Validate() error {
	if c.SleepInterval > 0 && c.RunInterval > 0 {
		return jerrors.New(jerrors.KindImproperlyConfigured,
			"sleep_interval and run_interval are mutually exclusive")
	}
	if c.TTL < 10*time.Second || c.TTL > 24*time.Hour {
		return jerrors.New(jerrors.KindImproperlyConfigured,
			"ttl must be between 10 and 86400 seconds")
	}
	return nil
}
