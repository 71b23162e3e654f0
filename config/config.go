// Package config resolves the frozen run configuration from command
// line flags, environment variables, an optional YAML settings file,
// and defaults, in that order of precedence.
package config

import (
	"time"

	jerrors "github.com/seznam/jobslib-go/pkg/errors"
	"github.com/seznam/jobslib-go/runloop"
)

const (
	oneDaySeconds    = 60 * 60 * 24
	defaultTTL       = oneDaySeconds * time.Second
	defaultLockDelay = time.Second
)

// ConsulConfig addresses the Consul agent backing the lock and
// liveness backends.
type ConsulConfig struct {
	Address    string
	Scheme     string
	Datacenter string
	Token      string
}

// Config is the fully resolved, frozen configuration a job runs with.
type Config struct {
	JobName string

	DisableOneInstance bool
	LockKey            string
	TTL                time.Duration
	LockDelay          time.Duration

	LivenessKey string

	MetricsGatewayURL string

	// Logging is the raw JOBSLIB_LOGGING JSON object (see
	// logger.ConfigFromJSON); empty means the production default.
	Logging string

	Consul ConsulConfig

	RunOnce        bool
	SleepInterval  time.Duration
	RunInterval    time.Duration
	KeepLock       bool
	ReleaseOnError bool

	// MaxAge is only meaningful for the built-in check-liveness task.
	MaxAge time.Duration
}

// RunLoopConfig projects the subset of Config the run loop itself
// needs into a runloop.Config.
func (c *Config) RunLoopConfig() runloop.Config {
	return runloop.Config{
		JobName:        c.JobName,
		TTL:            c.TTL,
		RunOnce:        c.RunOnce,
		SleepInterval:  c.SleepInterval,
		RunInterval:    c.RunInterval,
		KeepLock:       c.KeepLock,
		ReleaseOnError: c.ReleaseOnError,
	}
}

// Validate checks the lock and run loop invariants once at
// construction time rather than on first use: ttl in [10, 86400]s,
// lock_delay in [0, 60]s, and sleep_interval/run_interval mutual
// exclusion (delegated to runloop.Config.Validate).
func (c *Config) Validate() error {
	if c.TTL < 10*time.Second || c.TTL > oneDaySeconds*time.Second {
		return jerrors.New(jerrors.KindImproperlyConfigured,
			"ttl must be between 10 and 86400 seconds")
	}
	if c.LockDelay < 0 || c.LockDelay > 60*time.Second {
		return jerrors.New(jerrors.KindImproperlyConfigured,
			"lock_delay must be between 0 and 60 seconds")
	}
	if err := c.RunLoopConfig().Validate(); err != nil {
		return err
	}
	return nil
}

func defaults(jobName string) Config {
	return Config{
		JobName:     jobName,
		LockKey:     "jobs/" + jobName + "/lock",
		TTL:         defaultTTL,
		LockDelay:   defaultLockDelay,
		LivenessKey: "jobs/" + jobName + "/liveness",
		Consul: ConsulConfig{
			Address: "127.0.0.1:8500",
			Scheme:  "http",
		},
	}
}
