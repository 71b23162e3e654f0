// Package runloop implements the central state machine: acquire the
// lease, run the job body under a watchdog and a cooperative
// termination handler, report the outcome, and decide whether (and
// how) to sleep before the next iteration.
package runloop

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seznam/jobslib-go/clock"
	"github.com/seznam/jobslib-go/job"
	"github.com/seznam/jobslib-go/liveness"
	"github.com/seznam/jobslib-go/lock"
	"github.com/seznam/jobslib-go/metrics"
	jerrors "github.com/seznam/jobslib-go/pkg/errors"
	"github.com/seznam/jobslib-go/signals"
	"github.com/seznam/jobslib-go/watchdog"
)

// refreshPollInterval is how often the loop wakes during a kept-lock
// sleep to refresh the lease.
const refreshPollInterval = time.Second

// Runner owns one job's run loop: exactly one job class per process.
type Runner struct {
	cfg      Config
	fqdn     string
	job      job.Job
	provider lock.Provider
	liveness liveness.Writer
	metrics  metrics.Sink
	clk      clock.Clock
	logger   *zap.Logger
}

// New builds a Runner. cfg must already have passed Validate. fqdn
// identifies this host in the liveness record; it has no bearing on
// the metrics "task" tag, which is cfg.JobName.
func New(cfg Config, fqdn string, j job.Job, provider lock.Provider, lw liveness.Writer, ms metrics.Sink, clk clock.Clock, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		fqdn:     fqdn,
		job:      j,
		provider: provider,
		liveness: lw,
		metrics:  ms,
		clk:      clk,
		logger:   logger,
	}
}

// Run drives iterations until RunOnce completes one, or ctx is done,
// or an iteration reports KILLED (external termination always
// propagates, one-shot or not).
func (r *Runner) Run(ctx context.Context) error {
	for {
		err := r.iteration(ctx)

		if r.cfg.RunOnce {
			return err
		}
		if jerrors.Is(err, jerrors.KindTerminateRequested) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// iteration runs Start → Acquire → [Held|NotHeld] → [Run|Skip] →
// Report → Sleep? → End.
func (r *Runner) iteration(ctx context.Context) error {
	start := r.clk.Now()
	logger := r.logger.With(zap.String("iteration_id", uuid.NewString()))

	lease, acquireErr := r.provider.Acquire(ctx)
	if acquireErr != nil {
		logger.Error("can't acquire lock", zap.Error(acquireErr))
	}
	if lease == nil {
		r.logOwner(ctx, logger)
		r.report(ctx, start, StatusPending, false, logger)
		if !r.cfg.RunOnce {
			r.clk.Sleep(ctx, r.sleepDuration(start))
		}
		return nil
	}

	status, bodyErr := r.runBody(ctx, lease, logger)

	switch status {
	case StatusSucceeded:
		if err := r.liveness.Write(ctx, livenessRecord(r.fqdn, r.clk.Now())); err != nil {
			logger.Error("can't write liveness record", zap.Error(err))
		}
	case StatusFailed, StatusInterrupted:
		logger.Error("job iteration did not succeed",
			zap.String("status", string(status)), zap.Error(bodyErr))
	}

	r.dispose(ctx, lease, status, logger)
	r.report(ctx, start, status, status == StatusSucceeded, logger)

	// A kill from an external termination signal always propagates,
	// independent of run_once. A failed or interrupted (watchdog
	// expiry) body propagates only in one-shot mode; otherwise the
	// loop continues to the sleep decision below.
	if status == StatusKilled {
		return jerrors.Wrap(jerrors.KindTerminateRequested, "terminated during job body", bodyErr)
	}
	if r.cfg.RunOnce {
		switch status {
		case StatusInterrupted:
			return jerrors.New(jerrors.KindWatchdogExpired, "lease expired before job body finished")
		case StatusFailed:
			return jerrors.Wrap(jerrors.KindJobFailure, "job body returned an error", bodyErr)
		}
		return nil
	}

	r.sleep(ctx, start, lease, status, logger)
	return nil
}

// runBody arms the watchdog and termination handler around the job
// body and returns the resulting status together with whatever error
// the body itself raised (always nil for SUCCEEDED; for INTERRUPTED and
// KILLED it is whatever the aborted body returned, possibly nil).
func (r *Runner) runBody(parent context.Context, lease *lock.Lease, logger *zap.Logger) (Status, error) {
	var abort abortTracker
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	wd := watchdog.New(r.clk, logger)
	refresh := func() bool {
		ok, err := r.provider.Refresh(parent, lease)
		if err != nil {
			logger.Error("can't refresh lease", zap.Error(err))
			return false
		}
		return ok
	}
	onExpire := func() {
		abort.set(jerrors.KindWatchdogExpired)
		cancel()
	}
	wd.Arm(r.cfg.TTL, refresh, onExpire)

	handler := signals.Install(func() {
		abort.set(jerrors.KindTerminateRequested)
		cancel()
	})

	jobCtx := job.NewContext(ctx, wd.ExtendLock, abort.fired)
	bodyErr := r.job.Run(jobCtx)

	handler.Remove()
	wd.Disarm()

	switch abort.get() {
	case jerrors.KindWatchdogExpired:
		return StatusInterrupted, bodyErr
	case jerrors.KindTerminateRequested:
		return StatusKilled, bodyErr
	}
	if bodyErr != nil {
		return StatusFailed, bodyErr
	}
	return StatusSucceeded, nil
}

// dispose decides the lock's fate after a run. KILLED and run_once
// always release, ahead of everything else: a process that is about
// to exit must never leave a lease dangling for the next TTL. Short
// of that, only SUCCEEDED+KeepLock retains the lease; every other
// outcome releases (see Config.ReleaseOnError's doc and DESIGN.md's
// Open Question resolution).
func (r *Runner) dispose(ctx context.Context, lease *lock.Lease, status Status, logger *zap.Logger) {
	if !r.cfg.RunOnce && status == StatusSucceeded && r.cfg.KeepLock {
		if _, err := r.provider.Refresh(ctx, lease); err != nil {
			logger.Error("can't refresh lease before sleep", zap.Error(err))
		}
		return
	}
	if _, err := r.provider.Release(ctx, lease); err != nil {
		logger.Error("can't release lease", zap.Error(err))
	}
}

// report builds the iteration's metrics points and pushes them. This
// is the last observable side effect of the iteration and is
// unconditional: it runs on every branch, including PENDING.
func (r *Runner) report(ctx context.Context, start time.Time, status Status, succeeded bool, logger *zap.Logger) {
	now := r.clk.Now()
	points := []metrics.Point{
		{
			Name:  "job_duration_seconds",
			Value: now.Sub(start).Seconds(),
			Tags:  map[string]string{"status": string(status)},
			Ts:    now,
		},
	}
	if succeeded {
		points = append(points, metrics.Point{
			Name:  "last_successful_run_timestamp",
			Value: float64(now.Unix()),
			Ts:    now,
		})
	}
	if err := r.metrics.Push(ctx, points); err != nil {
		logger.Error("can't push metrics", zap.Error(err))
	}
}

// sleep implements step 7 for a held (non-pending) outcome: plain
// sleep, or a keep-lock sleep that periodically refreshes the lease
// and releases it once the sleep completes.
func (r *Runner) sleep(ctx context.Context, start time.Time, lease *lock.Lease, status Status, logger *zap.Logger) {
	duration := r.sleepDuration(start)

	if status != StatusSucceeded || !r.cfg.KeepLock {
		r.clk.Sleep(ctx, duration)
		return
	}

	deadline := r.clk.Now().Add(duration)
	for {
		remaining := deadline.Sub(r.clk.Now())
		if remaining <= 0 {
			break
		}
		step := remaining
		if step > refreshPollInterval {
			step = refreshPollInterval
		}
		if !r.clk.Sleep(ctx, step) {
			break
		}
		if _, err := r.provider.Refresh(ctx, lease); err != nil {
			logger.Error("can't refresh lease during sleep", zap.Error(err))
		}
	}

	if _, err := r.provider.Release(ctx, lease); err != nil {
		logger.Error("can't release lease after sleep", zap.Error(err))
	}
}

// sleepDuration computes the gap before the next Start: the
// configured fixed interval, or the remainder of a target run
// interval (never negative, so an overrun body starts the next
// iteration immediately).
func (r *Runner) sleepDuration(start time.Time) time.Duration {
	if r.cfg.SleepInterval > 0 {
		return r.cfg.SleepInterval
	}
	if r.cfg.RunInterval > 0 {
		remaining := r.cfg.RunInterval - r.clk.Now().Sub(start)
		if remaining < 0 {
			return 0
		}
		return remaining
	}
	return 0
}

func (r *Runner) logOwner(ctx context.Context, logger *zap.Logger) {
	info, err := r.provider.OwnerInfo(ctx)
	if err != nil {
		logger.Debug("can't read lock owner info", zap.Error(err))
		return
	}
	if info != nil {
		logger.Info("lock held by another process", zap.String("owner", info.String()))
	}
}

func livenessRecord(fqdn string, t time.Time) liveness.Record {
	return liveness.Record{
		FQDN:      fqdn,
		Timestamp: t.Unix(),
		TimeUTC:   t.UTC(),
		TimeLocal: t.Local(),
	}
}
