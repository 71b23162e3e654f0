// Package jobslib wires a user-supplied job into the run loop: it
// resolves configuration, builds the lock/liveness/metrics backends,
// and drives Runner.Run to completion.
package jobslib

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/consul/api"
	"go.uber.org/zap"

	"github.com/seznam/jobslib-go/clock"
	"github.com/seznam/jobslib-go/config"
	"github.com/seznam/jobslib-go/job"
	"github.com/seznam/jobslib-go/liveness"
	"github.com/seznam/jobslib-go/lock"
	"github.com/seznam/jobslib-go/metrics"
	jerrors "github.com/seznam/jobslib-go/pkg/errors"
	"github.com/seznam/jobslib-go/pkg/logger"
	"github.com/seznam/jobslib-go/runloop"
)

const checkLivenessTask = "check-liveness"

// Registry maps task identifiers to the job each one runs.
type Registry struct {
	jobs map[string]job.Job
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]job.Job)}
}

// Register adds name to the registry. Registering checkLivenessTask
// ("check-liveness") is rejected: that name is always the built-in
// liveness probe.
func (r *Registry) Register(name string, j job.Job) {
	if name == checkLivenessTask {
		panic("jobslib: \"check-liveness\" is reserved for the built-in liveness probe")
	}
	r.jobs[name] = j
}

func (r *Registry) lookup(name string) (job.Job, bool) {
	j, ok := r.jobs[name]
	return j, ok
}

// Main resolves the command line, builds the backends the resolved
// configuration calls for, and runs the selected task. It returns the
// process exit code; it never calls os.Exit itself so callers can
// still run deferred cleanup.
func Main(jobName string, registry *Registry, args []string) int {
	task, cfg, err := config.Parse(jobName, args)
	if err != nil {
		config.PrintError(jobName, err)
		return config.ExitCode(err)
	}

	loggerCfg, err := logger.ConfigFromJSON(cfg.Logging)
	if err != nil {
		config.PrintError(jobName, err)
		return jerrors.KindImproperlyConfigured.ExitCode()
	}

	log, err := logger.New(loggerCfg)
	if err != nil {
		config.PrintError(jobName, err)
		return jerrors.KindImproperlyConfigured.ExitCode()
	}
	defer log.Sync()

	fqdn, err := os.Hostname()
	if err != nil {
		fqdn = "unknown"
		log.Warn("can't determine hostname", zap.Error(err))
	}

	provider, lw, ms, err := buildBackends(cfg, fqdn, log)
	if err != nil {
		config.PrintError(jobName, err)
		return config.ExitCode(err)
	}

	ctx := context.Background()

	if task == checkLivenessTask {
		return runCheckLiveness(ctx, lw, cfg.MaxAge)
	}

	j, ok := registry.lookup(task)
	if !ok {
		err := jerrors.New(jerrors.KindImproperlyConfigured, fmt.Sprintf("unknown task %q", task))
		config.PrintError(jobName, err)
		return config.ExitCode(err)
	}

	runner := runloop.New(cfg.RunLoopConfig(), fqdn, j, provider, lw, ms, clock.New(), log)
	runErr := runner.Run(ctx)
	if runErr != nil {
		log.Error("run loop exited with error", zap.Error(runErr))
	}
	return config.ExitCode(runErr)
}

func buildBackends(cfg *config.Config, fqdn string, log *zap.Logger) (lock.Provider, liveness.Writer, metrics.Sink, error) {
	var (
		provider lock.Provider
		lw       liveness.Writer
	)

	if cfg.DisableOneInstance {
		provider = lock.NewNull()
		lw = liveness.NewNull()
	} else {
		client, err := api.NewClient(&api.Config{
			Address:    cfg.Consul.Address,
			Scheme:     cfg.Consul.Scheme,
			Datacenter: cfg.Consul.Datacenter,
			Token:      cfg.Consul.Token,
		})
		if err != nil {
			return nil, nil, nil, jerrors.Wrap(jerrors.KindImproperlyConfigured, "build consul client", err)
		}
		provider = lock.NewConsul(client, cfg.LockKey, cfg.TTL, cfg.LockDelay, fqdn, log)
		lw = liveness.NewConsul(client, cfg.LivenessKey, log)
	}

	var ms metrics.Sink
	if cfg.MetricsGatewayURL != "" {
		ms = metrics.NewPrometheusPush(cfg.MetricsGatewayURL, cfg.JobName, cfg.JobName, log)
	} else {
		ms = metrics.NewDummy(log)
	}

	return provider, lw, ms, nil
}

func runCheckLiveness(ctx context.Context, lw liveness.Writer, maxAge time.Duration) int {
	if lw.Check(ctx, maxAge) {
		return 0
	}
	return 1
}
