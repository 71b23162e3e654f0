package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	jerrors "github.com/seznam/jobslib-go/pkg/errors"
)

// envPrefix matches JOBSLIB_SETTINGS_MODULE, JOBSLIB_RUN_ONCE, and the
// rest of the original jobslib environment variable surface.
const envPrefix = "JOBSLIB"

// Parse resolves the command line into a task identifier and a frozen
// Config, applying CLI > env > settings file > default precedence.
// jobName seeds the default lock/liveness keys and the metrics "task"
// tag; it is overridden by nothing, since unlike every other field it
// identifies the binary itself, not a tunable.
func Parse(jobName string, args []string) (task string, cfg *Config, err error) {
	fs := pflag.NewFlagSet(jobName, pflag.ContinueOnError)
	fs.Usage = func() {}

	fs.StringP("settings", "s", "", "path to a YAML settings file")
	fs.Bool("disable-one-instance", false, "run without the distributed lock")
	fs.Bool("run-once", false, "perform a single iteration and exit")
	fs.Duration("sleep-interval", 0, "fixed delay between iterations")
	fs.Duration("run-interval", 0, "target period between iteration starts")
	fs.Bool("keep-lock", false, "hold the lease during inter-iteration sleep")
	fs.Bool("release-on-error", false, "release the lease when the job body errors")
	fs.Duration("max-age", 0, "maximum liveness record age accepted by check-liveness")

	if parseErr := fs.Parse(args); parseErr != nil {
		return "", nil, jerrors.Wrap(jerrors.KindImproperlyConfigured, "parse command line", parseErr)
	}

	positional := fs.Args()
	if len(positional) < 1 {
		return "", nil, jerrors.New(jerrors.KindImproperlyConfigured, "missing task identifier")
	}
	task = positional[0]

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setViperDefaults(v, defaults(jobName))

	if err := v.BindPFlag("settings_module", fs.Lookup("settings")); err != nil {
		return "", nil, jerrors.Wrap(jerrors.KindImproperlyConfigured, "bind settings flag", err)
	}
	if err := v.BindPFlag("disable_one_instance", fs.Lookup("disable-one-instance")); err != nil {
		return "", nil, jerrors.Wrap(jerrors.KindImproperlyConfigured, "bind disable-one-instance flag", err)
	}
	if err := v.BindPFlag("run_once", fs.Lookup("run-once")); err != nil {
		return "", nil, jerrors.Wrap(jerrors.KindImproperlyConfigured, "bind run-once flag", err)
	}
	if err := v.BindPFlag("sleep_interval", fs.Lookup("sleep-interval")); err != nil {
		return "", nil, jerrors.Wrap(jerrors.KindImproperlyConfigured, "bind sleep-interval flag", err)
	}
	if err := v.BindPFlag("run_interval", fs.Lookup("run-interval")); err != nil {
		return "", nil, jerrors.Wrap(jerrors.KindImproperlyConfigured, "bind run-interval flag", err)
	}
	if err := v.BindPFlag("keep_lock", fs.Lookup("keep-lock")); err != nil {
		return "", nil, jerrors.Wrap(jerrors.KindImproperlyConfigured, "bind keep-lock flag", err)
	}
	if err := v.BindPFlag("release_on_error", fs.Lookup("release-on-error")); err != nil {
		return "", nil, jerrors.Wrap(jerrors.KindImproperlyConfigured, "bind release-on-error flag", err)
	}
	if err := v.BindPFlag("max_age", fs.Lookup("max-age")); err != nil {
		return "", nil, jerrors.Wrap(jerrors.KindImproperlyConfigured, "bind max-age flag", err)
	}

	if resolvedSettings := v.GetString("settings_module"); resolvedSettings != "" {
		v.SetConfigFile(resolvedSettings)
		v.SetConfigType("yaml")
		if readErr := v.ReadInConfig(); readErr != nil {
			return "", nil, jerrors.Wrap(jerrors.KindImproperlyConfigured, "read settings file", readErr)
		}
	}

	cfg = &Config{
		JobName:            jobName,
		DisableOneInstance: v.GetBool("disable_one_instance"),
		LockKey:            v.GetString("lock_key"),
		TTL:                v.GetDuration("ttl"),
		LockDelay:          v.GetDuration("lock_delay"),
		LivenessKey:        v.GetString("liveness_key"),
		MetricsGatewayURL:  v.GetString("metrics_gateway_url"),
		Logging:            v.GetString("logging"),
		Consul: ConsulConfig{
			Address:    v.GetString("consul.address"),
			Scheme:     v.GetString("consul.scheme"),
			Datacenter: v.GetString("consul.datacenter"),
			Token:      v.GetString("consul.token"),
		},
		RunOnce:        v.GetBool("run_once"),
		SleepInterval:  v.GetDuration("sleep_interval"),
		RunInterval:    v.GetDuration("run_interval"),
		KeepLock:       v.GetBool("keep_lock"),
		ReleaseOnError: v.GetBool("release_on_error"),
		MaxAge:         v.GetDuration("max_age"),
	}

	if err := cfg.Validate(); err != nil {
		return "", nil, err
	}
	return task, cfg, nil
}

func setViperDefaults(v *viper.Viper, d Config) {
	v.SetDefault("lock_key", d.LockKey)
	v.SetDefault("ttl", d.TTL)
	v.SetDefault("lock_delay", d.LockDelay)
	v.SetDefault("liveness_key", d.LivenessKey)
	v.SetDefault("metrics_gateway_url", d.MetricsGatewayURL)
	v.SetDefault("logging", d.Logging)
	v.SetDefault("consul.address", d.Consul.Address)
	v.SetDefault("consul.scheme", d.Consul.Scheme)
	v.SetDefault("consul.datacenter", d.Consul.Datacenter)
	v.SetDefault("consul.token", d.Consul.Token)
}

const (
	ansiRed   = "\033[31m"
	ansiReset = "\033[0m"
)

// PrintError writes a single-line, distinctly colored error message to
// stderr, matching the original command line parser's error style.
func PrintError(prog string, err error) {
	fmt.Fprintf(os.Stderr, "%s%s: error: %v%s\n", ansiRed, prog, err, ansiReset)
}

// ExitCode maps err to the process exit code the CLI should use.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return jerrors.KindOf(err).ExitCode()
}
