package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stack-tools/stackd/pkg/errors"
	"github.com/stack-tools/stackd/pkg/process"
)

// Config is the top-level configuration file structure. The catalog of
// services is fixed; configuration only tunes commands, enable flags and
// timing.
type Config struct {
	Supervisor        SupervisorConfig        `yaml:"supervisor"`
	Features          FeatureFlags            `yaml:"features"`
	Hooks             HooksConfig             `yaml:"hooks"`
	Cache             CacheConfig             `yaml:"cache"`
	AppServer         AppServerConfig         `yaml:"app_server"`
	TaskWorker        TaskWorkerConfig        `yaml:"task_worker"`
	TaskScheduler     process.ExecutionConfig `yaml:"task_scheduler"`
	FilesystemWatcher process.ExecutionConfig `yaml:"filesystem_watcher"`
	ReverseProxy      process.ExecutionConfig `yaml:"reverse_proxy"`
}

// SupervisorConfig holds supervisor-level tunables.
type SupervisorConfig struct {
	RunDirectory      string        `yaml:"run_directory,omitempty"`
	PollInterval      time.Duration `yaml:"poll_interval,omitempty"`
	SocketWaitTimeout time.Duration `yaml:"socket_wait_timeout,omitempty"`
	StopWaitTimeout   time.Duration `yaml:"stop_wait_timeout,omitempty"`
	AuthSecret        string        `yaml:"auth_secret,omitempty"`
	ListenAddress     string        `yaml:"listen_address,omitempty"`
	LogLevel          string        `yaml:"log_level,omitempty"`
	LogFormat         string        `yaml:"log_format,omitempty"`
}

// FeatureFlags are the runtime enable flags. Any of the three scheduled
// features enables the task scheduler.
type FeatureFlags struct {
	ScheduledRescan          bool `yaml:"scheduled_rescan"`
	ScheduledMetadataRefresh bool `yaml:"scheduled_metadata_refresh"`
	ScheduledCleanup         bool `yaml:"scheduled_cleanup"`
	FilesystemWatch          bool `yaml:"filesystem_watch"`
}

// HooksConfig holds the one-shot external commands run during startup.
// Migrate and Startup failures are fatal; an unset hook is skipped.
type HooksConfig struct {
	Migrate process.ExecutionConfig `yaml:"migrate"`
	Startup process.ExecutionConfig `yaml:"startup"`
}

// CacheConfig configures the in-memory cache service. A configured external
// endpoint skips the internal cache entirely.
type CacheConfig struct {
	ExternalEndpoint string                  `yaml:"external_endpoint,omitempty"`
	Socket           string                  `yaml:"socket,omitempty"`
	Exec             process.ExecutionConfig `yaml:",inline"`
}

// AppServerConfig configures the application server. Socket is the listening
// address ("host:port" or a unix socket path) the reverse proxy waits for.
type AppServerConfig struct {
	Socket string                  `yaml:"socket,omitempty"`
	Exec   process.ExecutionConfig `yaml:",inline"`
}

// TaskWorkerConfig configures the background task worker. Concurrency is
// exported to the worker process via its environment.
type TaskWorkerConfig struct {
	Concurrency int                     `yaml:"concurrency,omitempty"`
	Exec        process.ExecutionConfig `yaml:",inline"`
}

const (
	DefaultPollInterval      = 5 * time.Second
	DefaultSocketWaitTimeout = 30 * time.Second
	DefaultStopWaitTimeout   = 30 * time.Second
	DefaultWorkerConcurrency = 2
)

// SchedulerEnabled reports whether any scheduled feature is on.
func (c *Config) SchedulerEnabled() bool {
	return c.Features.ScheduledRescan ||
		c.Features.ScheduledMetadataRefresh ||
		c.Features.ScheduledCleanup
}

// InternalCacheEnabled reports whether the internal cache should run.
func (c *Config) InternalCacheEnabled() bool {
	return c.Cache.ExternalEndpoint == ""
}

// LoadFromFile loads, defaults and env-overrides a configuration file.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewValidationError("failed to parse YAML configuration", err).WithContext("filename", filename)
	}

	setDefaults(&config)

	if err := applyEnvOverrides(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(config *Config) {
	if config.Supervisor.PollInterval == 0 {
		config.Supervisor.PollInterval = DefaultPollInterval
	}
	if config.Supervisor.SocketWaitTimeout == 0 {
		config.Supervisor.SocketWaitTimeout = DefaultSocketWaitTimeout
	}
	if config.Supervisor.StopWaitTimeout == 0 {
		config.Supervisor.StopWaitTimeout = DefaultStopWaitTimeout
	}
	if config.Supervisor.LogLevel == "" {
		config.Supervisor.LogLevel = "info"
	}
	if config.TaskWorker.Concurrency == 0 {
		config.TaskWorker.Concurrency = DefaultWorkerConcurrency
	}
}

// applyEnvOverrides layers the environment-supplied runtime inputs over the
// file values. The environment wins, matching container deployment practice.
func applyEnvOverrides(config *Config) error {
	if v := os.Getenv("STACKD_AUTH_SECRET"); v != "" {
		config.Supervisor.AuthSecret = v
	}
	if v := os.Getenv("STACKD_CACHE_ENDPOINT"); v != "" {
		config.Cache.ExternalEndpoint = v
	}
	if v := os.Getenv("STACKD_POLL_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return errors.NewValidationError("invalid STACKD_POLL_INTERVAL", err).WithContext("value", v)
		}
		config.Supervisor.PollInterval = interval
	}
	if v := os.Getenv("STACKD_SOCKET_WAIT_TIMEOUT"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return errors.NewValidationError("invalid STACKD_SOCKET_WAIT_TIMEOUT", err).WithContext("value", v)
		}
		config.Supervisor.SocketWaitTimeout = timeout
	}
	if v := os.Getenv("STACKD_WORKER_CONCURRENCY"); v != "" {
		concurrency, err := strconv.Atoi(v)
		if err != nil || concurrency <= 0 {
			return errors.NewValidationError("invalid STACKD_WORKER_CONCURRENCY", err).WithContext("value", v)
		}
		config.TaskWorker.Concurrency = concurrency
	}

	boolFlags := []struct {
		env    string
		target *bool
	}{
		{"STACKD_SCHEDULED_RESCAN", &config.Features.ScheduledRescan},
		{"STACKD_SCHEDULED_METADATA_REFRESH", &config.Features.ScheduledMetadataRefresh},
		{"STACKD_SCHEDULED_CLEANUP", &config.Features.ScheduledCleanup},
		{"STACKD_FILESYSTEM_WATCH", &config.Features.FilesystemWatch},
	}
	for _, flag := range boolFlags {
		v := os.Getenv(flag.env)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return errors.NewValidationError("invalid "+flag.env, err).WithContext("value", v)
		}
		*flag.target = parsed
	}

	return nil
}

// Validate checks the configuration for structural problems. Commands are
// required only for services that can actually be scheduled to run.
func Validate(config *Config) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}
	if config.Supervisor.PollInterval <= 0 {
		return errors.NewValidationError("poll_interval must be positive", nil)
	}
	if config.Supervisor.SocketWaitTimeout <= 0 {
		return errors.NewValidationError("socket_wait_timeout must be positive", nil)
	}
	if config.TaskWorker.Concurrency <= 0 {
		return errors.NewValidationError("task worker concurrency must be positive", nil)
	}

	if config.AppServer.Exec.IsZero() {
		return errors.NewValidationError("app_server command is required", nil)
	}
	if config.InternalCacheEnabled() && config.Cache.Exec.IsZero() {
		return errors.NewValidationError("cache command is required when no external endpoint is configured", nil)
	}
	if config.SchedulerEnabled() && config.TaskScheduler.IsZero() {
		return errors.NewValidationError("task_scheduler command is required when a scheduled feature is enabled", nil)
	}
	if config.Features.FilesystemWatch && config.FilesystemWatcher.IsZero() {
		return errors.NewValidationError("filesystem_watcher command is required when filesystem_watch is enabled", nil)
	}

	return nil
}
