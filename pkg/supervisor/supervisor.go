package supervisor

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"

	"github.com/stack-tools/stackd/pkg/config"
	"github.com/stack-tools/stackd/pkg/errors"
	"github.com/stack-tools/stackd/pkg/logging"
	"github.com/stack-tools/stackd/pkg/processfile"
)

// Supervisor owns the full lifecycle of the service stack: single-instance
// lock, startup sequence, watchdog loop and coordinated shutdown.
type Supervisor struct {
	store      *config.Store
	configPath string
	files      *processfile.Manager
	handle     *State
	catalog    *Catalog
	waiter     *SocketWaiter
	watchdog   *Watchdog
	metrics    *Metrics
	logger     logging.Logger

	coordinator *Coordinator
}

// ServiceInfo is a point-in-time view of one managed service, exposed by
// the status API.
type ServiceInfo struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Running bool   `json:"running"`
	Pid     int    `json:"pid,omitempty"`
}

// New wires a supervisor from the given configuration store.
func New(store *config.Store, configPath string, logger logging.Logger) *Supervisor {
	cfg := store.Snapshot()

	files := processfile.NewManager(processfile.Config{
		BaseDirectory: cfg.Supervisor.RunDirectory,
	}, logging.NewPrefixedLogger(logger, "pidfile: "))

	handle := NewState(files, cfg.Supervisor.StopWaitTimeout, logging.NewPrefixedLogger(logger, "state: "))
	waiter := NewSocketWaiter(cfg.Supervisor.SocketWaitTimeout, logging.NewPrefixedLogger(logger, "readiness: "))
	catalog := NewDefaultCatalog(store, waiter, logging.NewPrefixedLogger(logger, "spawn: "))
	metrics := NewMetrics()
	watchdog := NewWatchdog(catalog, handle, store, cfg.Supervisor.PollInterval, metrics,
		logging.NewPrefixedLogger(logger, "watchdog: "))

	return &Supervisor{
		store:      store,
		configPath: configPath,
		files:      files,
		handle:     handle,
		catalog:    catalog,
		waiter:     waiter,
		watchdog:   watchdog,
		metrics:    metrics,
		logger:     logger,
	}
}

// Metrics returns the supervisor's metrics collectors.
func (s *Supervisor) Metrics() *Metrics {
	return s.metrics
}

// Services returns the status of every catalog entry in declared order.
func (s *Supervisor) Services() []ServiceInfo {
	cfg := s.store.Snapshot()

	var infos []ServiceInfo
	for _, service := range s.catalog.Services() {
		info := ServiceInfo{
			Name:    service.Name,
			Enabled: service.Enabled(cfg),
			Running: s.handle.IsAlive(service.Name),
		}
		if pid, ok := s.handle.Pid(service.Name); ok {
			info.Pid = pid
		}
		infos = append(infos, info)
	}
	return infos
}

// Service returns the status of one service.
func (s *Supervisor) Service(name string) (ServiceInfo, bool) {
	if _, ok := s.catalog.Find(name); !ok {
		return ServiceInfo{}, false
	}
	for _, info := range s.Services() {
		if info.Name == name {
			return info, true
		}
	}
	return ServiceInfo{}, false
}

// RestartService stops a running service; the next watchdog sweep brings it
// back if it is still enabled.
func (s *Supervisor) RestartService(name string) error {
	if _, ok := s.catalog.Find(name); !ok {
		return errors.NewNotFoundError("unknown service", nil).WithContext("service", name)
	}
	return s.handle.Stop(name)
}

// Run drives the supervisor until a termination signal, context
// cancellation or a fatal startup failure. The returned error is nil only
// for a clean shutdown.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := processfile.ValidateDirectory(s.files.PIDFilePath("lock")); err != nil {
		return err
	}

	// One supervisor per run directory: two instances would fight over the
	// same pid files.
	lock := flock.New(filepath.Join(s.files.Directory(), "stackd.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return errors.NewIOError("failed to acquire instance lock", err).WithContext("directory", s.files.Directory())
	}
	if !locked {
		return errors.NewConflictError("another supervisor instance is running", nil).WithContext("directory", s.files.Directory())
	}
	defer lock.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Closed once the watchdog loop can no longer start anything; the
	// coordinator holds teardown until then.
	watchdogDone := make(chan struct{})
	s.coordinator = NewCoordinator(cancel, s.handle, watchdogDone,
		logging.NewPrefixedLogger(s.logger, "shutdown: "))

	// The signal handler only forwards; the sequential teardown runs on
	// this goroutine, never in handler context.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		select {
		case received := <-sig:
			s.logger.Infof("Received signal: %v", received)
			s.coordinator.Shutdown()
		case <-ctx.Done():
		}
	}()

	if s.configPath != "" {
		if err := WatchConfig(ctx, s.configPath, s.store, logging.NewPrefixedLogger(s.logger, "config: ")); err != nil {
			// Reload is a convenience; the stack runs fine without it.
			s.logger.Warnf("Config watching disabled: %v", err)
		}
	}

	sequencer := NewSequencer(s.store, s.catalog, s.handle, s.waiter, nil, s.metrics,
		logging.NewPrefixedLogger(s.logger, "startup: "))
	if err := sequencer.Run(ctx); err != nil {
		// Fatal startup hook. The watchdog never ran; unblock any pending
		// teardown, then take down the cache that may already be up so a
		// failed supervisor leaves nothing behind.
		close(watchdogDone)
		s.logger.Errorf("Fatal startup failure: %v", err)
		if stopErr := s.handle.Stop(ServiceCache); stopErr != nil {
			s.logger.Warnf("Failed to stop cache after startup failure: %v", stopErr)
		}
		return err
	}

	s.watchdog.Run(ctx)
	close(watchdogDone)

	// Normal exit path routes through the same idempotent teardown as the
	// signal path.
	s.coordinator.Shutdown()
	return nil
}
