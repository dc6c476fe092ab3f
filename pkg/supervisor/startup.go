package supervisor

import (
	"context"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/stack-tools/stackd/pkg/config"
	"github.com/stack-tools/stackd/pkg/errors"
	"github.com/stack-tools/stackd/pkg/logging"
	"github.com/stack-tools/stackd/pkg/process"
)

// HookRunner runs a one-shot external command to completion.
type HookRunner func(ctx context.Context, execution process.ExecutionConfig, id string) error

// Sequencer performs the one-time ordered bring-up before the watchdog
// takes over: secret resolution, cache, migrations, startup fix-ups.
// Correctness-critical steps (migrations, fix-ups) are fatal on failure;
// the cache is an optimization whose absence only degrades performance.
type Sequencer struct {
	store   *config.Store
	catalog *Catalog
	handle  ProcessHandle
	waiter  *SocketWaiter
	runHook HookRunner
	metrics *Metrics
	logger  logging.Logger
}

// NewSequencer creates the startup sequencer. A nil runHook uses the real
// external command runner.
func NewSequencer(store *config.Store, catalog *Catalog, handle ProcessHandle, waiter *SocketWaiter, runHook HookRunner, metrics *Metrics, logger logging.Logger) *Sequencer {
	if runHook == nil {
		runHook = func(ctx context.Context, execution process.ExecutionConfig, id string) error {
			return process.RunHook(ctx, execution, id, logger)
		}
	}
	return &Sequencer{
		store:   store,
		catalog: catalog,
		handle:  handle,
		waiter:  waiter,
		runHook: runHook,
		metrics: metrics,
		logger:  logger,
	}
}

// Run executes the startup sequence exactly once. A returned error is fatal:
// the caller must exit non-zero without starting any further service.
func (s *Sequencer) Run(ctx context.Context) error {
	s.resolveAuthSecret()

	s.startCache(ctx)

	cfg := s.store.Snapshot()

	if !cfg.Hooks.Migrate.IsZero() {
		if err := s.runHook(ctx, cfg.Hooks.Migrate, "migrate"); err != nil {
			if s.metrics != nil {
				s.metrics.HookFailures.WithLabelValues("migrate").Inc()
			}
			return errors.NewProcessError("migrations hook failed", err)
		}
	} else {
		s.logger.Warnf("No migrations hook configured, skipping")
	}

	if !cfg.Hooks.Startup.IsZero() {
		if err := s.runHook(ctx, cfg.Hooks.Startup, "startup"); err != nil {
			if s.metrics != nil {
				s.metrics.HookFailures.WithLabelValues("startup").Inc()
			}
			return errors.NewProcessError("startup hook failed", err)
		}
	}

	s.logger.Infof("Startup sequence complete")
	return nil
}

// resolveAuthSecret generates a secret when none was supplied and exports
// it so hooks and services inherit it. Idempotent per process lifetime; the
// supervisor never persists it.
func (s *Sequencer) resolveAuthSecret() {
	cfg := s.store.Snapshot()
	secret := cfg.Supervisor.AuthSecret
	if secret == "" {
		secret = strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
		s.store.SetAuthSecret(secret)
		s.logger.Infof("Generated authentication secret")
	}
	os.Setenv("STACKD_AUTH_SECRET", secret)
}

// startCache brings up the internal cache synchronously, outside the
// watchdog. Any failure here is non-fatal: the stack runs in a cache-less
// degraded mode or against the external endpoint.
func (s *Sequencer) startCache(ctx context.Context) {
	cfg := s.store.Snapshot()
	if !cfg.InternalCacheEnabled() {
		s.logger.Infof("External cache endpoint configured (%s), skipping internal cache", cfg.Cache.ExternalEndpoint)
		return
	}

	service, ok := s.catalog.Find(ServiceCache)
	if !ok {
		return
	}
	if s.handle.IsAlive(ServiceCache) {
		s.logger.Infof("Cache already running")
		return
	}

	pid, err := service.Start(ctx)
	if err != nil {
		s.logger.Errorf("Cache failed to start, continuing degraded: %v", err)
		return
	}
	if err := s.handle.RecordPID(ServiceCache, pid); err != nil {
		s.logger.Warnf("Failed to record cache pid: %v", err)
	}

	if cfg.Cache.Socket != "" && !s.waiter.Wait(ctx, cfg.Cache.Socket) {
		s.logger.Warnf("Cache did not become ready, continuing degraded")
	}
}
