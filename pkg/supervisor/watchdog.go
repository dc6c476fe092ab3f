package supervisor

import (
	"context"
	"time"

	"github.com/stack-tools/stackd/pkg/config"
	"github.com/stack-tools/stackd/pkg/logging"
)

// Watchdog is the periodic liveness sweep. Every tick it ensures each
// enabled service is alive, starting it if not. "Crashed" and "never
// started" are the same state with the same remedy; restarts are immediate,
// with no backoff or restart-count limit.
type Watchdog struct {
	catalog  *Catalog
	handle   ProcessHandle
	store    *config.Store
	interval time.Duration
	metrics  *Metrics
	logger   logging.Logger
}

// NewWatchdog creates a watchdog sweeping at the given interval.
func NewWatchdog(catalog *Catalog, handle ProcessHandle, store *config.Store, interval time.Duration, metrics *Metrics, logger logging.Logger) *Watchdog {
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}
	return &Watchdog{
		catalog:  catalog,
		handle:   handle,
		store:    store,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run sweeps until the context is cancelled. Cancellation is cooperative: a
// sweep in progress always completes its current pass.
func (w *Watchdog) Run(ctx context.Context) {
	w.logger.Infof("Watchdog started, poll interval: %v", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		// A cancellation that raced the previous tick must not trigger
		// another bring-up pass.
		select {
		case <-ctx.Done():
			w.logger.Infof("Watchdog stopping: %v", ctx.Err())
			return
		default:
		}

		w.Sweep(ctx)

		select {
		case <-ctx.Done():
			w.logger.Infof("Watchdog stopping: %v", ctx.Err())
			return
		case <-ticker.C:
		}
	}
}

// Sweep performs one pass over all enabled services. Enable predicates are
// evaluated against the current configuration snapshot, so a flag flipped
// before this sweep takes effect now.
func (w *Watchdog) Sweep(ctx context.Context) {
	cfg := w.store.Snapshot()

	w.catalog.ForEachEnabled(cfg, func(service *ManagedService) {
		if w.handle.IsAlive(service.Name) {
			return
		}

		w.logger.Infof("Service not alive, starting: %s", service.Name)
		pid, err := service.Start(ctx)
		if err != nil {
			// Not fatal: the next sweep tries again.
			w.logger.Errorf("Failed to start service: %s, error: %v", service.Name, err)
			if w.metrics != nil {
				w.metrics.ServiceStartFailures.WithLabelValues(service.Name).Inc()
			}
			return
		}

		if err := w.handle.RecordPID(service.Name, pid); err != nil {
			w.logger.Warnf("Failed to record pid, service: %s, pid: %d, error: %v", service.Name, pid, err)
		}
		if w.metrics != nil {
			w.metrics.ServiceStarts.WithLabelValues(service.Name).Inc()
		}
	})

	if w.metrics != nil {
		w.metrics.Sweeps.Inc()
	}
}
