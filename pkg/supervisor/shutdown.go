package supervisor

import (
	"context"
	"sync"

	"github.com/stack-tools/stackd/pkg/errors"
	"github.com/stack-tools/stackd/pkg/logging"
)

// Coordinator performs the signal-triggered teardown. It cancels the shared
// context, waits for the watchdog loop to exit, then stops the managed
// processes sequentially in StopOrder, blocking on each before moving to the
// next. Activation is idempotent: signals and the normal exit path may both
// trigger it without re-entering teardown.
type Coordinator struct {
	cancel   context.CancelFunc
	handle   ProcessHandle
	order    []string
	loopDone <-chan struct{}
	logger   logging.Logger

	once sync.Once
	done chan struct{}
}

// NewCoordinator creates a shutdown coordinator over the shared cancel
// function and process handle. loopDone must be closed once the watchdog
// loop has exited; teardown does not begin before then.
func NewCoordinator(cancel context.CancelFunc, handle ProcessHandle, loopDone <-chan struct{}, logger logging.Logger) *Coordinator {
	return &Coordinator{
		cancel:   cancel,
		handle:   handle,
		order:    StopOrder,
		loopDone: loopDone,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Shutdown runs the teardown once and blocks until it completes, for every
// caller. Stops are best-effort: a process that will not die is logged and
// skipped so dependency order still holds for the rest.
func (c *Coordinator) Shutdown() {
	c.once.Do(func() {
		defer close(c.done)

		c.logger.Infof("Shutting down service stack...")
		c.cancel()

		// An in-flight sweep may still be inside a start routine. Stopping
		// services while it runs would let it respawn one behind the
		// teardown, so wait for the loop to drain first.
		<-c.loopDone

		collection := errors.NewErrorCollection()
		for _, name := range c.order {
			if err := c.handle.Stop(name); err != nil {
				c.logger.Errorf("Failed to stop service: %s, error: %v", name, err)
				collection.Add(err)
			}
		}

		if collection.HasErrors() {
			c.logger.Warnf("Some services did not stop cleanly: %v", collection.Error())
		}
		c.logger.Infof("Service stack shutdown complete")
	})

	<-c.done
}

// Done is closed once teardown has completed.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}
