package supervisor

import (
	"context"
	"net"
	"os"
	"strings"
	"time"

	"github.com/stack-tools/stackd/pkg/logging"
)

// DefaultSocketPollInterval is the pause between readiness probes.
const DefaultSocketPollInterval = 500 * time.Millisecond

// SocketWaiter polls for a peer's listening socket before a dependent
// service starts. The dependency is soft: when the bound elapses the caller
// proceeds anyway with a warning.
type SocketWaiter struct {
	Interval time.Duration
	Timeout  time.Duration
	logger   logging.Logger
}

// NewSocketWaiter creates a waiter with the given total bound.
func NewSocketWaiter(timeout time.Duration, logger logging.Logger) *SocketWaiter {
	return &SocketWaiter{
		Interval: DefaultSocketPollInterval,
		Timeout:  timeout,
		logger:   logger,
	}
}

// Wait polls until the socket accepts or the bound elapses. It returns
// whether the socket appeared; false is a degraded-proceed signal, not an
// error. An empty socket spec means there is nothing to wait for.
func (w *SocketWaiter) Wait(ctx context.Context, socket string) bool {
	if socket == "" {
		return true
	}

	// The bound is expressed as an iteration count over the probe interval.
	iterations := int(w.Timeout / w.Interval)
	if iterations < 1 {
		iterations = 1
	}

	network, address := resolveSocket(socket)
	w.logger.Debugf("Waiting for socket: %s (%s), up to %d probes", address, network, iterations)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for i := 0; i < iterations; i++ {
		if w.probe(network, address) {
			w.logger.Infof("Socket ready: %s", address)
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}

	w.logger.Warnf("Socket %s not ready after %v, proceeding anyway", address, w.Timeout)
	return false
}

func (w *SocketWaiter) probe(network, address string) bool {
	if network == "unix" {
		// Existence of the socket file is the readiness condition.
		if _, err := os.Stat(address); err != nil {
			return false
		}
		return true
	}

	conn, err := net.DialTimeout(network, address, w.Interval)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// resolveSocket classifies a socket spec: a path is a unix socket, anything
// else is a tcp host:port.
func resolveSocket(socket string) (network, address string) {
	if strings.ContainsAny(socket, "/\\") {
		return "unix", socket
	}
	return "tcp", socket
}
