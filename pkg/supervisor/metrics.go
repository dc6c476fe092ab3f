package supervisor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the supervisor's Prometheus collectors on a private
// registry, served by the status listener.
type Metrics struct {
	registry *prometheus.Registry

	Sweeps               prometheus.Counter
	ServiceStarts        *prometheus.CounterVec
	ServiceStartFailures *prometheus.CounterVec
	HookFailures         *prometheus.CounterVec
}

// NewMetrics creates and registers the supervisor collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		Sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stackd",
			Subsystem: "watchdog",
			Name:      "sweeps_total",
			Help:      "Number of completed watchdog sweeps.",
		}),
		ServiceStarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stackd",
			Subsystem: "watchdog",
			Name:      "service_starts_total",
			Help:      "Number of service starts, including restarts after death.",
		}, []string{"service"}),
		ServiceStartFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stackd",
			Subsystem: "watchdog",
			Name:      "service_start_failures_total",
			Help:      "Number of failed service start attempts.",
		}, []string{"service"}),
		HookFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stackd",
			Subsystem: "startup",
			Name:      "hook_failures_total",
			Help:      "Number of failed startup hooks.",
		}, []string{"hook"}),
	}

	registry.MustRegister(m.Sweeps, m.ServiceStarts, m.ServiceStartFailures, m.HookFailures)
	return m
}

// Registry exposes the private registry for the status listener.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
