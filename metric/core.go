// File: metric/core.go
// Core server metrics and their registry.
// License: Apache-2.0

package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "evloop"

// Metrics contains all core server metrics.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsAccepted prometheus.Counter
	ConnectionsActive   prometheus.Gauge
	AcceptErrors        prometheus.Counter
	ConnectionErrors    prometheus.Counter
	BytesRead           prometheus.Counter
	BytesWritten        prometheus.Counter
	TasksExecuted       prometheus.Counter
}

// New creates a Metrics instance backed by a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		ConnectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "accepted_total",
			Help:      "Total number of accepted connections",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "active",
			Help:      "Number of currently open connections",
		}),
		AcceptErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "acceptor",
			Name:      "errors_total",
			Help:      "Total number of accept failures",
		}),
		ConnectionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "errors_total",
			Help:      "Total number of per-connection I/O errors",
		}),
		BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "io",
			Name:      "read_bytes_total",
			Help:      "Total bytes read from peers",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "io",
			Name:      "written_bytes_total",
			Help:      "Total bytes written to peers",
		}),
		TasksExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventloop",
			Name:      "tasks_total",
			Help:      "Total cross-thread tasks executed by event loops",
		}),
	}
	m.registry.MustRegister(
		m.ConnectionsAccepted,
		m.ConnectionsActive,
		m.AcceptErrors,
		m.ConnectionErrors,
		m.BytesRead,
		m.BytesWritten,
		m.TasksExecuted,
	)
	return m
}

// Registry exposes the backing registry for custom collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an HTTP handler serving the registry in Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
