// Package monitoring exposes Prometheus metrics for the bridge and its HTTP
// surface.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors, registered on a private registry
// so multiple instances can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	// Bridge metrics
	MessagesTotal   *prometheus.CounterVec
	MessagesDropped *prometheus.CounterVec
	PendingRequests prometheus.Gauge
	HandlerDuration *prometheus.HistogramVec
	HandlerErrors   *prometheus.CounterVec
	Connections     prometheus.Gauge

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	startTime time.Time
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry:  reg,
		startTime: time.Now(),

		MessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prism_bridge_messages_total",
				Help: "Bridge messages by channel, kind and direction",
			},
			[]string{"channel", "kind", "direction"},
		),
		MessagesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prism_bridge_messages_dropped_total",
				Help: "Messages dropped by the router (late responses, unknown correlation IDs, malformed frames)",
			},
			[]string{"reason"},
		),
		PendingRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "prism_bridge_pending_requests",
				Help: "Requests currently awaiting a response",
			},
		),
		HandlerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "prism_bridge_handler_duration_seconds",
				Help:    "Host handler execution time by channel",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"channel"},
		),
		HandlerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prism_bridge_handler_errors_total",
				Help: "Host handler failures by channel",
			},
			[]string{"channel"},
		),
		Connections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "prism_bridge_connections",
				Help: "Active bridge connections",
			},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prism_http_requests_total",
				Help: "HTTP requests by method, path and status",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "prism_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"method", "path"},
		),
	}
}

// Registry exposes the underlying registry for scrape handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Uptime returns time since metrics initialization.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}
