// Package metrics exposes Prometheus instrumentation for the connection pool
// and the sessions handed out from it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "todo_backend"

// Metrics holds the counters and histograms updated by the database layer.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// SessionsActive is the number of sessions currently checked out.
	SessionsActive prometheus.Gauge

	// SessionErrors counts units of work that returned an error.
	SessionErrors prometheus.Counter

	// PoolExhausted counts acquisitions that gave up after the pool timeout.
	PoolExhausted prometheus.Counter

	// ConnectionsRecycled counts pooled connections discarded at checkout,
	// labelled by reason (idle, ping).
	ConnectionsRecycled *prometheus.CounterVec

	// QueryDuration is the histogram of statement durations by command.
	QueryDuration *prometheus.HistogramVec

	// QueryErrors counts failed statements by command.
	QueryErrors *prometheus.CounterVec
}

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "sessions_active",
			Help:      "Number of database sessions currently checked out",
		}),
		SessionErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "session_errors_total",
			Help:      "Total number of units of work that failed inside a session",
		}),
		PoolExhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "pool_exhausted_total",
			Help:      "Total number of session acquisitions that timed out waiting for a connection",
		}),
		ConnectionsRecycled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "connections_recycled_total",
			Help:      "Total number of pooled connections discarded at checkout",
		}, []string{"reason"}),
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Duration of SQL statements",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"command"}),
		QueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of failed SQL statements",
		}, []string{"command"}),
	}
}

// SessionAcquired increments the active session gauge.
func (m *Metrics) SessionAcquired() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

// SessionReleased decrements the active session gauge.
func (m *Metrics) SessionReleased() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

// SessionFailed records a failed unit of work.
func (m *Metrics) SessionFailed() {
	if m == nil {
		return
	}
	m.SessionErrors.Inc()
}

// Exhausted records an acquisition that hit the pool timeout.
func (m *Metrics) Exhausted() {
	if m == nil {
		return
	}
	m.PoolExhausted.Inc()
}

// Recycled records a connection discarded at checkout.
func (m *Metrics) Recycled(reason string) {
	if m == nil {
		return
	}
	m.ConnectionsRecycled.WithLabelValues(reason).Inc()
}

// ObserveQuery records the outcome of one statement.
func (m *Metrics) ObserveQuery(command string, seconds float64, failed bool) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(command).Observe(seconds)
	if failed {
		m.QueryErrors.WithLabelValues(command).Inc()
	}
}
