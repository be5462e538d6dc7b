// Package observability holds dispatcher metrics and tracing setup.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for UpdatesTotal.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeUnhandled = "unhandled"
	OutcomeMalformed = "malformed"
)

// Metrics holds dispatcher metrics on a dedicated registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	UpdatesTotal         *prometheus.CounterVec
	TransportErrorsTotal prometheus.Counter
	HandlerDuration      *prometheus.HistogramVec
	Dispatching          prometheus.Gauge
}

// NewMetrics creates and registers all dispatcher metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		UpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teledispatch",
			Subsystem: "dispatch",
			Name:      "updates_total",
			Help:      "Updates processed, by kind and outcome.",
		}, []string{"kind", "outcome"}),

		TransportErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "teledispatch",
			Subsystem: "listener",
			Name:      "errors_total",
			Help:      "Errors reported by the update listener.",
		}),

		HandlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "teledispatch",
			Subsystem: "dispatch",
			Name:      "handler_duration_seconds",
			Help:      "Time spent running the handler tree for one update.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"kind"}),

		Dispatching: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "teledispatch",
			Subsystem: "dispatch",
			Name:      "running",
			Help:      "1 while a dispatch loop is running.",
		}),
	}

	reg.MustRegister(
		m.UpdatesTotal,
		m.TransportErrorsTotal,
		m.HandlerDuration,
		m.Dispatching,
	)
	return m
}

// ObserveUpdate records one processed update.
func (m *Metrics) ObserveUpdate(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.UpdatesTotal.WithLabelValues(kind, outcome).Inc()
	if outcome != OutcomeMalformed {
		m.HandlerDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	}
}

// ObserveTransportError records one listener error.
func (m *Metrics) ObserveTransportError() {
	if m == nil {
		return
	}
	m.TransportErrorsTotal.Inc()
}

// SetDispatching flips the running gauge.
func (m *Metrics) SetDispatching(running bool) {
	if m == nil {
		return
	}
	if running {
		m.Dispatching.Set(1)
		return
	}
	m.Dispatching.Set(0)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
