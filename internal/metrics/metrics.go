// Package metrics exposes prometheus collectors for the wizard gates and the
// two persistence destinations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spese"

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	gateFailures  *prometheus.CounterVec
	primaryWrites *prometheus.CounterVec
	externalSyncs *prometheus.CounterVec
	syncDuration  prometheus.Histogram
	sessions      prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		gateFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wizard",
			Name:      "gate_failures_total",
			Help:      "Step transitions rejected because a required field was missing or invalid.",
		}, []string{"step"}),
		primaryWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "primary_writes_total",
			Help:      "Primary store writes by outcome.",
		}, []string{"outcome"}),
		externalSyncs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_sync_total",
			Help:      "External sync attempts by outcome and error kind.",
		}, []string{"outcome", "kind"}),
		syncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_sync_duration_seconds",
			Help:      "Time spent on external sync attempts, timeouts included.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wizard",
			Name:      "sessions",
			Help:      "Live wizard sessions.",
		}),
	}
}

// GateFailed counts a rejected step transition.
func (m *Metrics) GateFailed(step string) {
	m.gateFailures.WithLabelValues(step).Inc()
}

// PrimaryWrite counts a primary store write.
func (m *Metrics) PrimaryWrite(ok bool) {
	m.primaryWrites.WithLabelValues(outcome(ok)).Inc()
}

// ExternalSync records one external attempt; kind is empty on success.
func (m *Metrics) ExternalSync(ok bool, kind string, elapsed time.Duration) {
	m.externalSyncs.WithLabelValues(outcome(ok), kind).Inc()
	m.syncDuration.Observe(elapsed.Seconds())
}

// SetSessions reports the number of live wizard sessions.
func (m *Metrics) SetSessions(n int) {
	m.sessions.Set(float64(n))
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests and for callers that add their own collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
