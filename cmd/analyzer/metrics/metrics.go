// Package metrics provides Prometheus instrumentation for the analyzer.
//
// Metrics exposed via /metrics:
//   - solwatch_ingest_events_total: Counter of accepted feed events by feed
//   - solwatch_ingest_dropped_total: Counter of dropped payloads by feed and reason
//   - solwatch_recompute_seconds: Histogram of snapshot recompute duration
//   - solwatch_buffered_samples: Gauge of buffered samples per device
//   - solwatch_recommendations_total: Counter of emitted recommendations by severity
//   - solwatch_errors_total: Counter of errors by component and reason
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the analyzer.
// It implements the analyzer package's Metrics interface.
type Metrics struct {
	IngestEventsTotal    *prometheus.CounterVec
	IngestDroppedTotal   *prometheus.CounterVec
	RecomputeSeconds     prometheus.Histogram
	BufferedSamples      *prometheus.GaugeVec
	RecommendationsTotal *prometheus.CounterVec
	ErrorsTotal          *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		IngestEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "solwatch_ingest_events_total",
			Help: "Total accepted feed events by feed type",
		}, []string{"feed"}),

		IngestDroppedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "solwatch_ingest_dropped_total",
			Help: "Total dropped feed payloads by feed type and reason",
		}, []string{"feed", "reason"}),

		RecomputeSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "solwatch_recompute_seconds",
			Help:    "Time spent recomputing a derived snapshot",
			Buckets: prometheus.DefBuckets,
		}),

		BufferedSamples: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "solwatch_buffered_samples",
			Help: "Samples currently buffered per device",
		}, []string{"device"}),

		RecommendationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "solwatch_recommendations_total",
			Help: "Recommendations emitted by severity",
		}, []string{"severity"}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "solwatch_errors_total",
			Help: "Total number of errors by component and reason",
		}, []string{"component", "reason"}),
	}
}

// RecordIngest counts one accepted feed event.
func (m *Metrics) RecordIngest(feed string) {
	m.IngestEventsTotal.WithLabelValues(feed).Inc()
}

// RecordDrop counts one dropped payload.
func (m *Metrics) RecordDrop(feed, reason string) {
	m.IngestDroppedTotal.WithLabelValues(feed, reason).Inc()
}

// RecordRecompute records the duration of one snapshot recompute.
func (m *Metrics) RecordRecompute(seconds float64) {
	m.RecomputeSeconds.Observe(seconds)
}

// SetBufferedSamples sets the buffered-sample gauge for a device.
func (m *Metrics) SetBufferedSamples(device string, n int) {
	m.BufferedSamples.WithLabelValues(device).Set(float64(n))
}

// RecordRecommendations counts emitted recommendations by severity.
func (m *Metrics) RecordRecommendations(severity string, n int) {
	m.RecommendationsTotal.WithLabelValues(severity).Add(float64(n))
}

// RecordError counts one error by component and reason.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
