// Package metrics holds the engine's processing counters on a private
// prometheus registry. Batch summaries gather from the registry instead
// of keeping ad hoc tallies.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts per-document processing outcomes.
type Metrics struct {
	registry *prometheus.Registry

	DocsScored       prometheus.Counter
	DocsFailed       prometheus.Counter
	DetectorTimeouts prometheus.Counter
	RoutedAccepted   prometheus.Counter
	RoutedLowQuality prometheus.Counter
}

// New creates the counter set on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.DocsScored = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "corposcope",
		Name:      "documents_scored_total",
		Help:      "Documents successfully scored by the quality detectors.",
	})
	m.DocsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "corposcope",
		Name:      "documents_failed_total",
		Help:      "Documents that could not be scored or routed.",
	})
	m.DetectorTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "corposcope",
		Name:      "detector_timeouts_total",
		Help:      "Per-document detector runs aborted by timeout.",
	})
	m.RoutedAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "corposcope",
		Name:      "documents_routed_accepted_total",
		Help:      "Documents routed into the quality_checked bucket.",
	})
	m.RoutedLowQuality = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "corposcope",
		Name:      "documents_routed_low_quality_total",
		Help:      "Documents routed into the low_quality bucket.",
	})

	m.registry.MustRegister(
		m.DocsScored, m.DocsFailed, m.DetectorTimeouts,
		m.RoutedAccepted, m.RoutedLowQuality,
	)
	return m
}

// Registry exposes the underlying registry, e.g. for an HTTP handler or
// for gathering in tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Snapshot gathers current counter values keyed by metric name.
func (m *Metrics) Snapshot() map[string]float64 {
	out := make(map[string]float64)
	families, err := m.registry.Gather()
	if err != nil {
		return out
	}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				out[mf.GetName()] += c.GetValue()
			}
		}
	}
	return out
}
