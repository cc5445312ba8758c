package provenance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instrumentation for a machine, as
// CounterVec/HistogramVec collectors registered through promauto.
type Metrics struct {
	TransitionsTotal   *prometheus.CounterVec
	TransitionDuration *prometheus.HistogramVec
	SinkFailuresTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers the machine's Prometheus metrics. Pass a
// distinct registerer per machine instance in tests to avoid duplicate
// registration panics from promauto's default global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provenance_transitions_total",
				Help: "Total number of transitions attempted, by outcome.",
			},
			[]string{"agent_id", "outcome"}, // outcome: accepted, rejected
		),
		TransitionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provenance_transition_duration_seconds",
				Help:    "Time to build and append a proof for an accepted transition.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent_id"},
		),
		SinkFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provenance_sink_failures_total",
				Help: "Total number of sink emission failures, by sink name.",
			},
			[]string{"agent_id", "sink"},
		),
	}
}
