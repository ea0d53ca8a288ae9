// Package observability holds the Prometheus instruments shared by the query
// pipeline, the geocoder and the generation clients.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hazard_query"

// Metrics holds the Prometheus counters and histograms for the ask pipeline.
type Metrics struct {
	// Asks counts completed asks by terminal state (executed, fallback, failed).
	Asks *prometheus.CounterVec

	// PhaseOutcomes counts every phase result. labels: phase, outcome.
	PhaseOutcomes *prometheus.CounterVec

	// SQLValidations counts validator decisions. labels: result={accepted,rejected}.
	SQLValidations *prometheus.CounterVec

	// Geocoding.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,empty,error}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}

	// GenerationDuration observes text-generation latency. labels: kind={generate,stream_open}.
	GenerationDuration *prometheus.HistogramVec

	// QueryDuration observes data-store execution latency.
	QueryDuration prometheus.Histogram
}

// NewMetrics creates all metrics and registers them with reg. Passing nil
// registers with the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := newMetrics()
	reg.MustRegister(
		m.Asks,
		m.PhaseOutcomes,
		m.SQLValidations,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GenerationDuration,
		m.QueryDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered metrics to avoid "already
// registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Asks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asks_total",
			Help:      "Questions answered, by terminal state.",
		}, []string{"terminal"}),
		PhaseOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_outcomes_total",
			Help:      "Orchestrator phase results by phase and outcome.",
		}, []string{"phase", "outcome"}),
		SQLValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sql_validations_total",
			Help:      "Candidate SQL validations by result.",
		}, []string{"result"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GenerationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Text-generation call latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind"}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Risk table query latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}
