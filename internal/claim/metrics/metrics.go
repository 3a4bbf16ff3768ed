// Package metrics provides Prometheus metrics for the claim pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all claim pipeline metrics.
type Metrics struct {
	TransitionsTotal *prometheus.CounterVec // Lifecycle transitions by target status
	VerdictsTotal    *prometheus.CounterVec // Verdicts by source and result
	MintOutcomes     *prometheus.CounterVec // Issuance outcomes (minted, deferred, no_credits)

	AnalyzeDurationSeconds prometheus.Histogram // End-to-end analysis latency
}

// New creates a Metrics instance with all metrics registered on the default
// registry. Construct once per process.
func New() *Metrics {
	return &Metrics{
		TransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_claim_transitions_total",
			Help: "Total claim lifecycle transitions by target status",
		}, []string{"to"}),

		VerdictsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_claim_verdicts_total",
			Help: "Total verification verdicts by metric source and result",
		}, []string{"source", "passed"}),

		MintOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_claim_mint_outcomes_total",
			Help: "Total credit issuance outcomes",
		}, []string{"outcome"}),

		AnalyzeDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "canopy_claim_analyze_duration_seconds",
			Help:    "Duration of vegetation-change analysis per verification request",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
	}
}

// RecordTransition records a lifecycle transition.
func (m *Metrics) RecordTransition(to string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(to).Inc()
}

// RecordVerdict records a verification verdict.
func (m *Metrics) RecordVerdict(source string, passed bool) {
	if m == nil {
		return
	}
	label := "false"
	if passed {
		label = "true"
	}
	m.VerdictsTotal.WithLabelValues(source, label).Inc()
}

// RecordMintOutcome records an issuance outcome.
func (m *Metrics) RecordMintOutcome(outcome string) {
	if m == nil {
		return
	}
	m.MintOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveAnalyzeDuration records the latency of one analysis call.
func (m *Metrics) ObserveAnalyzeDuration(seconds float64) {
	if m == nil {
		return
	}
	m.AnalyzeDurationSeconds.Observe(seconds)
}
