// Package metrics holds the Prometheus collectors for interpreter runs and
// repair searches. All Record methods are safe on a nil *Metrics, so
// callers that do not care about metrics can pass nil.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"bootcode/pkg/cpu"
)

const namespace = "bootcode"

type Metrics struct {
	RunsTotal        *prometheus.CounterVec
	RunSteps         prometheus.Histogram
	CandidatesTotal  prometheus.Counter
	SearchesTotal    *prometheus.CounterVec
	SearchCandidates prometheus.Histogram
}

// New creates the collectors and registers them on reg. Registering twice
// on the same registry panics, as promauto does.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cpu",
				Name:      "runs_total",
				Help:      "Total interpreter runs by terminal outcome",
			},
			[]string{"outcome"},
		),
		RunSteps: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "cpu",
				Name:      "steps",
				Help:      "Transitions executed per run",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		CandidatesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "repair",
				Name:      "candidates_total",
				Help:      "Total candidate flips simulated",
			},
		),
		SearchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "repair",
				Name:      "searches_total",
				Help:      "Total repair searches by outcome",
			},
			[]string{"outcome"},
		),
		SearchCandidates: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "repair",
				Name:      "search_candidates",
				Help:      "Candidates evaluated per repair search",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
	}
}

// RecordRun counts one finished interpreter run.
func (m *Metrics) RecordRun(res cpu.Result) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(res.Outcome.String()).Inc()
	m.RunSteps.Observe(float64(res.Steps))
}

// RecordCandidate counts one simulated candidate flip together with its run.
func (m *Metrics) RecordCandidate(res cpu.Result) {
	if m == nil {
		return
	}
	m.CandidatesTotal.Inc()
	m.RecordRun(res)
}

// RecordSearch counts a finished search. fixed selects the outcome label.
func (m *Metrics) RecordSearch(fixed bool, tried int) {
	if m == nil {
		return
	}
	outcome := "unfixable"
	if fixed {
		outcome = "fixed"
	}
	m.SearchesTotal.WithLabelValues(outcome).Inc()
	m.SearchCandidates.Observe(float64(tried))
}

// WriteTextfile dumps everything gathered by g in the node-exporter
// textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
