// Package metrics exposes Prometheus counters and a histogram for fetch outcomes,
// governor state, and annotation throughput (SPEC_FULL.md §2's ambient
// Metrics component). These carry no behavioural weight: removing this
// package changes no core semantics, only operator visibility.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// FetchOutcome labels the terminal state of one fetch attempt, matching
// the outcomes enumerated in spec.md §4.E.
const (
	FetchNew         = "new"
	FetchNotModified = "not_modified"
	FetchUnchanged   = "unchanged"
	FetchFailed      = "failed"
	FetchThrottled   = "throttled"
	FetchExhausted   = "exhausted"
)

var (
	// FetchTotal counts fetch attempts by outcome.
	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foia_fetch_total",
			Help: "Total fetch attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// GovernorBackoffTotal counts times the rate-limit governor entered
	// backoff for a domain.
	GovernorBackoffTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foia_governor_backoff_total",
			Help: "Total times the rate-limit governor entered backoff, by domain.",
		},
		[]string{"domain"},
	)

	// GovernorDelayMS observes the computed per-domain delay at decision
	// time, for tracking adaptive rate-limit behaviour over time.
	GovernorDelayMS = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foia_governor_delay_ms",
			Help:    "Computed per-domain delay in milliseconds at each governor decision.",
			Buckets: prometheus.ExponentialBuckets(100, 2, 12),
		},
		[]string{"domain"},
	)

	// AnnotationsTotal counts annotation stage runs by stage and outcome.
	AnnotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foia_annotations_total",
			Help: "Total annotation stage runs by stage and outcome.",
		},
		[]string{"stage", "outcome"},
	)
)

// NewRegistry builds a dedicated registry rather than using the global default, so
// tests can construct a fresh one per case without cross-test collector
// registration conflicts.
func NewRegistry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(FetchTotal, GovernorBackoffTotal, GovernorDelayMS, AnnotationsTotal)
	return r
}
