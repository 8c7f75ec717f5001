// Package metrics defines the Prometheus collectors the evaluator
// reports against, formalizing the ad hoc counters Perkeep's
// pkg/search/handler.go logs informally (request counts, slow-query
// warnings) as proper collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// QueriesTotal counts query evaluations by terminal state.
	QueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bitdex",
		Subsystem: "query",
		Name:      "total",
		Help:      "Number of queries run, labeled by outcome.",
	}, []string{"outcome"})

	// EstimateBracketWidth observes upper.Count()-lower.Count() after
	// estimate(), i.e. how many rows remained undetermined.
	EstimateBracketWidth = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bitdex",
		Subsystem: "query",
		Name:      "estimate_bracket_width",
		Help:      "Row count still undetermined after estimate().",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
	})

	// EvaluateDuration observes full evaluate() wall time in seconds.
	EvaluateDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bitdex",
		Subsystem: "query",
		Name:      "evaluate_duration_seconds",
		Help:      "Wall time of a full evaluate() call.",
		Buckets:   prometheus.DefBuckets,
	})

	// AdmissionRejected counts queries turned away by the rate gate.
	AdmissionRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bitdex",
		Subsystem: "query",
		Name:      "admission_rejected_total",
		Help:      "Queries rejected by the admission rate limiter.",
	})
)

// MustRegister registers all collectors with reg. Call once at
// process startup; registering twice panics, matching
// client_golang's own contract.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(QueriesTotal, EstimateBracketWidth, EvaluateDuration, AdmissionRejected)
}
