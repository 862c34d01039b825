// Package metrics exposes Prometheus metrics for the identification
// pipeline. Everything registers on the default registry and is served
// by promhttp on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IdentificationsTotal counts finished identification attempts by outcome.
	IdentificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facegate",
		Name:      "identifications_total",
		Help:      "Identification attempts by outcome.",
	}, []string{"outcome"})

	// StageDuration measures per-stage pipeline latency.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facegate",
		Name:      "stage_duration_seconds",
		Help:      "Latency of individual pipeline stages.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"stage"})

	// CacheLookups counts embedding cache lookups by result.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facegate",
		Name:      "cache_lookups_total",
		Help:      "Embedding cache lookups by result (hit or miss).",
	}, []string{"result"})

	// EnrolledEmbeddings tracks the number of live embeddings in the index.
	EnrolledEmbeddings = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facegate",
		Name:      "enrolled_embeddings",
		Help:      "Number of embeddings currently enrolled in the index.",
	})

	// MatchScore observes the best-candidate similarity of each query.
	MatchScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "facegate",
		Name:      "match_score",
		Help:      "Best-candidate similarity score per identification.",
		Buckets:   prometheus.LinearBuckets(0, 0.05, 21),
	})
)

// ObserveStage records the elapsed time of a named pipeline stage.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordOutcome increments the outcome counter.
func RecordOutcome(outcome string) {
	IdentificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordCacheLookup increments the cache lookup counter.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookups.WithLabelValues("hit").Inc()
	} else {
		CacheLookups.WithLabelValues("miss").Inc()
	}
}
