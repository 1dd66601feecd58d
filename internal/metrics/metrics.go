// Package metrics exposes Prometheus collectors for recommendation serving
// and model training.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_requests_total",
			Help: "Recommendation requests by serving source",
		},
		[]string{"source"}, // "cache", "model", "fallback"
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommender_cache_hits_total",
			Help: "Recommendation cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommender_cache_misses_total",
			Help: "Recommendation cache misses",
		},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_cache_errors_total",
			Help: "Cache store failures treated as misses",
		},
		[]string{"operation"},
	)

	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_training_runs_total",
			Help: "Model training attempts by result",
		},
		[]string{"result"}, // "success", "failure"
	)

	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommender_training_duration_seconds",
			Help:    "Duration of model training runs",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		},
	)

	FeedbackUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommender_feedback_updates_total",
			Help: "Feedback events that invalidated a user's cached lists",
		},
	)

	ModelInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recommender_model_size",
			Help: "Size of the installed model",
		},
		[]string{"dimension"}, // "catalog", "users", "items"
	)
)
