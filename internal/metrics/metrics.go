// Package metrics holds the Prometheus collectors for rapport.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rapport_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rapport_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rapport_evaluations_total",
			Help: "Messages evaluated, by sentiment category.",
		},
		[]string{"category"},
	)

	MoodScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rapport_mood_score",
			Help:    "Distribution of mood scores after each evaluation.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	RoastDefenseTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rapport_roast_defense_total",
			Help: "Roast defense activations, by level.",
		},
		[]string{"level"},
	)

	ThrottledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rapport_throttled_total",
			Help: "Messages answered with a busy response because the user was rate limited.",
		},
	)

	StateResetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rapport_state_resets_total",
			Help: "Per-user documents reset to defaults after a corrupt load.",
		},
		[]string{"kind"},
	)

	MemoryStoreTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rapport_memory_store_total",
			Help: "Memory store attempts, by status.",
		},
		[]string{"status"},
	)

	MemoryQueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rapport_memory_query_duration_seconds",
			Help:    "Memory query latency including embedding.",
			Buckets: prometheus.DefBuckets,
		},
	)

	MemoryIndexSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rapport_memory_index_size",
			Help: "Number of vectors in the in-memory index.",
		},
	)

	MemoryPrunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rapport_memory_pruned_total",
			Help: "Memory records removed by the retention policy.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		EvaluationsTotal,
		MoodScore,
		RoastDefenseTotal,
		ThrottledTotal,
		StateResetsTotal,
		MemoryStoreTotal,
		MemoryQueryDuration,
		MemoryIndexSize,
		MemoryPrunedTotal,
	)
}
