// Package metrics declares the Prometheus instrumentation surface for the
// fusion pipeline. Grounded on ingest/internal/metrics/metrics.go's
// promauto var-block style.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quakefusion_fetch_attempts_total",
			Help: "Total number of source fetch attempts",
		},
		[]string{"source"},
	)

	FetchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quakefusion_fetch_failures_total",
			Help: "Total number of source fetch failures",
		},
		[]string{"source", "kind"},
	)

	FetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quakefusion_fetch_latency_seconds",
			Help:    "Latency of a single source fetch, including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	EventsParsedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quakefusion_events_parsed_total",
			Help: "Total number of events successfully parsed from a source payload",
		},
		[]string{"source"},
	)

	EventsValidatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quakefusion_events_validated_total",
			Help: "Total number of events that passed validation",
		},
		[]string{"source"},
	)

	DeadLettersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quakefusion_dead_letters_total",
			Help: "Total number of records routed to the dead-letter sink",
		},
		[]string{"source", "kind"},
	)

	ClusterRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quakefusion_cluster_run_duration_seconds",
			Help:    "Duration of one clustering-and-unification pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	ClustersFormedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quakefusion_clusters_formed_total",
			Help: "Total number of clusters produced by the clustering engine",
		},
	)

	UnifiedEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quakefusion_unified_events_total",
			Help: "Total number of unified events upserted",
		},
	)

	WindowSizeGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quakefusion_window_size",
			Help: "Number of normalized events read into the most recent clustering window",
		},
	)

	RateLimiterWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quakefusion_ratelimiter_wait_seconds",
			Help:    "Time spent blocked waiting for a rate-limit token",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
)
