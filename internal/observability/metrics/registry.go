// Package metrics provides Prometheus metrics for the acquisition pipeline:
// circuit breaker transitions, rate-limiter waits, and per-run discovery/fetch
// counts. All metrics are registered with the Prometheus default
// registry via promauto.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ArticlesDiscoveredTotal counts articles discovered per source, before
	// cross-source deduplication.
	ArticlesDiscoveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capcat_articles_discovered_total",
			Help: "Total number of articles discovered from a source in a run",
		},
		[]string{"source_id"},
	)

	// ArticlesFetchedTotal counts successful article fetches per source.
	ArticlesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capcat_articles_fetched_total",
			Help: "Total number of articles successfully fetched per source",
		},
		[]string{"source_id"},
	)

	// ArticlesFailedTotal counts failed article fetches per source, labeled
	// by error_kind.
	ArticlesFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capcat_articles_failed_total",
			Help: "Total number of failed article fetches per source",
		},
		[]string{"source_id", "error_kind"},
	)

	// SourcesSkippedTotal counts sources abandoned for a run after
	// exhausting discovery retries.
	SourcesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capcat_sources_skipped_total",
			Help: "Total number of sources skipped after exhausting retries",
		},
		[]string{"source_id", "error_kind"},
	)

	// DuplicatesElidedTotal counts cross-source duplicate URLs dropped
	// during Phase 2 of the batch processor.
	DuplicatesElidedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capcat_duplicates_elided_total",
			Help: "Total number of cross-source duplicate URLs elided in a run",
		},
	)

	// DiscoveryDuration measures wall-clock time of a single source's
	// discovery call.
	DiscoveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "capcat_discovery_duration_seconds",
			Help:    "Time taken to discover articles for a source",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"source_id"},
	)

	// FetchDuration measures wall-clock time of a single article fetch.
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "capcat_fetch_duration_seconds",
			Help:    "Time taken to fetch a single article",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"source_id"},
	)

	// CircuitBreakerTransitionsTotal counts state transitions per source,
	// labeled by the destination state.
	CircuitBreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capcat_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"source_id", "to_state"},
	)

	// RateLimiterWaitSeconds measures time spent blocked in a token-bucket
	// Acquire call per source.
	RateLimiterWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "capcat_rate_limiter_wait_seconds",
			Help:    "Time spent waiting for a rate-limit token",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"source_id"},
	)
)

// RecordRunSummary records a completed batch run's per-source counters
// against the metrics above. Called once per source at the end of
// batch.Processor.Run.
func RecordRunSummary(sourceID string, discovered, fetched, failed int) {
	if discovered > 0 {
		ArticlesDiscoveredTotal.WithLabelValues(sourceID).Add(float64(discovered))
	}
	if fetched > 0 {
		ArticlesFetchedTotal.WithLabelValues(sourceID).Add(float64(fetched))
	}
	_ = failed // failures are recorded individually with their error_kind via ArticlesFailedTotal
}

// RecordDiscoveryDuration observes how long a single source's discovery
// call took.
func RecordDiscoveryDuration(sourceID string, d time.Duration) {
	DiscoveryDuration.WithLabelValues(sourceID).Observe(d.Seconds())
}

// RecordFetchDuration observes how long a single article fetch took.
func RecordFetchDuration(sourceID string, d time.Duration) {
	FetchDuration.WithLabelValues(sourceID).Observe(d.Seconds())
}
