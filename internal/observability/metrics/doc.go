// Package metrics provides Prometheus metrics registry and recording
// utilities for the acquisition pipeline: per-source discovery/fetch
// counters, circuit breaker transitions, and rate-limiter wait times.
//
// All metrics are automatically registered with the Prometheus default
// registry; a surrounding process exposes them via a /metrics endpoint if
// it chooses to (out of scope for the core).
//
// Example usage:
//
//	import "github.com/capcat/capcat/internal/observability/metrics"
//
//	start := time.Now()
//	// ... discover articles for a source ...
//	metrics.RecordDiscoveryDuration(sourceID, time.Since(start))
package metrics
