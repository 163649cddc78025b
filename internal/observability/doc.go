// Package observability provides observability infrastructure for the
// acquisition pipeline: structured logging, Prometheus metrics, and
// OpenTelemetry tracing.
//
// This package centralizes observability concerns to enable:
//   - Per-run log correlation via a run ID attached to context
//   - Structured logging with context propagation
//   - Prometheus metrics for monitoring discovery and fetch throughput
//   - Span-level tracing of discovery and fetch calls
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics registry and recorders
//   - tracing: OpenTelemetry tracing integration
//
// Example usage:
//
//	import (
//	    "github.com/capcat/capcat/internal/observability/logging"
//	    "github.com/capcat/capcat/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("run started")
//
//	    metrics.RecordRunSummary("hn", 12, 10, 2)
//	}
package observability
