// Package tracing provides OpenTelemetry span helpers for the acquisition
// pipeline: spans wrap the whole batch run, each source's discovery call
// and each source's article-fetch phase, so a run can be inspected
// end-to-end in a trace backend.
//
// Example usage:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "discovery.rss")
//	defer span.End()
package tracing
