package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the global tracer instance for the acquisition pipeline.
var tracer = otel.Tracer("capcat")

// GetTracer returns the global tracer for creating spans.
// This tracer can be used throughout the application to create new spans.
//
// Example usage:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "operation-name")
//	defer span.End()
func GetTracer() trace.Tracer {
	return tracer
}

// Init installs an SDK tracer provider as the process-global provider and
// returns its shutdown function. Span exporters are supplied by the
// caller via opts; without one, spans are created (so instrumented code
// paths still run) but not exported anywhere.
//
//	shutdown := tracing.Init(sdktrace.WithBatcher(exporter))
//	defer func() { _ = shutdown(context.Background()) }()
func Init(opts ...sdktrace.TracerProviderOption) func(context.Context) error {
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	tracer = otel.Tracer("capcat")
	return tp.Shutdown
}

// StartSpan starts a span on the pipeline tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, opts...)
}
