package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns the tracer used for spans across the module.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartAuthSpan creates a span for a call made by the auth service.
func StartAuthSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "auth."+operation,
		trace.WithAttributes(
			attribute.String("classdesk.auth.operation", operation),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan records err on the span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
