package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope for substrate spans.
const tracerName = "taskcore"

// StartLockSpan opens a span around a lock acquisition.
func StartLockSpan(ctx context.Context, resourceKey, ownerID string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "lock.acquire",
		trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(
		attribute.String("lock.resource", resourceKey),
		attribute.String("lock.owner", ownerID),
	)
	return ctx, span
}

// StartInvokeSpan opens a span around an external agent invocation.
func StartInvokeSpan(ctx context.Context, class string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "invoke."+class,
		trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("invoke.class", class))
	return ctx, span
}

// EndInvokeSpan closes an invocation span with usage attributes.
func EndInvokeSpan(span trace.Span, inputUnits, outputUnits int64, costUSD float64, err error) {
	span.SetAttributes(
		attribute.Int64("invoke.units.input", inputUnits),
		attribute.Int64("invoke.units.output", outputUnits),
		attribute.Float64("invoke.cost_usd", costUSD),
	)
	End(span, err)
}

// StartHealSpan opens a span around one healing chain walk.
func StartHealSpan(ctx context.Context, repoPath string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "healing.heal",
		trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String("healing.repo", repoPath))
	return ctx, span
}

// End finishes a span, recording err as its status when non-nil.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
