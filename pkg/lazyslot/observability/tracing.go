package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the lazyslot tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("lazyslot")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartWarmSpan starts a span for an entire warm run.
	// Returns the context with span and the span itself.
	StartWarmSpan(ctx context.Context, registryID string, slots int) (context.Context, trace.Span)

	// StartConstructSpan starts a span for one slot construction.
	// During a warm run the construct span is a child of the warm span.
	StartConstructSpan(ctx context.Context, slot, instanceID string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartWarmSpan starts a span for an entire warm run.
func (m *otelSpanManager) StartWarmSpan(ctx context.Context, registryID string, slots int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "lazyslot.warm",
		trace.WithAttributes(
			attribute.String("registry.id", registryID),
			attribute.Int("slots", slots),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartConstructSpan starts a span for one slot construction.
func (m *otelSpanManager) StartConstructSpan(ctx context.Context, slot, instanceID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "lazyslot.slot."+slot,
		trace.WithAttributes(
			attribute.String("slot", slot),
			attribute.String("instance.id", instanceID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Convenience functions that operate on the global tracer.
// These are useful for simple cases where you don't need the interface.

// StartWarmSpan starts a span for an entire warm run.
// Uses the global OTel tracer.
func StartWarmSpan(ctx context.Context, registryID string, slots int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "lazyslot.warm",
		trace.WithAttributes(
			attribute.String("registry.id", registryID),
			attribute.Int("slots", slots),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartConstructSpan starts a span for one slot construction.
// Uses the global OTel tracer.
func StartConstructSpan(ctx context.Context, slot, instanceID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "lazyslot.slot."+slot,
		trace.WithAttributes(
			attribute.String("slot", slot),
			attribute.String("instance.id", instanceID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
