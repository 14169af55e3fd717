package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest creates a test tracer provider with an in-memory span recorder.
func setupTracingTest(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	originalProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	// Update the package-level tracer
	tracer = otel.Tracer("lazyslot")

	cleanup := func() {
		otel.SetTracerProvider(originalProvider)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	}

	return exporter, cleanup
}

func TestStartWarmSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	t.Run("creates span with correct name and attributes", func(t *testing.T) {
		ctx := context.Background()
		_, span := StartWarmSpan(ctx, "reg-123", 4)
		require.NotNil(t, span)

		// End the span to flush it to the exporter
		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, "lazyslot.warm", s.Name)

		var registryID string
		var slots int64
		for _, attr := range s.Attributes {
			switch attr.Key {
			case "registry.id":
				registryID = attr.Value.AsString()
			case "slots":
				slots = attr.Value.AsInt64()
			}
		}
		assert.Equal(t, "reg-123", registryID)
		assert.Equal(t, int64(4), slots)
	})

	t.Run("returns context with span", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		newCtx, span := StartWarmSpan(ctx, "reg", 1)

		assert.NotEqual(t, ctx, newCtx)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
	})
}

func TestStartConstructSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	t.Run("creates span with slot name suffix", func(t *testing.T) {
		ctx := context.Background()
		_, span := StartConstructSpan(ctx, "db", "inst-1")
		require.NotNil(t, span)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, "lazyslot.slot.db", s.Name)

		var slot, instanceID string
		for _, attr := range s.Attributes {
			switch attr.Key {
			case "slot":
				slot = attr.Value.AsString()
			case "instance.id":
				instanceID = attr.Value.AsString()
			}
		}
		assert.Equal(t, "db", slot)
		assert.Equal(t, "inst-1", instanceID)
	})

	t.Run("construct spans nest under the warm span", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		ctx, warmSpan := StartWarmSpan(ctx, "reg", 1)

		_, constructSpan := StartConstructSpan(ctx, "db", "inst-2")
		constructSpan.End()

		warmSpan.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 2)

		var constructData *tracetest.SpanStub
		for i := range spans {
			if spans[i].Name == "lazyslot.slot.db" {
				constructData = &spans[i]
				break
			}
		}
		require.NotNil(t, constructData)

		assert.True(t, constructData.Parent.IsValid())
	})
}

func TestEndSpanWithError(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	t.Run("sets OK status for nil error", func(t *testing.T) {
		ctx := context.Background()
		_, span := StartConstructSpan(ctx, "db", "inst-1")

		EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		assert.Equal(t, codes.Ok, spans[0].Status.Code)
		assert.Equal(t, "", spans[0].Status.Description)
	})

	t.Run("sets Error status and records error", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		_, span := StartConstructSpan(ctx, "db", "inst-2")
		testErr := errors.New("factory exploded")

		EndSpanWithError(span, testErr)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, codes.Error, s.Status.Code)
		assert.Equal(t, "factory exploded", s.Status.Description)

		// Check that error was recorded as an event
		require.NotEmpty(t, s.Events)
		found := false
		for _, event := range s.Events {
			if event.Name == "exception" {
				found = true
			}
		}
		assert.True(t, found, "Expected exception event")
	})

	t.Run("nil span does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			EndSpanWithError(nil, nil)
		})
		assert.NotPanics(t, func() {
			EndSpanWithError(nil, errors.New("test"))
		})
	})
}

func TestAddSpanEvent(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	t.Run("adds event to current span", func(t *testing.T) {
		ctx := context.Background()
		ctx, span := StartConstructSpan(ctx, "db", "inst-1")

		AddSpanEvent(ctx, "journal_appended",
			attribute.String("slot", "db"),
			attribute.Int64("size_bytes", 1024),
		)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		require.NotEmpty(t, s.Events)

		var found bool
		for _, event := range s.Events {
			if event.Name == "journal_appended" {
				found = true
				var slot string
				var sizeBytes int64
				for _, attr := range event.Attributes {
					switch attr.Key {
					case "slot":
						slot = attr.Value.AsString()
					case "size_bytes":
						sizeBytes = attr.Value.AsInt64()
					}
				}
				assert.Equal(t, "db", slot)
				assert.Equal(t, int64(1024), sizeBytes)
			}
		}
		assert.True(t, found, "Expected to find journal_appended event")
	})

	t.Run("no panic with no current span", func(t *testing.T) {
		ctx := context.Background()
		assert.NotPanics(t, func() {
			AddSpanEvent(ctx, "test_event")
		})
	})
}

func TestSpanManager_Interface(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()
	require.NotNil(t, sm)

	t.Run("StartWarmSpan via interface", func(t *testing.T) {
		ctx := context.Background()
		_, span := sm.StartWarmSpan(ctx, "reg", 2)
		require.NotNil(t, span)

		sm.EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.NotEmpty(t, spans)
	})

	t.Run("StartConstructSpan via interface", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		_, span := sm.StartConstructSpan(ctx, "cache", "inst-9")
		require.NotNil(t, span)

		sm.EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.NotEmpty(t, spans)
		assert.Equal(t, "lazyslot.slot.cache", spans[0].Name)
	})

	t.Run("AddSpanEvent via interface", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		ctx, span := sm.StartWarmSpan(ctx, "reg", 1)

		sm.AddSpanEvent(ctx, "custom_event", attribute.String("key", "value"))

		sm.EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.NotEmpty(t, spans)
		require.NotEmpty(t, spans[0].Events)
	})
}

func TestOtelSpanManager_ErrorDescription(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := &otelSpanManager{}

	ctx := context.Background()
	_, span := sm.StartConstructSpan(ctx, "db", "inst-1")

	wrappedErr := errors.New("construct slot db: inner error")
	sm.EndSpanWithError(span, wrappedErr)

	spans := exporter.GetSpans()
	require.NotEmpty(t, spans)
	assert.Contains(t, spans[0].Status.Description, "construct slot db: inner error")
}
