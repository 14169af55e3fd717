package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records lazyslot metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
//
// Only slow-path events are recorded. Reads of a populated slot are a
// single atomic load and carry no instrumentation.
type MetricsRecorder interface {
	// RecordConstruction records a factory run with its duration and error status.
	RecordConstruction(ctx context.Context, slot string, duration time.Duration, err error)

	// RecordContention records a caller that lost the construction race
	// and received the winner's instance after waiting on the slot lock.
	RecordContention(ctx context.Context, slot string)

	// RecordReset records a test-only slot reset.
	RecordReset(ctx context.Context, slot string)

	// RecordWarm records a warm run completion.
	RecordWarm(ctx context.Context, success bool, duration time.Duration)

	// RecordJournalAppend records a journal entry append.
	RecordJournalAppend(ctx context.Context, slot string, sizeBytes int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	constructions      metric.Int64Counter
	constructLatency   metric.Float64Histogram
	constructionErrors metric.Int64Counter
	contention         metric.Int64Counter
	resets             metric.Int64Counter
	warmRuns           metric.Int64Counter
	warmLatency        metric.Float64Histogram
	journalSize        metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("lazyslot")

	constructions, err := meter.Int64Counter("lazyslot.constructions",
		metric.WithDescription("Number of factory runs"),
	)
	if err != nil {
		return nil, err
	}

	constructLatency, err := meter.Float64Histogram("lazyslot.construction.latency_ms",
		metric.WithDescription("Factory run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	constructionErrors, err := meter.Int64Counter("lazyslot.construction.errors",
		metric.WithDescription("Number of failed factory runs"),
	)
	if err != nil {
		return nil, err
	}

	contention, err := meter.Int64Counter("lazyslot.contention",
		metric.WithDescription("Callers that waited on a slot lock and lost the construction race"),
	)
	if err != nil {
		return nil, err
	}

	resets, err := meter.Int64Counter("lazyslot.resets",
		metric.WithDescription("Number of test-only slot resets"),
	)
	if err != nil {
		return nil, err
	}

	warmRuns, err := meter.Int64Counter("lazyslot.warm.runs",
		metric.WithDescription("Number of warm runs"),
	)
	if err != nil {
		return nil, err
	}

	warmLatency, err := meter.Float64Histogram("lazyslot.warm.latency_ms",
		metric.WithDescription("Warm run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	journalSize, err := meter.Int64Histogram("lazyslot.journal.size_bytes",
		metric.WithDescription("Journal entry size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		constructions:      constructions,
		constructLatency:   constructLatency,
		constructionErrors: constructionErrors,
		contention:         contention,
		resets:             resets,
		warmRuns:           warmRuns,
		warmLatency:        warmLatency,
		journalSize:        journalSize,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordConstruction records a factory run.
func (m *otelMetrics) RecordConstruction(ctx context.Context, slot string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("slot", slot),
	}

	m.constructions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.constructLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.constructionErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordContention records a lost construction race.
func (m *otelMetrics) RecordContention(ctx context.Context, slot string) {
	m.contention.Add(ctx, 1, metric.WithAttributes(
		attribute.String("slot", slot),
	))
}

// RecordReset records a slot reset.
func (m *otelMetrics) RecordReset(ctx context.Context, slot string) {
	m.resets.Add(ctx, 1, metric.WithAttributes(
		attribute.String("slot", slot),
	))
}

// RecordWarm records a warm run.
func (m *otelMetrics) RecordWarm(ctx context.Context, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.Bool("success", success),
	}
	m.warmRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.warmLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordJournalAppend records a journal entry append.
func (m *otelMetrics) RecordJournalAppend(ctx context.Context, slot string, sizeBytes int64) {
	m.journalSize.Record(ctx, sizeBytes, metric.WithAttributes(
		attribute.String("slot", slot),
	))
}
