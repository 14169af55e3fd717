// Package observability provides production-grade observability features
// for lazyslot: structured logging, metrics, and distributed tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
// Nothing here runs on the populated fast path of a slot.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds registry context to a logger.
// Returns a new logger with registry_id and slot fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "reg-4f2a", "db")
//	enriched.Info("doing work") // includes registry_id, slot
func EnrichLogger(logger *slog.Logger, registryID, slot string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("registry_id", registryID),
		slog.String("slot", slot),
	)
}

// LogConstructStart logs the start of a slot construction.
func LogConstructStart(logger *slog.Logger, slot string) {
	if logger == nil {
		return
	}
	logger.Debug("slot construction starting",
		slog.String("slot", slot),
	)
}

// LogConstructComplete logs a successful slot construction.
func LogConstructComplete(logger *slog.Logger, slot string, durationMs float64, instanceID string) {
	if logger == nil {
		return
	}
	logger.Info("slot constructed",
		slog.String("slot", slot),
		slog.Float64("duration_ms", durationMs),
		slog.String("instance_id", instanceID),
	)
}

// LogConstructError logs a failed slot construction.
// The slot stays empty after a failure, so the next caller retries.
func LogConstructError(logger *slog.Logger, slot string, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("slot construction failed",
		slog.String("slot", slot),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogSlotReset logs a test-only slot reset.
func LogSlotReset(logger *slog.Logger, slot string) {
	if logger == nil {
		return
	}
	logger.Warn("slot reset",
		slog.String("slot", slot),
	)
}

// LogWarmStart logs the start of a warm run.
func LogWarmStart(logger *slog.Logger, registryID string, slots int) {
	if logger == nil {
		return
	}
	logger.Info("warm run starting",
		slog.String("registry_id", registryID),
		slog.Int("slots", slots),
	)
}

// LogWarmComplete logs successful warm run completion.
func LogWarmComplete(logger *slog.Logger, registryID string, durationMs float64, constructed int) {
	if logger == nil {
		return
	}
	logger.Info("warm run completed",
		slog.String("registry_id", registryID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("slots_constructed", constructed),
	)
}

// LogWarmError logs warm run failure.
func LogWarmError(logger *slog.Logger, registryID string, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("warm run failed",
		slog.String("registry_id", registryID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogJournalAppend logs a journal entry append.
func LogJournalAppend(logger *slog.Logger, slot string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("journal entry appended",
		slog.String("slot", slot),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogJournalError logs a journal failure (non-fatal unless configured).
func LogJournalError(logger *slog.Logger, slot string, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("journal operation failed",
		slog.String("slot", slot),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// LogPublishError logs a lifecycle event publish failure (non-fatal).
func LogPublishError(logger *slog.Logger, slot string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("event publish failed",
		slog.String("slot", slot),
		slog.String("error", err.Error()),
	)
}

// LogCloseComplete logs registry teardown.
func LogCloseComplete(logger *slog.Logger, registryID string, finalized int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("registry closed",
		slog.String("registry_id", registryID),
		slog.Int("finalized", finalized),
		slog.Float64("duration_ms", durationMs),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
