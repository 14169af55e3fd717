package errors

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/lazyslot/pkg/lazyslot"
)

// Handler bundles a retry policy with logging and an exhaustion callback.
// A zero-configured Handler retries transient failures per DefaultRetry.
type Handler struct {
	retry       RetryConfig
	logger      *slog.Logger
	onExhausted func(err error)
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// NewHandler creates a new error handler with the given options.
func NewHandler(opts ...HandlerOption) *Handler {
	h := &Handler{
		retry:  DefaultRetry,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) HandlerOption {
	return func(h *Handler) {
		h.retry = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithOnExhausted sets a callback for when all retries are exhausted.
func WithOnExhausted(fn func(err error)) HandlerOption {
	return func(h *Handler) {
		h.onExhausted = fn
	}
}

// Execute runs a function with retry handling.
func (h *Handler) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	result := WithRetryContext(ctx, h.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return h.finish(result.Err, result.Attempts)
}

// ExecuteWithValue runs a function with retry handling and returns a value.
func ExecuteWithValue[T any](
	ctx context.Context,
	h *Handler,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	result := WithRetryContext(ctx, h.retry, fn)
	return result.Value, h.finish(result.Err, result.Attempts)
}

// Resolve resolves a provider-backed slot with retries for transient
// construction failures.
//
// A failed factory leaves its slot empty and re-armed, so each attempt
// here runs the provider's factory again. Permanent failures (panics,
// cycles, type mismatches) return immediately without further attempts.
func Resolve[T any](
	ctx context.Context,
	h *Handler,
	r *lazyslot.Registry,
	name string,
) (T, error) {
	return ExecuteWithValue(ctx, h, func(ctx context.Context) (T, error) {
		return lazyslot.Get[T](ctx, r, name)
	})
}

func (h *Handler) finish(err error, attempts int) error {
	if err == nil {
		return nil
	}
	h.logger.Warn("construction retries exhausted",
		"error", err,
		"attempts", attempts,
	)
	if h.onExhausted != nil {
		h.onExhausted(err)
	}
	return err
}
