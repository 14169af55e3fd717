// Package errors provides categorization and retry strategies for
// construction failures.
//
// A failed factory leaves its slot empty and re-armed, so callers decide
// whether another attempt is worth making. The package implements that
// decision in layers:
//   - Categorization: classify a construction error as transient or permanent
//   - Retry: re-run transient failures with exponential backoff
//   - Handler: bundle a retry policy with logging and exhaustion callbacks
package errors

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/lazyslot/pkg/lazyslot"
)

// Category represents how a construction error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: timeouts, temporary network issues while dialing.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: factory panics, dependency cycles, type mismatches.
	CategoryPermanent
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Retries is the number of attempts that have been made.
	Retries int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Retries)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Retries)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  context,
	}
}

// Transient creates a transient error.
func Transient(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, context)
}

// Permanent creates a permanent error.
func Permanent(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryPermanent, context)
}

// temporary is the classic stdlib shape for self-reporting errors
// (net.Error among others).
type temporary interface {
	Temporary() bool
}

// Categorize determines how a construction error should be handled.
//
// Wrapping is unwrapped along the way, so a transient cause inside a
// ConstructionError is still recognized as transient.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent // shouldn't happen, fail safe
	}

	// Check for already-categorized errors
	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	// A panicking factory will panic again
	var panicErr *lazyslot.PanicError
	if errors.As(err, &panicErr) {
		return CategoryPermanent
	}

	// Structural failures cannot be retried away
	switch {
	case errors.Is(err, lazyslot.ErrInitCycle),
		errors.Is(err, lazyslot.ErrTypeMismatch),
		errors.Is(err, lazyslot.ErrNoProvider),
		errors.Is(err, lazyslot.ErrRegistryClosed),
		errors.Is(err, lazyslot.ErrNilFactory),
		errors.Is(err, lazyslot.ErrEmptyName):
		return CategoryPermanent
	}

	// A deadline can pass on the next attempt; a cancellation was asked for
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}
	if errors.Is(err, context.Canceled) {
		return CategoryPermanent
	}

	// Errors that self-report as temporary
	var tmp temporary
	if errors.As(err, &tmp) && tmp.Temporary() {
		return CategoryTransient
	}

	// Unknown errors are permanent (fail safe)
	return CategoryPermanent
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}
