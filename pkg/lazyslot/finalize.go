package lazyslot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/randalmurphal/lazyslot/pkg/lazyslot/observability"
)

// finalizerEntry records one constructed instance awaiting teardown.
type finalizerEntry struct {
	slot       string
	instanceID string
	value      any
	fn         Finalizer
}

// finalizerStack collects teardown work in construction order so Close
// can run it in reverse.
type finalizerStack struct {
	mu      sync.Mutex
	entries []finalizerEntry
}

// push records a finalizer for a freshly constructed value. With no
// explicit finalizer, values implementing io.Closer are closed by Close.
func (s *finalizerStack) push(slot, instanceID string, value any, fn Finalizer) {
	if fn == nil {
		closer, ok := value.(io.Closer)
		if !ok {
			return
		}
		fn = func(context.Context, any) error {
			return closer.Close()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, finalizerEntry{
		slot:       slot,
		instanceID: instanceID,
		value:      value,
		fn:         fn,
	})
}

// drop removes a slot instance's pending finalizer without running it.
// Reset uses this: the abandoned instance gets no teardown.
func (s *finalizerStack) drop(slot, instanceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = slices.DeleteFunc(s.entries, func(e finalizerEntry) bool {
		return e.slot == slot && e.instanceID == instanceID
	})
}

// drain empties the stack and returns the entries in construction order.
func (s *finalizerStack) drain() []finalizerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.entries
	s.entries = nil
	return entries
}

// Close marks the registry closed and tears down constructed values in
// reverse construction order. Finalizer errors do not stop the
// remaining finalizers; all errors are joined.
//
// Construction, Get, and Warm calls made after Close return
// ErrRegistryClosed. Close is idempotent; only the first call runs
// finalizers. A journal store created by FromConfig is closed here too.
func (r *Registry) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	done := observability.TimedOperation()
	entries := r.finalizers.drain()

	var errs []error
	// Teardown in reverse construction order: values built later may
	// depend on values built earlier.
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if err := e.fn(ctx, e.value); err != nil {
			errs = append(errs, fmt.Errorf("finalize slot %s: %w", e.slot, err))
		}
	}

	if r.cfg.ownsJournal && r.cfg.journal != nil {
		if err := r.cfg.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close journal: %w", err))
		}
	}

	observability.LogCloseComplete(r.cfg.logger, r.cfg.id, len(entries), done())
	return errors.Join(errs...)
}

// Closed reports whether Close has been called.
func (r *Registry) Closed() bool {
	return r.closed.Load()
}
