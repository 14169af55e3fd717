package lazyslot

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Factory constructs the value for a slot. It runs at most once per slot
// lifetime on the success path: concurrent callers of the same slot block
// until the winning factory finishes and then share its result.
type Factory[T any] func(ctx context.Context) (T, error)

// Slot is a lazily-initialized cell holding at most one value of type T.
//
// The zero value is ready to use. Once a factory succeeds the slot is
// populated and every later Get returns the same instance without taking a
// lock: the populated fast path is a single atomic load. While the slot is
// empty, Get serializes callers on the slot's own mutex and re-checks after
// acquiring it, so exactly one factory call can succeed no matter how many
// goroutines race.
//
// A factory that returns an error or panics leaves the slot empty. The
// failure is reported only to the caller whose factory ran; callers that
// were blocked behind it re-check, find the slot still empty, and run
// their own attempt.
//
// A Slot must not be copied after first use.
type Slot[T any] struct {
	mu            sync.Mutex
	value         atomic.Pointer[T]
	constructions atomic.Int64
}

// NewSlot creates an empty slot. Equivalent to new(Slot[T]).
func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{}
}

// Get returns the slot's value, constructing it with factory if the slot
// is empty. The context is passed through to the factory; it does not
// cancel waiting (a caller blocked behind a running factory stays blocked
// until that factory finishes).
//
// A factory must not call Get on its own slot: that self-deadlocks, the
// same as a recursive sync.Once.Do.
func (s *Slot[T]) Get(ctx context.Context, factory Factory[T]) (T, error) {
	if p := s.value.Load(); p != nil {
		return *p, nil
	}

	var zero T
	if ctx == nil {
		return zero, ErrNilContext
	}
	if factory == nil {
		return zero, ErrNilFactory
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check: another caller may have populated the slot while this
	// one waited for the lock.
	if p := s.value.Load(); p != nil {
		return *p, nil
	}

	v, err := runFactory(ctx, "", factory)
	if err != nil {
		// The slot stays empty; the next caller gets a fresh attempt.
		return zero, err
	}

	// The atomic store publishes the fully-constructed value to
	// lock-free readers.
	s.value.Store(&v)
	s.constructions.Add(1)
	return v, nil
}

// Peek returns the value if the slot is populated. It never constructs.
func (s *Slot[T]) Peek() (T, bool) {
	if p := s.value.Load(); p != nil {
		return *p, true
	}
	var zero T
	return zero, false
}

// Populated reports whether the slot holds a value.
func (s *Slot[T]) Populated() bool {
	return s.value.Load() != nil
}

// Constructions returns how many factory calls have succeeded since the
// slot was created or last reset. It never exceeds 1 between resets.
func (s *Slot[T]) Constructions() int64 {
	return s.constructions.Load()
}

// Reset clears the slot and zeroes its construction counter.
//
// Reset exists for test isolation only. It abandons the current instance
// without any teardown, and resetting while other goroutines still hold
// or are constructing the value is unsafe.
func (s *Slot[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value.Store(nil)
	s.constructions.Store(0)
}

// runFactory invokes factory with panic recovery. A recovered panic
// becomes a *PanicError carrying the stack; slot is empty for standalone
// slots, which have no name.
func runFactory[T any](ctx context.Context, slot string, factory Factory[T]) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = &PanicError{Slot: slot, Value: r, Stack: string(debug.Stack())}
		}
	}()
	return factory(ctx)
}
