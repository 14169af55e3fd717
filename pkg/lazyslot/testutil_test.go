package lazyslot

import (
	"context"
	"sync"
	"sync/atomic"
)

// Test utilities shared across the package tests.

// constFactory returns a factory that always succeeds with v.
func constFactory[T any](v T) Factory[T] {
	return func(ctx context.Context) (T, error) {
		return v, nil
	}
}

// countingFactory returns a factory that succeeds with v and counts
// how many times it was invoked.
func countingFactory[T any](calls *atomic.Int64, v T) Factory[T] {
	return func(ctx context.Context) (T, error) {
		calls.Add(1)
		return v, nil
	}
}

// failingFactory returns a factory that always fails with err.
func failingFactory[T any](err error) Factory[T] {
	return func(ctx context.Context) (T, error) {
		var zero T
		return zero, err
	}
}

// failNTimesFactory returns a factory that fails with err for the first
// n invocations and succeeds with v afterwards.
func failNTimesFactory[T any](calls *atomic.Int64, n int64, err error, v T) Factory[T] {
	return func(ctx context.Context) (T, error) {
		if calls.Add(1) <= n {
			var zero T
			return zero, err
		}
		return v, nil
	}
}

// panicFactory returns a factory that panics with value.
func panicFactory[T any](value any) Factory[T] {
	return func(ctx context.Context) (T, error) {
		panic(value)
	}
}

// anyFactory adapts a typed constant into the untyped factory shape the
// registry-level API takes.
func anyFactory(v any) Factory[any] {
	return func(ctx context.Context) (any, error) {
		return v, nil
	}
}

// race runs fn on n goroutines that all start together, and waits for
// every one of them to finish.
func race(n int, fn func(i int)) {
	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer done.Done()
			start.Wait()
			fn(i)
		}(i)
	}
	start.Done()
	done.Wait()
}

// orderRecorder collects construction order from concurrent factories.
type orderRecorder struct {
	mu    sync.Mutex
	order []string
}

func (o *orderRecorder) record(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.order = append(o.order, name)
}

func (o *orderRecorder) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}

// recordingFactory records name in rec, then succeeds with v.
func recordingFactory(rec *orderRecorder, name string, v any) Factory[any] {
	return func(ctx context.Context) (any, error) {
		rec.record(name)
		return v, nil
	}
}

// gauge tracks the peak number of concurrently running factories.
type gauge struct {
	mu     sync.Mutex
	active int
	peak   int
}

func (g *gauge) enter() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active++
	if g.active > g.peak {
		g.peak = g.active
	}
}

func (g *gauge) exit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active--
}

func (g *gauge) max() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}
