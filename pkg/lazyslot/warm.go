package lazyslot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/lazyslot/pkg/lazyslot/config"
	"github.com/randalmurphal/lazyslot/pkg/lazyslot/observability"
)

// warmConfig controls one warm run.
type warmConfig struct {
	maxConcurrency int
	failFast       bool
}

// WarmOption configures a warm run.
type WarmOption func(*warmConfig)

// WithMaxConcurrency bounds how many factories a warm run executes at
// once. Zero or negative means unlimited.
func WithMaxConcurrency(n int) WarmOption {
	return func(cfg *warmConfig) {
		cfg.maxConcurrency = n
	}
}

// WithFailFast stops scheduling new waves after the first failure.
// Factories already running finish; their slots stay populated.
func WithFailFast() WarmOption {
	return func(cfg *warmConfig) {
		cfg.failFast = true
	}
}

// warmResult carries one slot's outcome out of its goroutine.
type warmResult struct {
	slot string
	err  error
}

// Warm eagerly constructs the named slots plus their transitive declared
// dependencies. Slots build in dependency waves: everything inside a wave
// runs concurrently, bounded by WithMaxConcurrency.
//
// Failures never tear down slots that already built (populated is
// terminal), and dependents of a failed slot are skipped. All failures
// are joined into the returned error.
func (r *Registry) Warm(ctx context.Context, names []string, opts ...WarmOption) error {
	if r.closed.Load() {
		return ErrRegistryClosed
	}
	if ctx == nil {
		return ErrNilContext
	}

	cfg := warmConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	graph := r.dependencyGraph()
	if err := validateGraph(graph); err != nil {
		return err
	}

	var errs []error
	seeds := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := graph[name]; !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNoProvider, name))
			continue
		}
		seeds = append(seeds, name)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	targets := dependencyClosure(graph, seeds)
	if len(targets) == 0 {
		return nil
	}

	observability.LogWarmStart(r.cfg.logger, r.cfg.id, len(targets))

	wctx := ctx
	var span trace.Span
	if r.cfg.tracingEnabled {
		wctx, span = r.cfg.spans.StartWarmSpan(ctx, r.cfg.id, len(targets))
	}

	start := time.Now()
	err := r.warmWaves(wctx, graph, targets, cfg)
	duration := time.Since(start)

	r.cfg.metrics.RecordWarm(ctx, err == nil, duration)
	if r.cfg.tracingEnabled {
		r.cfg.spans.EndSpanWithError(span, err)
	}

	durationMS := float64(duration) / float64(time.Millisecond)
	if err != nil {
		observability.LogWarmError(r.cfg.logger, r.cfg.id, err, durationMS)
		return err
	}
	observability.LogWarmComplete(r.cfg.logger, r.cfg.id, durationMS, len(targets))
	return nil
}

// WarmAll warms every slot with a bound provider.
func (r *Registry) WarmAll(ctx context.Context, opts ...WarmOption) error {
	return r.Warm(ctx, r.Provided(), opts...)
}

// WarmFromConfig warms the slots listed under the config's "warm" key.
// An absent or empty list is a no-op, so a config without a warm section
// leaves everything lazy.
func (r *Registry) WarmFromConfig(ctx context.Context, cfg config.Config, opts ...WarmOption) error {
	names := cfg.StringSlice("warm", nil)
	if len(names) == 0 {
		return nil
	}
	return r.Warm(ctx, names, opts...)
}

// warmWaves schedules the target slots in dependency waves and constructs
// each wave in parallel.
func (r *Registry) warmWaves(ctx context.Context, graph map[string][]string, targets []string, cfg warmConfig) error {
	inSet := make(map[string]bool, len(targets))
	for _, name := range targets {
		inSet[name] = true
	}

	indegree := make(map[string]int, len(targets))
	dependents := make(map[string][]string, len(targets))
	for _, name := range targets {
		for _, dep := range graph[name] {
			if !inSet[dep] {
				continue
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for _, name := range targets {
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}
	slices.Sort(ready)

	// Concurrency control for factories across the whole run.
	var sem chan struct{}
	if cfg.maxConcurrency > 0 {
		sem = make(chan struct{}, cfg.maxConcurrency)
	}

	var errs []error
	for len(ready) > 0 {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		wave := ready
		ready = nil

		results := make(chan warmResult, len(wave))
		var wg sync.WaitGroup
		for _, name := range wave {
			wg.Add(1)
			go func(slot string) {
				defer wg.Done()

				if sem != nil {
					select {
					case sem <- struct{}{}:
						defer func() { <-sem }()
					case <-ctx.Done():
						results <- warmResult{slot: slot, err: ctx.Err()}
						return
					}
				}

				_, err := r.Get(ctx, slot)
				results <- warmResult{slot: slot, err: err}
			}(name)
		}

		// Close the results channel once the wave drains.
		go func() {
			wg.Wait()
			close(results)
		}()

		var woke []string
		for result := range results {
			if result.err != nil {
				errs = append(errs, result.err)
				// Dependents stay blocked: warming them would just
				// re-run the failed factory through dependency
				// resolution.
				continue
			}
			for _, dependent := range dependents[result.slot] {
				indegree[dependent]--
				if indegree[dependent] == 0 {
					woke = append(woke, dependent)
				}
			}
		}

		if len(errs) > 0 && cfg.failFast {
			break
		}
		if len(woke) > 0 {
			slices.Sort(woke)
			ready = woke
		}
	}

	return errors.Join(errs...)
}

// dependencyClosure walks the declared dependency graph breadth-first
// from seeds and returns every reachable slot name, sorted.
func dependencyClosure(graph map[string][]string, seeds []string) []string {
	visited := make(map[string]bool, len(seeds))
	queue := slices.Clone(seeds)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if visited[name] {
			continue
		}
		visited[name] = true
		for _, dep := range graph[name] {
			if _, ok := graph[dep]; !ok {
				continue
			}
			if !visited[dep] {
				queue = append(queue, dep)
			}
		}
	}

	closure := make([]string, 0, len(visited))
	for name := range visited {
		closure = append(closure, name)
	}
	slices.Sort(closure)
	return closure
}
