package lazyslot

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Finalizer releases a constructed value during Close(). Finalizers run
// in reverse construction order.
type Finalizer func(ctx context.Context, value any) error

// provider is a factory bound to a slot name ahead of use.
type provider struct {
	factory   Factory[any]
	deps      []string
	finalizer Finalizer
}

// ProvideOption configures a bound provider.
type ProvideOption func(*provider)

// WithDependencies declares the slots this provider resolves. Declared
// dependencies are constructed before the factory runs, ordered ahead of
// it by Warm, and checked for cycles by ValidateDependencies.
func WithDependencies(names ...string) ProvideOption {
	return func(p *provider) {
		p.deps = append(p.deps, names...)
	}
}

// WithFinalizer sets the teardown function Close() runs for the value
// this provider constructs. Without it, values implementing io.Closer are
// closed automatically.
func WithFinalizer(fn Finalizer) ProvideOption {
	return func(p *provider) {
		p.finalizer = fn
	}
}

// Provide binds a factory to name so Get and Warm can construct the slot
// on demand. Binding the same name twice returns ErrAlreadyProvided:
// silently swapping a provider would make it ambiguous which factory won
// a construction race.
func (r *Registry) Provide(name string, factory Factory[any], opts ...ProvideOption) error {
	if r.closed.Load() {
		return ErrRegistryClosed
	}
	if name == "" {
		return ErrEmptyName
	}
	if factory == nil {
		return ErrNilFactory
	}

	p := &provider{factory: factory}
	for _, opt := range opts {
		opt(p)
	}

	r.providersMu.Lock()
	defer r.providersMu.Unlock()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyProvided, name)
	}
	r.providers[name] = p
	return nil
}

// Provide is the typed form of Registry.Provide.
func Provide[T any](r *Registry, name string, factory Factory[T], opts ...ProvideOption) error {
	if factory == nil {
		return ErrNilFactory
	}
	return r.Provide(name, func(ctx context.Context) (any, error) {
		return factory(ctx)
	}, opts...)
}

// Get returns the value stored under name, constructing it through the
// bound provider if the slot is empty. Returns ErrNoProvider when the
// slot is empty and nothing is bound.
func (r *Registry) Get(ctx context.Context, name string) (any, error) {
	if r.closed.Load() {
		return nil, ErrRegistryClosed
	}
	if ctx == nil {
		return nil, ErrNilContext
	}
	if name == "" {
		return nil, ErrEmptyName
	}

	// Populated slots answer without consulting providers.
	if st, ok := r.peekSlot(name); ok {
		if e := st.entry.Load(); e != nil {
			return e.value, nil
		}
	}

	r.providersMu.RLock()
	p, ok := r.providers[name]
	r.providersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoProvider, name)
	}

	return r.construct(ctx, r.slot(name), p.resolve(r), p.finalizer)
}

// resolve returns the provider's factory, prefixed with declared
// dependency resolution so dependencies are populated before the factory
// runs. Dependency failures surface through the dependent's construction
// error chain.
func (p *provider) resolve(r *Registry) Factory[any] {
	if len(p.deps) == 0 {
		return p.factory
	}
	return func(ctx context.Context) (any, error) {
		for _, dep := range p.deps {
			if _, err := r.Get(ctx, dep); err != nil {
				return nil, fmt.Errorf("dependency %s: %w", dep, err)
			}
		}
		return p.factory(ctx)
	}
}

// Provided returns the sorted names of all bound providers.
func (r *Registry) Provided() []string {
	r.providersMu.RLock()
	defer r.providersMu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// HasProvider reports whether a factory is bound to name.
func (r *Registry) HasProvider(name string) bool {
	r.providersMu.RLock()
	defer r.providersMu.RUnlock()
	_, ok := r.providers[name]
	return ok
}

// ValidateDependencies checks the declared dependency graph.
//
// It performs the following steps:
//  1. Every declared dependency has a bound provider.
//  2. The dependency relation is acyclic.
//
// All problems found are joined into a single error.
func (r *Registry) ValidateDependencies() error {
	return validateGraph(r.dependencyGraph())
}

// DependencyOrder returns the bound slot names in an order where every
// slot appears after its declared dependencies. The order is
// deterministic: ties break alphabetically.
func (r *Registry) DependencyOrder() ([]string, error) {
	graph := r.dependencyGraph()
	if err := validateGraph(graph); err != nil {
		return nil, err
	}
	return topoOrder(graph), nil
}

// dependencyGraph snapshots the declared dependencies of all providers.
func (r *Registry) dependencyGraph() map[string][]string {
	r.providersMu.RLock()
	defer r.providersMu.RUnlock()
	graph := make(map[string][]string, len(r.providers))
	for name, p := range r.providers {
		graph[name] = slices.Clone(p.deps)
	}
	return graph
}

func validateGraph(graph map[string][]string) error {
	names := make([]string, 0, len(graph))
	for name := range graph {
		names = append(names, name)
	}
	slices.Sort(names)

	var errs []error
	for _, name := range names {
		for _, dep := range graph[name] {
			if _, ok := graph[dep]; !ok {
				errs = append(errs, fmt.Errorf("%w: %s requires %s", ErrUnknownDependency, name, dep))
			}
		}
	}
	if cycle := findCycle(graph, names); cycle != nil {
		errs = append(errs, &CycleError{Path: cycle})
	}
	return errors.Join(errs...)
}

// Depth-first search colors.
const (
	colorWhite = iota
	colorGray
	colorBlack
)

// findCycle returns one dependency cycle as a path ending where it
// started, or nil when the graph is acyclic. Dangling dependencies are
// skipped; validateGraph reports those separately.
func findCycle(graph map[string][]string, names []string) []string {
	state := make(map[string]int, len(graph))
	var path []string

	var visit func(name string) []string
	visit = func(name string) []string {
		state[name] = colorGray
		path = append(path, name)
		for _, dep := range graph[name] {
			if _, ok := graph[dep]; !ok {
				continue
			}
			switch state[dep] {
			case colorGray:
				start := slices.Index(path, dep)
				cycle := slices.Clone(path[start:])
				return append(cycle, dep)
			case colorWhite:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}
		path = path[:len(path)-1]
		state[name] = colorBlack
		return nil
	}

	for _, name := range names {
		if state[name] == colorWhite {
			if cycle := visit(name); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// topoOrder sorts an acyclic graph so dependencies come before their
// dependents, breaking ties alphabetically.
func topoOrder(graph map[string][]string) []string {
	indegree := make(map[string]int, len(graph))
	dependents := make(map[string][]string, len(graph))
	for name, deps := range graph {
		for _, dep := range deps {
			if _, ok := graph[dep]; !ok {
				continue
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for name := range graph {
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}
	slices.Sort(ready)

	order := make([]string, 0, len(graph))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		var woke []string
		for _, dependent := range dependents[name] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				woke = append(woke, dependent)
			}
		}
		if len(woke) > 0 {
			ready = append(ready, woke...)
			slices.Sort(ready)
		}
	}
	return order
}
