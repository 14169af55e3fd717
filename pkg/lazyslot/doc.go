/*
Package lazyslot provides named slots with at-most-once lazy construction.

# Overview

lazyslot is a Go library for deferring expensive construction until first
use while guaranteeing that concurrent first uses run the factory exactly
once. Each slot holds at most one instance; reads of a populated slot are
a single atomic load with no locking.

The library centers on two types:
  - Slot[T]: a standalone typed cell with one value
  - Registry: a sharded, string-keyed collection of slots with
    providers, dependency-ordered warmup, journaling, and finalization

# Basic Usage

Construct on first access, share the instance afterwards:

	var pool lazyslot.Slot[*Pool]

	func getPool(ctx context.Context) (*Pool, error) {
	    return pool.Get(ctx, func(ctx context.Context) (*Pool, error) {
	        return NewPool(ctx, "users_db") // runs at most once
	    })
	}

Every caller of getPool receives the same *Pool. If the factory returns
an error, only the caller whose factory ran sees it; the slot stays
empty and the next caller tries again with its own factory.

# Registry

Group slots by name when the set of instances is dynamic:

	reg := lazyslot.New(lazyslot.WithLogger(logger))
	defer reg.Close(context.Background())

	db, err := lazyslot.GetOrCreate(ctx, reg, "db", func(ctx context.Context) (*sql.DB, error) {
	    return sql.Open("sqlite", path)
	})

Typed access to a slot that holds another type returns
*TypeMismatchError rather than panicking.

# Providers and Warmup

Bind factories ahead of time and construct them before traffic arrives:

	reg.Provide("db", openDB)
	reg.Provide("cache", openCache, lazyslot.WithDependencies("db"))

	// Construct everything, dependencies first, four at a time.
	if err := reg.WarmAll(ctx, lazyslot.WithMaxConcurrency(4)); err != nil {
	    log.Fatal(err)
	}

Warm validates the declared dependency graph first and joins all
construction failures into one error. Slots whose dependencies failed
are left unconstructed.

# Failure and Re-arm

A factory error or panic publishes nothing. The slot re-arms and the
next caller constructs from scratch:

	_, err := reg.Get(ctx, "db") // factory fails -> err, slot empty
	_, err = reg.Get(ctx, "db")  // factory runs again

Panics inside factories are recovered and converted to *PanicError with
a stack trace. Same-goroutine construction cycles are detected and
returned as *CycleError instead of deadlocking.

# Journal

Record construction outcomes durably:

	store, err := journal.NewSQLiteStore("./journal.db")
	if err != nil {
	    log.Fatal(err)
	}

	reg := lazyslot.New(
	    lazyslot.WithRegistryID("api"),
	    lazyslot.WithJournal(store),
	)

Entries record the slot, outcome kind, instance ID, and duration, in
sequence order per registry. journal.Summarize folds a trail into
per-slot summaries.

# Observability

Enable logging, metrics, and tracing:

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	reg := lazyslot.New(
	    lazyslot.WithLogger(logger),
	    lazyslot.WithMetrics(),
	    lazyslot.WithTracing(),
	)

Logs include structured fields: registry_id, slot, duration_ms,
instance_id. OpenTelemetry metrics: lazyslot.constructions,
lazyslot.construction.latency_ms, lazyslot.contention, etc.
OpenTelemetry tracing: lazyslot.warm > lazyslot.slot.{name} spans.
Only the construction slow path is instrumented; reads of a populated
slot never touch the observability stack.

# Error Handling

Errors carry the slot they belong to:

	_, err := reg.Get(ctx, "db")
	var cerr *lazyslot.ConstructionError
	if errors.As(err, &cerr) {
	    log.Printf("slot %s failed: %v", cerr.Slot, cerr.Err)
	}

	var perr *lazyslot.PanicError
	if errors.As(err, &perr) {
	    log.Printf("slot %s panicked: %v\n%s", perr.Slot, perr.Value, perr.Stack)
	}

# Thread Safety

  - Slot[T] IS safe for concurrent use
  - Registry IS safe for concurrent use
  - Reset and ResetAll exist for test isolation and are NOT safe to run
    while other goroutines use the affected slots
  - journal.Store implementations are safe for concurrent use

# Subpackages

  - config: typed configuration loading (YAML, JSON)
  - errors: construction failure categorization and retry
  - event: lifecycle event bus (constructed, construct_failed, reset)
  - handle: generic handle table backing event subscriptions
  - journal: construction journaling (memory, SQLite)
  - observability: logging, metrics, and tracing helpers
*/
package lazyslot
