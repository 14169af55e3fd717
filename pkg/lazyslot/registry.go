package lazyslot

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dolthub/swiss"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/lazyslot/pkg/lazyslot/event"
	"github.com/randalmurphal/lazyslot/pkg/lazyslot/journal"
	"github.com/randalmurphal/lazyslot/pkg/lazyslot/observability"
)

// Registry manages named lazy singleton slots.
//
// Each name maps to an independent slot with its own construction lock, so
// slots never contend with each other. The name index itself is sharded to
// keep index lookups cheap under concurrent access to many distinct names.
//
// All methods are safe for concurrent use.
type Registry struct {
	cfg    registryConfig
	shards []*indexShard
	mask   uint32
	closed atomic.Bool

	providersMu sync.RWMutex
	providers   map[string]*provider

	finalizers finalizerStack
}

// indexShard is one slice of the name index. Its lock guards index
// mutation only and is never held while a factory runs.
type indexShard struct {
	mu    sync.RWMutex
	slots *swiss.Map[string, *slotState]
}

// slotEntry is the published state of a populated slot. A fresh entry is
// minted per successful construction, so InstanceID distinguishes the
// instance even when the value itself is equal to a previous one.
type slotEntry struct {
	value any
	id    string
	at    time.Time
}

// slotState is the per-name slot: a mutex for construction and an atomic
// pointer for the lock-free populated fast path.
type slotState struct {
	name          string
	mu            sync.Mutex
	entry         atomic.Pointer[slotEntry]
	constructions atomic.Int64
}

// initialShardCapacity sizes each shard's swiss map at creation.
const initialShardCapacity = 8

// New creates a Registry with the given options.
func New(opts ...Option) *Registry {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.id == "" {
		cfg.id = "reg-" + uuid.New().String()[:8]
	}

	shards := make([]*indexShard, cfg.shardCount)
	for i := range shards {
		shards[i] = &indexShard{slots: swiss.NewMap[string, *slotState](initialShardCapacity)}
	}

	return &Registry{
		cfg:       cfg,
		shards:    shards,
		mask:      cfg.shardCount - 1,
		providers: make(map[string]*provider),
	}
}

// ID returns the registry's identifier.
func (r *Registry) ID() string {
	return r.cfg.id
}

// GetOrCreate returns the value stored under name, constructing it with
// factory if the slot is empty. All concurrent callers of the same name
// receive the same instance; at most one factory call succeeds per slot
// lifetime. The factory used is the winning caller's own.
//
// A factory error leaves the slot empty and is returned, wrapped in
// *ConstructionError, only to the caller whose factory ran. Callers that
// were blocked behind the failed attempt retry with their own factory.
func (r *Registry) GetOrCreate(ctx context.Context, name string, factory Factory[any]) (any, error) {
	if r.closed.Load() {
		return nil, ErrRegistryClosed
	}
	if ctx == nil {
		return nil, ErrNilContext
	}
	if name == "" {
		return nil, ErrEmptyName
	}
	if factory == nil {
		return nil, ErrNilFactory
	}
	return r.construct(ctx, r.slot(name), factory, nil)
}

// construct runs the double-checked locking protocol for one slot and
// interleaves the ambient wiring (logs, span, metrics, journal, events)
// around the factory call.
func (r *Registry) construct(ctx context.Context, st *slotState, factory Factory[any], fin Finalizer) (any, error) {
	// Fast path: populated slots are read with a single atomic load.
	if e := st.entry.Load(); e != nil {
		return e.value, nil
	}

	// A factory resolving its own slot, directly or through other slots,
	// would deadlock on st.mu. The construction chain on ctx catches it.
	if chain := chainFrom(ctx); slices.Contains(chain, st.name) {
		return nil, &CycleError{Path: append(chain, st.name)}
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	// Re-check: the slot may have been populated while waiting for the
	// lock. Losers of the race share the winner's instance.
	if e := st.entry.Load(); e != nil {
		r.cfg.metrics.RecordContention(ctx, st.name)
		return e.value, nil
	}

	id := uuid.New().String()
	cctx := withConstruction(ctx, st.name, id)

	logger := observability.EnrichLogger(r.cfg.logger, r.cfg.id, st.name)
	observability.LogConstructStart(logger, st.name)

	var span trace.Span
	if r.cfg.tracingEnabled {
		cctx, span = r.cfg.spans.StartConstructSpan(cctx, st.name, id)
	}

	start := time.Now()
	value, err := runFactory(cctx, st.name, factory)
	duration := time.Since(start)
	durationMS := float64(duration) / float64(time.Millisecond)

	r.cfg.metrics.RecordConstruction(ctx, st.name, duration, err)
	if r.cfg.tracingEnabled {
		r.cfg.spans.EndSpanWithError(span, err)
	}

	if err != nil {
		if _, isPanic := err.(*PanicError); !isPanic {
			err = &ConstructionError{Slot: st.name, Err: err}
		}
		observability.LogConstructError(logger, st.name, err, durationMS)
		// Failure records are always best-effort; the construction error
		// is already on its way to the caller.
		r.journalOutcome(ctx, logger, journal.Entry{
			Registry:   r.cfg.id,
			Slot:       st.name,
			Kind:       journal.KindFailed,
			Error:      err.Error(),
			DurationMS: durationMS,
		})
		r.publish(ctx, logger, event.Event{
			Registry:   r.cfg.id,
			Slot:       st.name,
			Type:       event.TypeConstructFailed,
			Error:      err.Error(),
			DurationMS: durationMS,
		})
		return nil, err
	}

	// The atomic store publishes the fully-constructed value to lock-free
	// readers; the counter moves only on this success path.
	st.entry.Store(&slotEntry{value: value, id: id, at: time.Now()})
	st.constructions.Add(1)

	observability.LogConstructComplete(logger, st.name, durationMS, id)
	r.finalizers.push(st.name, id, value, fin)
	r.publish(ctx, logger, event.Event{
		Registry:   r.cfg.id,
		Slot:       st.name,
		Type:       event.TypeConstructed,
		InstanceID: id,
		DurationMS: durationMS,
	})

	jerr := r.journalOutcome(ctx, logger, journal.Entry{
		Registry:   r.cfg.id,
		Slot:       st.name,
		Kind:       journal.KindConstructed,
		InstanceID: id,
		DurationMS: durationMS,
	})
	if jerr != nil && r.cfg.journalFatal {
		return value, &JournalError{Slot: st.name, Op: "append", Err: jerr}
	}

	return value, nil
}

// journalOutcome appends an entry to the journal when one is configured.
// Errors are logged; the caller decides whether they are fatal.
func (r *Registry) journalOutcome(ctx context.Context, logger *slog.Logger, e journal.Entry) error {
	if r.cfg.journal == nil {
		return nil
	}
	e.ID = uuid.New().String()
	e.Timestamp = time.Now().UTC()
	if err := r.cfg.journal.Append(e); err != nil {
		observability.LogJournalError(logger, e.Slot, "append", err)
		return err
	}
	if data, err := e.Marshal(); err == nil {
		r.cfg.metrics.RecordJournalAppend(ctx, e.Slot, int64(len(data)))
		observability.LogJournalAppend(logger, e.Slot, len(data))
	}
	return nil
}

// publish sends a lifecycle event when a bus is configured. Best-effort.
func (r *Registry) publish(ctx context.Context, logger *slog.Logger, evt event.Event) {
	if r.cfg.bus == nil {
		return
	}
	evt.ID = uuid.New().String()
	evt.Timestamp = time.Now().UTC()
	if err := r.cfg.bus.Publish(ctx, evt); err != nil {
		observability.LogPublishError(logger, evt.Slot, err)
	}
}

// slot returns the slot state for name, creating it if needed.
// Double-checked on the shard lock so concurrent first accesses of the
// same name converge on one slotState.
func (r *Registry) slot(name string) *slotState {
	sh := r.shards[r.shardIndex(name)]

	sh.mu.RLock()
	st, ok := sh.slots.Get(name)
	sh.mu.RUnlock()
	if ok {
		return st
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if st, ok := sh.slots.Get(name); ok {
		return st
	}
	st = &slotState{name: name}
	sh.slots.Put(name, st)
	return st
}

// peekSlot looks up a slot state without creating it.
func (r *Registry) peekSlot(name string) (*slotState, bool) {
	sh := r.shards[r.shardIndex(name)]
	sh.mu.RLock()
	st, ok := sh.slots.Get(name)
	sh.mu.RUnlock()
	return st, ok
}

// shardIndex hashes a slot name to its index shard.
func (r *Registry) shardIndex(name string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(name))
	return h.Sum32() & r.mask
}

// Populated reports whether the named slot holds a value.
func (r *Registry) Populated(name string) bool {
	st, ok := r.peekSlot(name)
	return ok && st.entry.Load() != nil
}

// Constructions returns how many factory calls have succeeded for name
// since the slot was created or last reset. Zero for unknown names.
// It never exceeds 1 between resets.
func (r *Registry) Constructions(name string) int64 {
	st, ok := r.peekSlot(name)
	if !ok {
		return 0
	}
	return st.constructions.Load()
}

// InstanceID returns the UUID minted for the named slot's current
// instance. Every caller sharing the instance observes the same ID; a
// construction after Reset yields a different one.
func (r *Registry) InstanceID(name string) (string, bool) {
	st, ok := r.peekSlot(name)
	if !ok {
		return "", false
	}
	e := st.entry.Load()
	if e == nil {
		return "", false
	}
	return e.id, true
}

// Names returns a sorted snapshot of all slot names the registry has seen,
// populated or not.
func (r *Registry) Names() []string {
	var names []string
	for _, sh := range r.shards {
		sh.mu.RLock()
		sh.slots.Iter(func(name string, _ *slotState) bool {
			names = append(names, name)
			return false
		})
		sh.mu.RUnlock()
	}
	slices.Sort(names)
	return names
}

// Len returns the number of slots the registry has seen.
func (r *Registry) Len() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		n += sh.slots.Count()
		sh.mu.RUnlock()
	}
	return n
}

// Reset clears the named slot and zeroes its construction counter.
//
// Reset exists for test isolation only. The current instance is abandoned
// without running its finalizer, and resetting while other goroutines
// still hold or are constructing the value is unsafe.
func (r *Registry) Reset(name string) {
	st, ok := r.peekSlot(name)
	if !ok {
		return
	}
	st.mu.Lock()
	old := st.entry.Load()
	st.entry.Store(nil)
	st.constructions.Store(0)
	st.mu.Unlock()

	if old == nil {
		return
	}
	ctx := context.Background()
	logger := observability.EnrichLogger(r.cfg.logger, r.cfg.id, name)
	observability.LogSlotReset(logger, name)
	r.cfg.metrics.RecordReset(ctx, name)
	r.finalizers.drop(name, old.id)
	r.journalOutcome(ctx, logger, journal.Entry{
		Registry:   r.cfg.id,
		Slot:       name,
		Kind:       journal.KindReset,
		InstanceID: old.id,
	})
	r.publish(ctx, logger, event.Event{
		Registry:   r.cfg.id,
		Slot:       name,
		Type:       event.TypeReset,
		InstanceID: old.id,
	})
}

// ResetAll resets every slot. Test isolation only.
func (r *Registry) ResetAll() {
	for _, name := range r.Names() {
		r.Reset(name)
	}
}

// GetOrCreate is the typed form of Registry.GetOrCreate. It returns
// *TypeMismatchError if the slot already holds a value of another type.
func GetOrCreate[T any](ctx context.Context, r *Registry, name string, factory Factory[T]) (T, error) {
	v, err := r.GetOrCreate(ctx, name, func(ctx context.Context) (any, error) {
		return factory(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return assertType[T](name, v)
}

// Get is the typed form of Registry.Get.
func Get[T any](ctx context.Context, r *Registry, name string) (T, error) {
	v, err := r.Get(ctx, name)
	if err != nil {
		var zero T
		return zero, err
	}
	return assertType[T](name, v)
}

// MustGet is like Get but panics on error. Intended for initialization
// code where a missing provider is a programming error.
func MustGet[T any](ctx context.Context, r *Registry, name string) T {
	v, err := Get[T](ctx, r, name)
	if err != nil {
		panic(fmt.Sprintf("lazyslot: %v", err))
	}
	return v
}

// Peek returns the typed value of a populated slot without constructing.
// The bool is false when the slot is empty, unknown, or holds another type.
func Peek[T any](r *Registry, name string) (T, bool) {
	var zero T
	st, ok := r.peekSlot(name)
	if !ok {
		return zero, false
	}
	e := st.entry.Load()
	if e == nil {
		return zero, false
	}
	t, ok := e.value.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// assertType narrows a stored any to T.
func assertType[T any](name string, v any) (T, error) {
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, &TypeMismatchError{
			Slot: name,
			Want: typeName[T](),
			Got:  fmt.Sprintf("%T", v),
		}
	}
	return t, nil
}

// typeName renders T's static type for error messages.
func typeName[T any]() string {
	var zero T
	return reflect.TypeOf(&zero).Elem().String()
}
