package handle

import (
	"sync"

	"github.com/google/uuid"
)

// Handle is an opaque identifier for a value stored in a Table.
// Handles are unique across all tables for the life of the process.
type Handle string

// zero is the invalid handle. Resolve of the zero handle always misses.
var zero Handle

// Zero returns the invalid handle.
func Zero() Handle { return zero }

// Table is a thread-safe store of values indexed by minted handles.
// It uses sync.RWMutex for optimal read-heavy workloads.
type Table[V any] struct {
	mu      sync.RWMutex
	entries map[Handle]V
}

// NewTable creates a new empty table.
func NewTable[V any]() *Table[V] {
	return &Table[V]{
		entries: make(map[Handle]V),
	}
}

// Put stores a value and returns the handle minted for it.
func (t *Table[V]) Put(value V) Handle {
	h := Handle(uuid.New().String())
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[h] = value
	return h
}

// Resolve returns the value for a handle and whether it exists.
func (t *Table[V]) Resolve(h Handle) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.entries[h]
	return v, ok
}

// MustResolve returns the value for a handle, panicking if not found.
func (t *Table[V]) MustResolve(h Handle) V {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.entries[h]
	if !ok {
		panic("handle: unknown handle")
	}
	return v
}

// Has returns true if the handle is live in the table.
func (t *Table[V]) Has(h Handle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.entries[h]
	return ok
}

// Release removes a handle from the table and reports whether it was
// present. Releasing an unknown or already-released handle is a no-op.
func (t *Table[V]) Release(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[h]
	delete(t.entries, h)
	return ok
}

// Handles returns all live handles.
// The order is not guaranteed.
func (t *Table[V]) Handles() []Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	handles := make([]Handle, 0, len(t.entries))
	for h := range t.entries {
		handles = append(handles, h)
	}
	return handles
}

// Len returns the number of live handles.
func (t *Table[V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Range iterates over all entries in the table.
// The function fn is called for each entry. If fn returns false,
// iteration stops.
//
// Range iterates over a snapshot of the table, so it is safe to call
// Put or Release during iteration without affecting the current
// iteration.
func (t *Table[V]) Range(fn func(Handle, V) bool) {
	// Take a snapshot under read lock
	t.mu.RLock()
	snapshot := make(map[Handle]V, len(t.entries))
	for h, v := range t.entries {
		snapshot[h] = v
	}
	t.mu.RUnlock()

	// Iterate over snapshot without holding lock
	for h, v := range snapshot {
		if !fn(h, v) {
			return
		}
	}
}

// Clear removes every entry and returns the values that were live, in
// no particular order. Useful for teardown paths that must finalize
// everything the table still holds.
func (t *Table[V]) Clear() []V {
	t.mu.Lock()
	defer t.mu.Unlock()
	values := make([]V, 0, len(t.entries))
	for _, v := range t.entries {
		values = append(values, v)
	}
	t.entries = make(map[Handle]V)
	return values
}
