package journal

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory journal store for testing.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	trails map[string][]Entry // registry -> entries in sequence order
	closed bool
}

// NewMemoryStore creates a new in-memory journal store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trails: make(map[string][]Entry),
	}
}

// Append implements Store.
func (m *MemoryStore) Append(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	trail := m.trails[e.Registry]
	if len(trail) == 0 {
		e.Sequence = 1
	} else {
		e.Sequence = trail[len(trail)-1].Sequence + 1
	}

	m.trails[e.Registry] = append(trail, e)
	return nil
}

// List implements Store.
func (m *MemoryStore) List(registry string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	// Return a copy to prevent modification
	trail := m.trails[registry]
	result := make([]Entry, len(trail))
	copy(result, trail)
	return result, nil
}

// ListSlot implements Store.
func (m *MemoryStore) ListSlot(registry, slot string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	var result []Entry
	for _, e := range m.trails[registry] {
		if e.Slot == slot {
			result = append(result, e)
		}
	}
	return result, nil
}

// Last implements Store.
func (m *MemoryStore) Last(registry, slot string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Entry{}, ErrStoreClosed
	}

	trail := m.trails[registry]
	for i := len(trail) - 1; i >= 0; i-- {
		if trail[i].Slot == slot {
			return trail[i], nil
		}
	}
	return Entry{}, ErrNotFound
}

// Purge implements Store.
func (m *MemoryStore) Purge(registry string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.trails, registry)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.trails = nil
	return nil
}

// Len returns the total number of entries across all registries.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, trail := range m.trails {
		count += len(trail)
	}
	return count
}
