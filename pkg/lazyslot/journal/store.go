package journal

import "errors"

// Store persists construction journal entries.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append adds an entry to the trail. The store assigns Sequence;
	// an empty ID or zero Timestamp is filled in.
	Append(e Entry) error

	// List returns all entries for a registry, ordered by sequence.
	// Returns an empty slice (not an error) for an unknown registry.
	List(registry string) ([]Entry, error)

	// ListSlot returns all entries for one slot of a registry, ordered
	// by sequence.
	ListSlot(registry, slot string) ([]Entry, error)

	// Last returns the most recent entry for a slot.
	// Returns ErrNotFound if the slot has no trail.
	Last(registry, slot string) (Entry, error)

	// Purge removes all entries for a registry.
	// Returns nil if the registry has no entries.
	Purge(registry string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for journal operations.
var (
	// ErrNotFound indicates a slot has no journal entries.
	ErrNotFound = errors.New("journal entry not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")
)
