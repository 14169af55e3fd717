// Package journal provides a persistent audit trail of slot constructions.
//
// Every construction outcome (constructed, failed, reset) becomes one
// append-only Entry. The trail answers questions the in-memory counters
// cannot once a process exits: how often a slot's factory failed, when
// the current instance was built, and whether resets happened outside
// tests.
package journal

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind classifies a journal entry.
type Kind string

const (
	// KindConstructed records a successful factory run.
	KindConstructed Kind = "constructed"

	// KindFailed records a factory that returned an error or panicked.
	KindFailed Kind = "failed"

	// KindReset records a test-only slot reset.
	KindReset Kind = "reset"
)

// Entry is one construction outcome.
type Entry struct {
	// ID uniquely identifies the entry.
	ID string `json:"id"`

	// Registry is the registry instance the entry belongs to.
	Registry string `json:"registry"`

	// Slot is the slot name.
	Slot string `json:"slot"`

	// Kind is the outcome: constructed, failed, or reset.
	Kind Kind `json:"kind"`

	// InstanceID is the UUID of the constructed instance.
	// Empty for failed entries.
	InstanceID string `json:"instance_id,omitempty"`

	// Error is the construction error message. Empty unless Kind is failed.
	Error string `json:"error,omitempty"`

	// DurationMS is how long the factory ran, in milliseconds.
	DurationMS float64 `json:"duration_ms"`

	// Sequence is the store-assigned position within the registry's trail.
	Sequence int `json:"sequence"`

	// Timestamp is when the outcome happened, in UTC.
	Timestamp time.Time `json:"timestamp"`
}

// Marshal serializes the entry to JSON.
func (e Entry) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal journal entry: %w", err)
	}
	return data, nil
}

// Unmarshal deserializes an entry from JSON.
func Unmarshal(data []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("unmarshal journal entry: %w", err)
	}
	return e, nil
}

// Summary aggregates one slot's trail.
type Summary struct {
	// Constructed is the number of successful factory runs.
	Constructed int

	// Failed is the number of failed factory runs.
	Failed int

	// Resets is the number of resets.
	Resets int

	// LastInstanceID is the most recently constructed instance, if any.
	LastInstanceID string

	// LastKind is the most recent outcome.
	LastKind Kind

	// LastAt is when the most recent outcome happened.
	LastAt time.Time
}

// Summarize folds a trail into per-slot summaries. Entries are expected
// in sequence order, as returned by Store.List.
func Summarize(entries []Entry) map[string]Summary {
	summaries := make(map[string]Summary)
	for _, e := range entries {
		s := summaries[e.Slot]
		switch e.Kind {
		case KindConstructed:
			s.Constructed++
			s.LastInstanceID = e.InstanceID
		case KindFailed:
			s.Failed++
		case KindReset:
			s.Resets++
		}
		s.LastKind = e.Kind
		s.LastAt = e.Timestamp
		summaries[e.Slot] = s
	}
	return summaries
}
