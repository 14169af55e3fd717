// Package event provides lifecycle event distribution for slot registries.
//
// Registries emit an Event each time a slot is constructed, a factory
// fails, or a slot is reset. Events fan out through a Bus to any number
// of subscribers, each with its own buffered delivery channel:
//   - Event records a single lifecycle transition of one slot
//   - Handler processes events, optionally filtered by type
//   - Bus provides pub/sub fan-out with per-subscriber buffering
//
// Subscriptions are identified by opaque handles so callers can revoke
// them without holding a reference to the bus internals.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies the kind of lifecycle transition an event records.
type Type string

// Lifecycle event types emitted by a registry.
const (
	// TypeConstructed fires after a factory succeeds and the value is
	// published to the slot.
	TypeConstructed Type = "slot.constructed"

	// TypeConstructFailed fires after a factory returns an error or
	// panics. The slot stays empty and re-arms.
	TypeConstructFailed Type = "slot.construct_failed"

	// TypeReset fires after a populated slot is cleared.
	TypeReset Type = "slot.reset"
)

// Event records one lifecycle transition of one slot.
// Events are immutable once published.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Registry is the ID of the registry that emitted the event.
	Registry string `json:"registry"`

	// Slot is the name of the slot the transition happened on.
	Slot string `json:"slot"`

	// Type is the kind of transition.
	Type Type `json:"type"`

	// InstanceID identifies the constructed instance, when one exists.
	// Set for TypeConstructed (the new instance) and TypeReset (the
	// discarded instance); empty for TypeConstructFailed.
	InstanceID string `json:"instance_id,omitempty"`

	// Error carries the construction failure message for
	// TypeConstructFailed events.
	Error string `json:"error,omitempty"`

	// DurationMS is how long the factory ran, in milliseconds.
	DurationMS float64 `json:"duration_ms,omitempty"`

	// Timestamp is when the transition occurred.
	Timestamp time.Time `json:"timestamp"`
}

// Marshal serializes the event to JSON.
func (e Event) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", e.ID, err)
	}
	return data, nil
}

// Unmarshal deserializes an event from JSON.
func Unmarshal(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return e, nil
}

// Handler processes lifecycle events.
type Handler interface {
	// Handle processes a single event. Errors are reported through the
	// bus's OnError hook; they never stop delivery to other handlers.
	Handle(ctx context.Context, evt Event) error

	// Handles returns the event types this handler processes.
	// An empty slice means the handler accepts all event types.
	Handles() []Type
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt Event) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// Handles returns nil (accepts all event types).
func (f HandlerFunc) Handles() []Type {
	return nil
}
