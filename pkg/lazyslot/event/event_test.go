package event_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/randalmurphal/lazyslot/pkg/lazyslot/event"
)

func TestEventMarshal(t *testing.T) {
	evt := event.Event{
		ID:         "evt-1",
		Registry:   "reg-1",
		Slot:       "db",
		Type:       event.TypeConstructed,
		InstanceID: "inst-1",
		DurationMS: 12.5,
		Timestamp:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := evt.Marshal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := event.Unmarshal(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != evt {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, evt)
	}

	// Empty fields stay out of the wire form
	if strings.Contains(string(data), "error") {
		t.Errorf("expected empty error to be omitted, got %s", data)
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	_, err := event.Unmarshal([]byte("{not json"))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestHandlerFunc(t *testing.T) {
	var got event.Event
	h := event.HandlerFunc(func(ctx context.Context, evt event.Event) error {
		got = evt
		return nil
	})

	// HandlerFunc accepts all types
	if h.Handles() != nil {
		t.Errorf("expected nil Handles, got %v", h.Handles())
	}

	evt := event.Event{ID: "e1", Slot: "db", Type: event.TypeReset}
	if err := h.Handle(context.Background(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "e1" {
		t.Errorf("handler did not receive event, got %+v", got)
	}
}
