package event

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/randalmurphal/lazyslot/pkg/lazyslot/handle"
)

// ErrBusClosed is returned by Publish after the bus has been closed.
var ErrBusClosed = errors.New("event bus closed")

// Bus provides pub/sub event distribution with fan-out support.
type Bus interface {
	// Publish sends an event to all subscribers.
	Publish(ctx context.Context, evt Event) error

	// Subscribe creates a subscription for specific event types.
	Subscribe(types []Type, handler Handler) Subscription

	// SubscribeAll subscribes to all events.
	SubscribeAll(handler Handler) Subscription

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Subscription represents an active subscription.
type Subscription interface {
	// Handle returns the opaque handle identifying this subscription.
	Handle() handle.Handle

	// Unsubscribe removes the subscription.
	Unsubscribe()

	// Pause temporarily stops delivery.
	Pause()

	// Resume continues delivery after pause.
	Resume()

	// IsPaused returns true if the subscription is paused.
	IsPaused() bool
}

// BusConfig configures bus behavior.
type BusConfig struct {
	// BufferSize is the channel buffer size per subscription.
	// Default: 256
	BufferSize int

	// MaxSubscribers limits total subscriptions.
	// Default: 0 (unlimited)
	MaxSubscribers int

	// NonBlocking makes Publish non-blocking (drops events if buffer full).
	// Default: false (blocking)
	NonBlocking bool

	// OnDrop is called when an event is dropped (non-blocking mode).
	OnDrop func(evt Event, sub handle.Handle)

	// OnError is called when a handler returns an error.
	OnError func(evt Event, sub handle.Handle, err error)
}

// DefaultBusConfig provides reasonable defaults.
var DefaultBusConfig = BusConfig{
	BufferSize: 256,
}

// LocalBus is an in-memory event bus implementation.
type LocalBus struct {
	config BusConfig

	subs *handle.Table[*subscription]

	mu        sync.RWMutex
	byType    map[Type]map[handle.Handle]*subscription // event type -> handle -> subscription
	wildcards map[handle.Handle]*subscription          // subscriptions for all events

	closed  atomic.Bool
	closeCh chan struct{}
}

// NewBus creates a new local event bus.
func NewBus(config BusConfig) *LocalBus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBusConfig.BufferSize
	}

	return &LocalBus{
		config:    config,
		subs:      handle.NewTable[*subscription](),
		byType:    make(map[Type]map[handle.Handle]*subscription),
		wildcards: make(map[handle.Handle]*subscription),
		closeCh:   make(chan struct{}),
	}
}

// subscription is an internal subscription implementation.
type subscription struct {
	h       handle.Handle
	types   []Type // empty = all types
	handler Handler
	events  chan Event
	paused  atomic.Bool
	stopped atomic.Bool
	done    chan struct{}
	bus     *LocalBus
}

// Publish sends an event to all matching subscribers.
func (b *LocalBus) Publish(ctx context.Context, evt Event) error {
	if b.closed.Load() {
		return ErrBusClosed
	}

	// Get matching subscriptions
	b.mu.RLock()
	subs := b.matching(evt.Type)
	b.mu.RUnlock()

	// Deliver to each subscription
	for _, sub := range subs {
		if sub.paused.Load() {
			continue
		}

		if b.config.NonBlocking {
			select {
			case sub.events <- evt:
			default:
				// Buffer full - drop event
				if b.config.OnDrop != nil {
					b.config.OnDrop(evt, sub.h)
				}
			}
		} else {
			select {
			case sub.events <- evt:
			case <-ctx.Done():
				return ctx.Err()
			case <-b.closeCh:
				return ErrBusClosed
			}
		}
	}

	return nil
}

// Subscribe creates a subscription for specific event types.
// It returns nil when the bus is closed or the subscriber limit is hit.
func (b *LocalBus) Subscribe(types []Type, handler Handler) Subscription {
	return b.subscribe(types, handler)
}

// SubscribeAll subscribes to all events.
func (b *LocalBus) SubscribeAll(handler Handler) Subscription {
	return b.subscribe(nil, handler)
}

// SubscribeHandler subscribes a Handler under the types it declares via
// Handles. A handler declaring no types receives all events.
func (b *LocalBus) SubscribeHandler(handler Handler) Subscription {
	return b.subscribe(handler.Handles(), handler)
}

func (b *LocalBus) subscribe(types []Type, handler Handler) Subscription {
	if b.closed.Load() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Check subscriber limit
	if b.config.MaxSubscribers > 0 && b.subs.Len() >= b.config.MaxSubscribers {
		return nil
	}

	sub := &subscription{
		types:   types,
		handler: handler,
		events:  make(chan Event, b.config.BufferSize),
		done:    make(chan struct{}),
		bus:     b,
	}
	sub.h = b.subs.Put(sub)

	if len(types) == 0 {
		b.wildcards[sub.h] = sub
	} else {
		for _, t := range types {
			if b.byType[t] == nil {
				b.byType[t] = make(map[handle.Handle]*subscription)
			}
			b.byType[t][sub.h] = sub
		}
	}

	// Start delivery goroutine
	go sub.process()

	return sub
}

// matching returns all subscriptions matching an event type.
// Caller holds b.mu.
func (b *LocalBus) matching(eventType Type) []*subscription {
	subs := make([]*subscription, 0, len(b.wildcards))

	// Add type-specific subscriptions
	for _, sub := range b.byType[eventType] {
		subs = append(subs, sub)
	}

	// Add wildcard subscriptions
	for _, sub := range b.wildcards {
		subs = append(subs, sub)
	}

	return subs
}

// Len returns the number of active subscriptions.
func (b *LocalBus) Len() int {
	return b.subs.Len()
}

// Close shuts down the bus and stops all delivery goroutines.
func (b *LocalBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil // Already closed
	}

	close(b.closeCh)

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs.Clear() {
		sub.stop()
	}
	b.byType = make(map[Type]map[handle.Handle]*subscription)
	b.wildcards = make(map[handle.Handle]*subscription)

	return nil
}

// process delivers events for a subscription.
func (s *subscription) process() {
	for {
		select {
		case evt := <-s.events:
			if s.paused.Load() {
				continue
			}

			if err := s.handler.Handle(context.Background(), evt); err != nil {
				if s.bus.config.OnError != nil {
					s.bus.config.OnError(evt, s.h, err)
				}
			}

		case <-s.done:
			return
		}
	}
}

// stop ends the delivery goroutine. Safe to call more than once.
func (s *subscription) stop() {
	if s.stopped.CompareAndSwap(false, true) {
		close(s.done)
	}
}

// Handle returns the opaque handle identifying this subscription.
func (s *subscription) Handle() handle.Handle {
	return s.h
}

// Unsubscribe removes the subscription.
func (s *subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	s.bus.subs.Release(s.h)
	delete(s.bus.wildcards, s.h)

	for _, t := range s.types {
		if typeSubs, ok := s.bus.byType[t]; ok {
			delete(typeSubs, s.h)
		}
	}

	s.stop()
}

// Pause temporarily stops delivery.
func (s *subscription) Pause() {
	s.paused.Store(true)
}

// Resume continues delivery after pause.
func (s *subscription) Resume() {
	s.paused.Store(false)
}

// IsPaused returns true if the subscription is paused.
func (s *subscription) IsPaused() bool {
	return s.paused.Load()
}
