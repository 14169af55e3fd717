// Package handle provides a generic thread-safe table that stores values
// under opaque, randomly minted handles.
//
// Unlike a plain map, callers never choose the key: Put mints a unique
// Handle for each stored value, so two independent writers can never
// collide. The table is designed for read-heavy workloads using
// sync.RWMutex.
//
// # Basic Usage
//
// Store a value and resolve it later through its handle:
//
//	t := handle.NewTable[*Session]()
//	h := t.Put(session)
//
//	s, ok := t.Resolve(h)
//	if ok {
//	    // use s...
//	}
//
//	t.Release(h) // done with it
//
// # Subscription Pattern
//
// Handle tables work well wherever a component hands out revocable
// references, such as event subscriptions:
//
//	subs := handle.NewTable[func(Event)]()
//
//	h := subs.Put(func(e Event) { ... })
//	// later: subs.Release(h) to unsubscribe
//
// # Thread Safety
//
// All Table methods are safe for concurrent use. The Range method
// iterates over a snapshot of the table, allowing Put or Release during
// iteration without affecting the iteration itself.
package handle
