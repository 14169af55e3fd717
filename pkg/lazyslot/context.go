package lazyslot

import (
	"context"
	"slices"
)

// Context keys are unexported types so external packages cannot collide.
type chainKey struct{}
type constructionKey struct{}

// construction carries metadata about the construction currently running
// on this goroutine's context.
type construction struct {
	slot string
	id   string
}

// withConstruction returns a context that records an in-flight construction.
// The chain of slot names is used to detect same-goroutine cycles; the
// construction ID is the UUID minted for the winning attempt.
func withConstruction(ctx context.Context, slot, id string) context.Context {
	chain := append(chainFrom(ctx), slot)
	ctx = context.WithValue(ctx, chainKey{}, chain)
	return context.WithValue(ctx, constructionKey{}, construction{slot: slot, id: id})
}

// chainFrom returns a copy of the construction chain on ctx.
// The copy keeps factories from mutating each other's chains through
// the shared backing array of an append.
func chainFrom(ctx context.Context) []string {
	chain, _ := ctx.Value(chainKey{}).([]string)
	return slices.Clone(chain)
}

// ConstructionID returns the UUID of the construction running on ctx.
// Factories can use it to tag values or correlate logs. Returns "" when
// ctx does not originate from a registry construction.
func ConstructionID(ctx context.Context) string {
	c, _ := ctx.Value(constructionKey{}).(construction)
	return c.id
}

// ConstructingSlot returns the name of the slot being constructed on ctx,
// or "" outside a construction.
func ConstructingSlot(ctx context.Context) string {
	c, _ := ctx.Value(constructionKey{}).(construction)
	return c.slot
}

// ConstructionChain returns the slot names currently under construction on
// this goroutine, outermost first. Useful in factory error messages.
func ConstructionChain(ctx context.Context) []string {
	return chainFrom(ctx)
}
