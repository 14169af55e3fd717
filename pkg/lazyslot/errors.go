package lazyslot

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for registry operations.
var (
	// ErrRegistryClosed indicates an operation was attempted after Close().
	ErrRegistryClosed = errors.New("registry closed")

	// ErrEmptyName indicates a slot name was empty.
	ErrEmptyName = errors.New("slot name cannot be empty")

	// ErrNilFactory indicates a nil factory was passed to a construction call.
	ErrNilFactory = errors.New("factory cannot be nil")

	// ErrNilContext indicates a construction call received a nil context.
	ErrNilContext = errors.New("context cannot be nil")
)

// Sentinel errors for provider binding and dependency validation.
var (
	// ErrNoProvider indicates Get() was called for an empty slot with no bound factory.
	ErrNoProvider = errors.New("no provider bound for slot")

	// ErrAlreadyProvided indicates Provide() was called twice for the same slot.
	ErrAlreadyProvided = errors.New("provider already bound for slot")

	// ErrUnknownDependency indicates a declared dependency has no provider.
	ErrUnknownDependency = errors.New("dependency has no provider")

	// ErrInitCycle indicates slot construction depends on itself, directly or transitively.
	ErrInitCycle = errors.New("initialization cycle")

	// ErrTypeMismatch indicates a slot holds a value of a different type than requested.
	ErrTypeMismatch = errors.New("slot type mismatch")
)

// ConstructionError wraps the error a factory returned while populating a slot.
// The slot remains empty after a failed construction, so a later call may retry.
type ConstructionError struct {
	// Slot is the name of the slot whose factory failed.
	Slot string
	// Err is the underlying error from the factory.
	Err error
}

// Error implements the error interface.
func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construct slot %s: %v", e.Slot, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from a factory.
// It includes the stack trace for debugging. A panicking factory leaves
// its slot empty, the same as a factory that returned an error.
type PanicError struct {
	// Slot is the name of the slot whose factory panicked.
	// Empty for a standalone Slot, which has no name.
	Slot string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	if e.Slot == "" {
		return fmt.Sprintf("factory panicked: %v", e.Value)
	}
	return fmt.Sprintf("factory for slot %s panicked: %v", e.Slot, e.Value)
}

// CycleError reports a same-goroutine construction cycle.
// Path lists the slot names in resolution order; the last element is the
// slot that was already under construction higher up the chain.
type CycleError struct {
	// Path is the chain of slot resolutions that closed the cycle.
	Path []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("initialization cycle: %s", strings.Join(e.Path, " -> "))
}

// Unwrap returns ErrInitCycle for errors.Is support.
func (e *CycleError) Unwrap() error {
	return ErrInitCycle
}

// JournalError wraps errors from journal operations.
// It is returned from construction calls only when the registry was built
// with WithJournalFailureFatal; the constructed instance is still
// published, so later calls return the value without error.
type JournalError struct {
	// Slot is the slot whose journal entry failed.
	Slot string
	// Op is the operation that failed ("append").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *JournalError) Error() string {
	return fmt.Sprintf("journal %s for slot %s: %v", e.Op, e.Slot, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *JournalError) Unwrap() error {
	return e.Err
}

// TypeMismatchError indicates a typed accessor requested a different type
// than the one the slot holds.
type TypeMismatchError struct {
	// Slot is the name of the slot.
	Slot string
	// Want is the requested type.
	Want string
	// Got is the dynamic type of the stored value.
	Got string
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("slot %s holds %s, not %s", e.Slot, e.Got, e.Want)
}

// Unwrap returns ErrTypeMismatch for errors.Is support.
func (e *TypeMismatchError) Unwrap() error {
	return ErrTypeMismatch
}
