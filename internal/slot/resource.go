package slot

import (
	"fmt"

	"github.com/google/uuid"
)

// State holds the independent, combinable condition bits of a resource.
// These are flags, not a state machine: a resource can be Ready and Outdated
// at the same time.
type State uint32

const (
	StateUninitialized State = 0
	StateReady         State = 1
	StateOutdated      State = 2
	StateLocked        State = 4
	StateStale         State = 8
	StatePending       State = 16
	StateFailed        State = 32
)

// Resource is a type-erased handle reachable from one or more slots. It is
// referenced, never owned, by the slots that bind it; identity for
// dependency-tracking purposes is pointer identity. Resources are created
// during Compile and destroyed only through the deferred destruction queue.
type Resource struct {
	id         uuid.UUID
	desc       Descriptor
	payload    any
	state      State
	generation uint64
}

// NewResource creates an empty resource for the given descriptor.
func NewResource(desc Descriptor) *Resource {
	return &Resource{
		id:    uuid.New(),
		desc:  desc,
		state: StateUninitialized,
	}
}

// ID returns the resource's stable identifier, used for logging only.
func (r *Resource) ID() uuid.UUID { return r.id }

// Descriptor returns the slot descriptor this resource was created for.
func (r *Resource) Descriptor() Descriptor { return r.desc }

// Payload returns the type-erased backing value, typically a device handle.
func (r *Resource) Payload() any { return r.payload }

// Generation returns a counter incremented on every Set. Dependents compare
// generations to cheaply detect "has this changed since I last looked"
// without deep comparison.
func (r *Resource) Generation() uint64 { return r.generation }

// Set replaces the payload and marks the resource Ready, clearing the
// Outdated, Stale, Pending and Failed bits.
//
// Calling Set on a Locked resource is a programming error that would mask a
// lifetime bug if ignored, so it panics.
func (r *Resource) Set(payload any) {
	if r.Has(StateLocked) {
		panic(fmt.Sprintf("slot: Set on locked resource %q (%s)", r.desc.Name, r.id))
	}
	r.payload = payload
	r.generation++
	r.state &^= StateOutdated | StateStale | StatePending | StateFailed
	r.state |= StateReady
}

// Ready reports whether the Ready bit is set.
func (r *Resource) Ready() bool { return r.Has(StateReady) }

// Has reports whether all bits of f are set.
func (r *Resource) Has(f State) bool { return r.state&f == f }

// MarkOutdated sets the Outdated bit without touching the payload.
func (r *Resource) MarkOutdated() { r.state |= StateOutdated }

// MarkStale sets the Stale bit.
func (r *Resource) MarkStale() { r.state |= StateStale }

// MarkPending sets the Pending bit; dependents poll across frames instead of
// blocking.
func (r *Resource) MarkPending() { r.state |= StatePending }

// MarkFailed sets the Failed bit.
func (r *Resource) MarkFailed() { r.state |= StateFailed }

// Lock sets the advisory exclusion bit. Locking an already-locked resource
// panics: nesting would make the later Unlock silently lift the outer lock.
func (r *Resource) Lock() {
	if r.Has(StateLocked) {
		panic(fmt.Sprintf("slot: Lock on already-locked resource %q (%s)", r.desc.Name, r.id))
	}
	r.state |= StateLocked
}

// Unlock clears the advisory exclusion bit.
func (r *Resource) Unlock() {
	if !r.Has(StateLocked) {
		panic(fmt.Sprintf("slot: Unlock on unlocked resource %q (%s)", r.desc.Name, r.id))
	}
	r.state &^= StateLocked
}
