// Package node defines the node templates, instances and the per-instance
// lifecycle state machine of the render graph.
package node

import (
	"context"
	"fmt"

	"github.com/voxgraph/voxgraph/internal/slot"
)

// Handle is a stable arena index identifying a node instance within its
// graph. Handles, not pointers, are what the dependency tracker and the
// compiler pass around, which keeps resource/node back-references free of
// ownership cycles.
type Handle int

// InvalidHandle is returned where no node applies.
const InvalidHandle Handle = -1

// Type is the immutable template describing a named operation: its input and
// output slots and whether input slots accept arrays of producers. One Type
// exists per operation kind for the process lifetime; it is shared, read-only
// and never mutated after registration.
type Type struct {
	// Name of the operation kind, e.g. "buffer" or "dispatch".
	Name string
	// Inputs is the ordered list of input slot descriptors.
	Inputs []slot.Descriptor
	// Outputs is the ordered list of output slot descriptors.
	Outputs []slot.Descriptor
	// AllowInputArrays permits binding an ordered array of producers to a
	// single input slot.
	AllowInputArrays bool
}

// InputIndex returns the position of the named input slot, or -1.
func (t *Type) InputIndex(name string) int {
	for i, d := range t.Inputs {
		if d.Name == name {
			return i
		}
	}
	return -1
}

// OutputIndex returns the position of the named output slot, or -1.
func (t *Type) OutputIndex(name string) int {
	for i, d := range t.Outputs {
		if d.Name == name {
			return i
		}
	}
	return -1
}

// Lifecycle is the flat capability interface every node kind implements.
// Setup subscribes to event sources, Compile creates Dependency-role
// resources, PostCompile resolves Execute-role resources (pipelines),
// Execute records the node's per-frame work, Cleanup tears down what Compile
// built. All five run to completion synchronously; the illusion of asynchrony
// comes from resources marked Pending and polled across frames.
type Lifecycle interface {
	Setup(ctx context.Context, n *Instance) error
	Compile(ctx context.Context, n *Instance) error
	PostCompile(ctx context.Context, n *Instance) error
	Execute(ctx context.Context, n *Instance) error
	Cleanup(ctx context.Context, n *Instance) error
}

// State is the lifecycle position of a node instance.
type State int

const (
	StateUninitialized State = iota
	StateSetupDone
	StateCompiled
	StateDirty
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSetupDone:
		return "setup-done"
	case StateCompiled:
		return "compiled"
	case StateDirty:
		return "dirty"
	}
	return fmt.Sprintf("state(%d)", int(s))
}
