package node

import (
	"fmt"

	"github.com/voxgraph/voxgraph/internal/slot"
)

// Instance is a concrete placement of a Type in a graph. It owns its per-slot
// resource bindings, its lifecycle state and the compile-time usage mask.
// Instances are created when added to a graph and destroyed when removed,
// after Cleanup has run.
type Instance struct {
	handle Handle
	name   string
	typ    *Type
	impl   Lifecycle

	// params are the configuration values this instance was declared with.
	params map[string]any

	state State

	// inputs and outputs hold the bound resources per slot. Single-valued
	// slots use index 0; array slots hold an ordered list of producers.
	inputs  [][]*slot.Resource
	outputs [][]*slot.Resource

	// usedInCompile records, per input slot, which array indices were
	// actually consulted during Compile. The dependency tracker consults
	// this record, not mere presence, when deduplicating.
	usedInCompile []map[int]bool

	// executionOrder is assigned by the compiler's BuildExecutionOrder phase.
	executionOrder int

	// lastCostNs is the most recent estimated cost this node enqueued,
	// surfaced through the stats endpoint.
	lastCostNs uint64
}

// NewInstance creates an instance of typ backed by the given lifecycle
// implementation. The handle is assigned when the instance joins a graph.
func NewInstance(name string, typ *Type, impl Lifecycle, params map[string]any) *Instance {
	if params == nil {
		params = map[string]any{}
	}
	n := &Instance{
		handle:         InvalidHandle,
		name:           name,
		typ:            typ,
		impl:           impl,
		params:         params,
		state:          StateUninitialized,
		inputs:         make([][]*slot.Resource, len(typ.Inputs)),
		outputs:        make([][]*slot.Resource, len(typ.Outputs)),
		usedInCompile:  make([]map[int]bool, len(typ.Inputs)),
		executionOrder: -1,
	}
	for i := range n.usedInCompile {
		n.usedInCompile[i] = make(map[int]bool)
	}
	return n
}

// Name returns the instance name from the configuration.
func (n *Instance) Name() string { return n.name }

// Type returns the shared node template.
func (n *Instance) Type() *Type { return n.typ }

// Impl returns the lifecycle implementation.
func (n *Instance) Impl() Lifecycle { return n.impl }

// Handle returns the arena index within the owning graph.
func (n *Instance) Handle() Handle { return n.handle }

// SetHandle is called by the graph when the instance is added.
func (n *Instance) SetHandle(h Handle) { n.handle = h }

// Param returns the named configuration value and whether it was set.
func (n *Instance) Param(name string) (any, bool) {
	v, ok := n.params[name]
	return v, ok
}

// ParamString returns a string parameter or the given default.
func (n *Instance) ParamString(name, def string) string {
	if v, ok := n.params[name]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// ParamUint64 returns a numeric parameter or the given default. HCL numbers
// decode as int64 or float64 depending on the literal form.
func (n *Instance) ParamUint64(name string, def uint64) uint64 {
	v, ok := n.params[name]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int64:
		if t < 0 {
			return def
		}
		return uint64(t)
	case float64:
		if t < 0 {
			return def
		}
		return uint64(t)
	case int:
		if t < 0 {
			return def
		}
		return uint64(t)
	case uint64:
		return t
	}
	return def
}

// State returns the current lifecycle state.
func (n *Instance) State() State { return n.state }

// Dirty reports whether the instance awaits recompilation.
func (n *Instance) Dirty() bool { return n.state == StateDirty }

// transition validates and applies a lifecycle move. Illegal transitions are
// programmer errors in the compiler driver, so they panic.
func (n *Instance) transition(to State, from ...State) {
	for _, f := range from {
		if n.state == f {
			n.state = to
			return
		}
	}
	panic(fmt.Sprintf("node: illegal transition %s -> %s on %q", n.state, to, n.name))
}

// MarkSetupDone records a completed Setup. Valid from Uninitialized (first
// compile cycle) and from Dirty (after Cleanup in a recompile cycle).
func (n *Instance) MarkSetupDone() {
	n.transition(StateSetupDone, StateUninitialized, StateDirty)
}

// MarkCompiled records a successful Compile.
func (n *Instance) MarkCompiled() {
	n.transition(StateCompiled, StateSetupDone)
}

// MarkDirty flags the instance for recompilation at the next safe point.
// Marking an already-dirty node is a no-op; invalidation events may target a
// node multiple times within one cascade.
func (n *Instance) MarkDirty() {
	if n.state == StateDirty {
		return
	}
	n.transition(StateDirty, StateCompiled)
}

// Removable reports whether the instance may leave the graph: only while
// SetupDone or Compiled, never mid-cascade while Dirty.
func (n *Instance) Removable() bool {
	return n.state == StateSetupDone || n.state == StateCompiled
}

// SetInput binds a resource to an input slot position. index is ignored for
// single-valued slots and addresses an array position otherwise. Binding
// beyond the current array length grows the array; gaps hold nil.
func (n *Instance) SetInput(slotIdx, index int, r *slot.Resource) {
	n.checkSlot(slotIdx, len(n.inputs), "input")
	if !n.typ.AllowInputArrays {
		index = 0
	}
	n.inputs[slotIdx] = bindAt(n.inputs[slotIdx], index, r)
}

// SetOutput binds a resource to an output slot position.
func (n *Instance) SetOutput(slotIdx, index int, r *slot.Resource) {
	n.checkSlot(slotIdx, len(n.outputs), "output")
	n.outputs[slotIdx] = bindAt(n.outputs[slotIdx], index, r)
}

// Input returns the resource bound at an input slot position, or nil.
func (n *Instance) Input(slotIdx, index int) *slot.Resource {
	n.checkSlot(slotIdx, len(n.inputs), "input")
	if index < 0 || index >= len(n.inputs[slotIdx]) {
		return nil
	}
	return n.inputs[slotIdx][index]
}

// Output returns the resource bound at an output slot position, or nil.
func (n *Instance) Output(slotIdx, index int) *slot.Resource {
	n.checkSlot(slotIdx, len(n.outputs), "output")
	if index < 0 || index >= len(n.outputs[slotIdx]) {
		return nil
	}
	return n.outputs[slotIdx][index]
}

// InputCount returns the bound array width of an input slot.
func (n *Instance) InputCount(slotIdx int) int {
	n.checkSlot(slotIdx, len(n.inputs), "input")
	return len(n.inputs[slotIdx])
}

// OutputCount returns the bound array width of an output slot.
func (n *Instance) OutputCount(slotIdx int) int {
	n.checkSlot(slotIdx, len(n.outputs), "output")
	return len(n.outputs[slotIdx])
}

// MarkInputUsedInCompile records that a given array element was consulted
// during compilation.
func (n *Instance) MarkInputUsedInCompile(slotIdx, index int) {
	n.checkSlot(slotIdx, len(n.inputs), "input")
	if !n.typ.AllowInputArrays {
		index = 0
	}
	n.usedInCompile[slotIdx][index] = true
}

// InputUsedInCompile reports whether the usage record holds the element.
func (n *Instance) InputUsedInCompile(slotIdx, index int) bool {
	n.checkSlot(slotIdx, len(n.inputs), "input")
	return n.usedInCompile[slotIdx][index]
}

// ResetCompileState drops output bindings and the usage mask ahead of a
// recompile. Input bindings are rebuilt by the compiler from the graph's
// connections, so they are cleared too. The dropped resources themselves are
// the compiler's responsibility to hand to the destruction queue first.
func (n *Instance) ResetCompileState() {
	for i := range n.inputs {
		n.inputs[i] = nil
		n.usedInCompile[i] = make(map[int]bool)
	}
	for i := range n.outputs {
		n.outputs[i] = nil
	}
	n.executionOrder = -1
}

// ExecutionOrder returns the position assigned by BuildExecutionOrder, or -1.
func (n *Instance) ExecutionOrder() int { return n.executionOrder }

// SetExecutionOrder is called by the compiler.
func (n *Instance) SetExecutionOrder(order int) { n.executionOrder = order }

// LastCostNs returns the most recent cost estimate this node reported.
func (n *Instance) LastCostNs() uint64 { return n.lastCostNs }

// SetLastCostNs records the node's most recent cost estimate.
func (n *Instance) SetLastCostNs(cost uint64) { n.lastCostNs = cost }

func (n *Instance) checkSlot(idx, count int, kind string) {
	if idx < 0 || idx >= count {
		panic(fmt.Sprintf("node: %s slot %d out of range on %q (type %q has %d)",
			kind, idx, n.name, n.typ.Name, count))
	}
}

func bindAt(arr []*slot.Resource, index int, r *slot.Resource) []*slot.Resource {
	if index < 0 {
		panic(fmt.Sprintf("node: negative slot index %d", index))
	}
	for len(arr) <= index {
		arr = append(arr, nil)
	}
	arr[index] = r
	return arr
}
