package compiler

import "fmt"

// UnconnectedSlotError reports a required (non-nullable) input slot that no
// connection feeds. Validation fails before any resource allocation occurs,
// so no partial state is created.
type UnconnectedSlotError struct {
	Node string
	Slot string
}

func (e *UnconnectedSlotError) Error() string {
	return fmt.Sprintf("required input slot %q on node %q is not connected", e.Slot, e.Node)
}

// NonTerminationError reports a recompilation cascade that failed to reach a
// dirty-free fixed point within the defensive iteration cap. This is a
// configuration defect (a cascade re-dirtying its own ancestors), surfaced as
// a fatal diagnostic rather than a hang.
type NonTerminationError struct {
	Iterations int
	DirtyNodes []string
}

func (e *NonTerminationError) Error() string {
	return fmt.Sprintf("recompilation did not settle after %d iterations; still dirty: %v",
		e.Iterations, e.DirtyNodes)
}
