// Package deptrack maintains the bidirectional index from resources to their
// producing nodes, and answers deduplicated dependency queries for consumers.
package deptrack

import (
	"github.com/voxgraph/voxgraph/internal/node"
	"github.com/voxgraph/voxgraph/internal/slot"
)

// Producer records where a resource came from.
type Producer struct {
	Node        node.Handle
	OutputIndex int
}

// Tracker indexes resource origins. It is built incrementally as slots are
// populated during compilation and reset between compile cycles.
type Tracker struct {
	producers map[*slot.Resource]Producer
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{producers: make(map[*slot.Resource]Producer)}
}

// RegisterResourceProducer records one resource's origin. Re-registering an
// already-known resource overwrites the prior mapping (last-write-wins),
// which supports resource recycling across recompiles. A nil resource is
// ignored.
func (t *Tracker) RegisterResourceProducer(r *slot.Resource, producer node.Handle, outputIndex int) {
	if r == nil {
		return
	}
	t.producers[r] = Producer{Node: producer, OutputIndex: outputIndex}
}

// Producer looks up the registered origin of a resource.
func (t *Tracker) Producer(r *slot.Resource) (Producer, bool) {
	p, ok := t.producers[r]
	return p, ok
}

// GetDependenciesForNode returns the deduplicated set of producer nodes whose
// resources are bound, and marked used-in-compile, in the consumer's input
// slots. Dependency identity is per-producer-node: a producer contributing
// several array elements appears exactly once. Order is the first-encounter
// order of the slot/index scan, which is deterministic for a fixed binding
// order.
//
// Resources with no registered producer are silently excluded: an externally
// supplied or nil resource signals "no internal ordering constraint", not an
// error. The consumer itself is never part of its own dependency set.
func (t *Tracker) GetDependenciesForNode(consumer *node.Instance) []node.Handle {
	seen := make(map[node.Handle]bool)
	var deps []node.Handle
	for slotIdx := 0; slotIdx < len(consumer.Type().Inputs); slotIdx++ {
		for i := 0; i < consumer.InputCount(slotIdx); i++ {
			if !consumer.InputUsedInCompile(slotIdx, i) {
				continue
			}
			r := consumer.Input(slotIdx, i)
			if r == nil {
				continue
			}
			p, ok := t.producers[r]
			if !ok || p.Node == consumer.Handle() {
				continue
			}
			if !seen[p.Node] {
				seen[p.Node] = true
				deps = append(deps, p.Node)
			}
		}
	}
	return deps
}

// Clear resets all state. A cleared tracker re-registered with the same
// producer/resource pairs answers identically to a fresh one.
func (t *Tracker) Clear() {
	t.producers = make(map[*slot.Resource]Producer)
}

// Len returns the number of registered resources.
func (t *Tracker) Len() int {
	return len(t.producers)
}
