// Package graph holds the arena of node instances and the typed connections
// between their slots, and provides cycle detection and deterministic
// topological ordering over Dependency-role edges.
package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/voxgraph/voxgraph/internal/ctxlog"
	"github.com/voxgraph/voxgraph/internal/node"
	"github.com/voxgraph/voxgraph/internal/slot"
)

// Connection is one structural edge: an output slot of a producer wired into
// an input slot position of a consumer. Resources flow along connections
// during compilation.
type Connection struct {
	From       node.Handle
	FromOutput int
	To         node.Handle
	ToInput    int
	// Index addresses the array position on the consumer's input slot; it is
	// ignored for single-valued slots.
	Index int
}

// Graph is the arena of node instances plus their connections. Insertion
// order is significant: it breaks topological-sort ties, giving reproducible
// execution order across runs with identical graph-construction order.
//
// Graph is not safe for concurrent mutation; construction and compilation are
// frame-synchronous on the host side.
type Graph struct {
	nodes       []*node.Instance
	byName      map[string]node.Handle
	connections []Connection
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{byName: make(map[string]node.Handle)}
}

// AddNode places an instance into the arena and assigns its handle.
// Instance names must be unique within a graph.
func (g *Graph) AddNode(inst *node.Instance) (node.Handle, error) {
	if _, exists := g.byName[inst.Name()]; exists {
		return node.InvalidHandle, fmt.Errorf("graph: duplicate node name %q", inst.Name())
	}
	h := node.Handle(len(g.nodes))
	inst.SetHandle(h)
	g.nodes = append(g.nodes, inst)
	g.byName[inst.Name()] = h
	return h, nil
}

// RemoveNode detaches an instance from the graph. Removal is only legal while
// the node is SetupDone or Compiled, never while Dirty mid-cascade. The arena
// slot is tombstoned so remaining handles stay stable.
func (g *Graph) RemoveNode(h node.Handle) error {
	inst := g.Node(h)
	if inst == nil {
		return fmt.Errorf("graph: no node at handle %d", h)
	}
	if !inst.Removable() {
		return fmt.Errorf("graph: node %q not removable in state %s", inst.Name(), inst.State())
	}
	delete(g.byName, inst.Name())
	g.nodes[h] = nil
	kept := g.connections[:0]
	for _, c := range g.connections {
		if c.From != h && c.To != h {
			kept = append(kept, c)
		}
	}
	g.connections = kept
	return nil
}

// Node returns the instance at a handle, or nil for invalid/removed handles.
func (g *Graph) Node(h node.Handle) *node.Instance {
	if h < 0 || int(h) >= len(g.nodes) {
		return nil
	}
	return g.nodes[h]
}

// NodeByName returns the instance with the given name.
func (g *Graph) NodeByName(name string) (*node.Instance, bool) {
	h, ok := g.byName[name]
	if !ok {
		return nil, false
	}
	return g.nodes[h], true
}

// Handles returns all live node handles in insertion order.
func (g *Graph) Handles() []node.Handle {
	hs := make([]node.Handle, 0, len(g.nodes))
	for i, inst := range g.nodes {
		if inst != nil {
			hs = append(hs, node.Handle(i))
		}
	}
	return hs
}

// Len returns the number of live nodes.
func (g *Graph) Len() int {
	n := 0
	for _, inst := range g.nodes {
		if inst != nil {
			n++
		}
	}
	return n
}

// Connect wires a producer's output slot into a consumer's input slot. Slot
// positions are validated against the node types, including the semantic
// type tags and whether the consumer accepts array inputs at index > 0.
func (g *Graph) Connect(ctx context.Context, c Connection) error {
	logger := ctxlog.FromContext(ctx)

	from := g.Node(c.From)
	to := g.Node(c.To)
	if from == nil || to == nil {
		return fmt.Errorf("graph: connection references missing node (%d -> %d)", c.From, c.To)
	}
	if c.From == c.To {
		return fmt.Errorf("graph: self-referential connection not allowed on %q", from.Name())
	}
	if c.FromOutput < 0 || c.FromOutput >= len(from.Type().Outputs) {
		return fmt.Errorf("graph: node %q has no output slot %d", from.Name(), c.FromOutput)
	}
	if c.ToInput < 0 || c.ToInput >= len(to.Type().Inputs) {
		return fmt.Errorf("graph: node %q has no input slot %d", to.Name(), c.ToInput)
	}
	outDesc := from.Type().Outputs[c.FromOutput]
	inDesc := to.Type().Inputs[c.ToInput]
	if outDesc.Type != inDesc.Type {
		return fmt.Errorf("graph: type mismatch %q (%s) -> %q (%s)",
			outDesc.Name, outDesc.Type, inDesc.Name, inDesc.Type)
	}
	if c.Index > 0 && !to.Type().AllowInputArrays {
		return fmt.Errorf("graph: node %q does not accept input arrays (index %d on slot %q)",
			to.Name(), c.Index, inDesc.Name)
	}
	if c.Index < 0 {
		return fmt.Errorf("graph: negative connection index %d", c.Index)
	}

	g.connections = append(g.connections, c)
	logger.Debug("Connection added.",
		"from", from.Name(), "output", outDesc.Name,
		"to", to.Name(), "input", inDesc.Name, "index", c.Index)
	return nil
}

// Connections returns all connections in declaration order.
func (g *Graph) Connections() []Connection {
	return g.connections
}

// ConnectionsInto returns the connections feeding a consumer, in declaration
// order.
func (g *Graph) ConnectionsInto(h node.Handle) []Connection {
	var into []Connection
	for _, c := range g.connections {
		if c.To == h {
			into = append(into, c)
		}
	}
	return into
}

// dependencyAdjacency returns, per consumer, the sorted set of producers it
// depends on through Dependency-role input slots. Only Dependency edges
// participate in ordering; Execute- or CleanupOnly-only connections impose no
// ordering constraint.
func (g *Graph) dependencyAdjacency() map[node.Handle][]node.Handle {
	set := make(map[node.Handle]map[node.Handle]bool)
	for _, c := range g.connections {
		to := g.Node(c.To)
		if to == nil || g.Node(c.From) == nil {
			continue
		}
		if !to.Type().Inputs[c.ToInput].Roles.Has(slot.RoleDependency) {
			continue
		}
		if set[c.To] == nil {
			set[c.To] = make(map[node.Handle]bool)
		}
		set[c.To][c.From] = true
	}
	adj := make(map[node.Handle][]node.Handle, len(set))
	for to, froms := range set {
		list := make([]node.Handle, 0, len(froms))
		for from := range froms {
			list = append(list, from)
		}
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		adj[to] = list
	}
	return adj
}
