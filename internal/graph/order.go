package graph

import (
	"fmt"
	"strings"

	"github.com/voxgraph/voxgraph/internal/node"
)

// CycleError reports a dependency cycle with the full path through it.
type CycleError struct {
	// Path holds the node names along the cycle; the first name is repeated
	// at the end to close the loop.
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}

// DetectCycles checks that Dependency-role edges form a DAG, using
// depth-first search with a three-color mark. On failure it returns a
// *CycleError carrying the full cycle path. Traversal order is insertion
// order, so the reported cycle is deterministic.
func (g *Graph) DetectCycles() error {
	const (
		white = iota // unvisited
		grey         // on the current recursion stack
		black        // fully explored
	)
	color := make(map[node.Handle]int)
	adj := g.dependencyAdjacency()

	var stack []node.Handle
	var visit func(h node.Handle) *CycleError
	visit = func(h node.Handle) *CycleError {
		color[h] = grey
		stack = append(stack, h)
		for _, dep := range adj[h] {
			switch color[dep] {
			case grey:
				// Found the back edge; slice the stack from the first
				// occurrence of dep to get the full cycle.
				start := 0
				for i, s := range stack {
					if s == dep {
						start = i
						break
					}
				}
				path := make([]string, 0, len(stack)-start+1)
				for _, s := range stack[start:] {
					path = append(path, g.Node(s).Name())
				}
				path = append(path, g.Node(dep).Name())
				return &CycleError{Path: path}
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[h] = black
		return nil
	}

	for _, h := range g.Handles() {
		if color[h] == white {
			if err := visit(h); err != nil {
				return err
			}
		}
	}
	return nil
}

// TopoSort returns all live nodes ordered so every producer precedes its
// consumers along Dependency-role edges. Ties (no path between two nodes)
// are broken by insertion order, which makes the result reproducible across
// runs with identical graph-construction order. An error is returned if the
// graph is cyclic; callers normally run DetectCycles first for the richer
// cycle-path diagnostics.
func (g *Graph) TopoSort() ([]node.Handle, error) {
	adj := g.dependencyAdjacency()
	indegree := make(map[node.Handle]int)
	dependents := make(map[node.Handle][]node.Handle)
	for _, h := range g.Handles() {
		indegree[h] = len(adj[h])
		for _, dep := range adj[h] {
			dependents[dep] = append(dependents[dep], h)
		}
	}

	// Kahn's algorithm with a ready list kept in ascending handle order.
	// Handles are assigned in insertion order, so the smallest ready handle
	// is always the earliest-inserted one.
	var ready []node.Handle
	for _, h := range g.Handles() {
		if indegree[h] == 0 {
			ready = append(ready, h)
		}
	}

	order := make([]node.Handle, 0, g.Len())
	for len(ready) > 0 {
		min := 0
		for i := 1; i < len(ready); i++ {
			if ready[i] < ready[min] {
				min = i
			}
		}
		h := ready[min]
		ready = append(ready[:min], ready[min+1:]...)
		order = append(order, h)
		for _, dep := range dependents[h] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != g.Len() {
		return nil, fmt.Errorf("graph: topological sort incomplete (%d of %d nodes), graph is cyclic",
			len(order), g.Len())
	}
	return order, nil
}
