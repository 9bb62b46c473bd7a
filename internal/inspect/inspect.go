// Package inspect renders a graph's dependency structure as a drawn tree for
// terminal diagnostics.
package inspect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/m1gwings/treedrawer/tree"

	"github.com/voxgraph/voxgraph/internal/graph"
	"github.com/voxgraph/voxgraph/internal/node"
	"github.com/voxgraph/voxgraph/internal/slot"
)

// RenderDependencyTree draws one tree per sink node (a node no other node
// depends on), with each node's Dependency-role producers as its children.
// Shared producers appear under every consumer; diamonds render as repeated
// subtrees, which reads better in a terminal than a collapsed DAG.
func RenderDependencyTree(g *graph.Graph) string {
	deps := dependencyProducers(g)

	consumed := make(map[node.Handle]bool)
	for _, producers := range deps {
		for _, p := range producers {
			consumed[p] = true
		}
	}

	var sinks []node.Handle
	for _, h := range g.Handles() {
		if !consumed[h] {
			sinks = append(sinks, h)
		}
	}
	sort.Slice(sinks, func(i, j int) bool { return sinks[i] < sinks[j] })

	if len(sinks) == 0 {
		return "(empty graph)\n"
	}

	var sb strings.Builder
	for _, sink := range sinks {
		t := tree.NewTree(tree.NodeString(label(g.Node(sink))))
		addChildren(t, g, deps, sink)
		sb.WriteString(t.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

func addChildren(t *tree.Tree, g *graph.Graph, deps map[node.Handle][]node.Handle, h node.Handle) {
	for _, p := range deps[h] {
		child := t.AddChild(tree.NodeString(label(g.Node(p))))
		addChildren(child, g, deps, p)
	}
}

func label(inst *node.Instance) string {
	if inst == nil {
		return "(removed)"
	}
	return fmt.Sprintf("%s [%s, %s]", inst.Name(), inst.Type().Name, inst.State())
}

// dependencyProducers maps each consumer to the sorted, deduplicated set of
// producers wired into its Dependency-role input slots.
func dependencyProducers(g *graph.Graph) map[node.Handle][]node.Handle {
	set := make(map[node.Handle]map[node.Handle]bool)
	for _, c := range g.Connections() {
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
	deps := make(map[node.Handle][]node.Handle, len(set))
	for to, froms := range set {
		list := make([]node.Handle, 0, len(froms))
		for from := range froms {
			list = append(list, from)
		}
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		deps[to] = list
	}
	return deps
}
