package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/voxgraph/voxgraph/internal/ctxlog"
	"github.com/voxgraph/voxgraph/internal/graph"
	"github.com/voxgraph/voxgraph/internal/node"
)

// buildGraph instantiates every declared node through its registered factory
// and wires the declared connections. Declaration order becomes arena
// insertion order, which is what makes execution order reproducible for a
// fixed definition.
func (a *App) buildGraph(ctx context.Context) (*graph.Graph, error) {
	logger := ctxlog.FromContext(ctx)
	g := graph.New()

	for _, decl := range a.model.Nodes {
		def, ok := a.registry.Definition(decl.Kind)
		if !ok {
			return nil, fmt.Errorf("node %q: unknown kind %q (registered: %v)",
				decl.Name, decl.Kind, a.registry.Kinds())
		}
		impl, err := def.New(a.cc, decl.Params)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", decl.Name, err)
		}
		inst := node.NewInstance(decl.Name, def.Type, impl, decl.Params)
		if _, err := g.AddNode(inst); err != nil {
			return nil, err
		}
	}
	logger.Debug("Nodes instantiated.", "count", g.Len())

	for _, decl := range a.model.Connections {
		conn, err := resolveConnection(g, decl.From, decl.To, decl.Index)
		if err != nil {
			return nil, err
		}
		if err := g.Connect(ctx, conn); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// resolveConnection translates "node.slot" endpoint strings into handle and
// slot indices.
func resolveConnection(g *graph.Graph, from, to string, index int) (graph.Connection, error) {
	fromNode, fromSlot, err := splitEndpoint(from)
	if err != nil {
		return graph.Connection{}, err
	}
	toNode, toSlot, err := splitEndpoint(to)
	if err != nil {
		return graph.Connection{}, err
	}

	producer, ok := g.NodeByName(fromNode)
	if !ok {
		return graph.Connection{}, fmt.Errorf("connect: unknown node %q in %q", fromNode, from)
	}
	consumer, ok := g.NodeByName(toNode)
	if !ok {
		return graph.Connection{}, fmt.Errorf("connect: unknown node %q in %q", toNode, to)
	}

	outIdx := producer.Type().OutputIndex(fromSlot)
	if outIdx < 0 {
		return graph.Connection{}, fmt.Errorf("connect: node %q has no output slot %q", fromNode, fromSlot)
	}
	inIdx := consumer.Type().InputIndex(toSlot)
	if inIdx < 0 {
		return graph.Connection{}, fmt.Errorf("connect: node %q has no input slot %q", toNode, toSlot)
	}

	return graph.Connection{
		From:       producer.Handle(),
		FromOutput: outIdx,
		To:         consumer.Handle(),
		ToInput:    inIdx,
		Index:      index,
	}, nil
}

func splitEndpoint(s string) (nodeName, slotName string, err error) {
	nodeName, slotName, ok := strings.Cut(s, ".")
	if !ok || nodeName == "" || slotName == "" {
		return "", "", fmt.Errorf("connect: endpoint %q is not in node.slot form", s)
	}
	return nodeName, slotName, nil
}
