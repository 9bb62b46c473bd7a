// Package nodes provides the built-in node kinds: buffers, textures,
// compute pipelines, dispatches and presentation. Each kind registers a
// template plus a factory; instances run the standard lifecycle under the
// graph compiler.
package nodes

import (
	"github.com/voxgraph/voxgraph/internal/compiler"
	"github.com/voxgraph/voxgraph/internal/events"
	"github.com/voxgraph/voxgraph/internal/node"
	"github.com/voxgraph/voxgraph/internal/registry"
)

// CoreModule registers every built-in node kind.
type CoreModule struct{}

// Register implements registry.Module.
func (CoreModule) Register(r *registry.Registry) {
	r.Register(bufferDefinition())
	r.Register(textureDefinition())
	r.Register(computePipelineDefinition())
	r.Register(dispatchDefinition())
	r.Register(presentDefinition())
}

// Core is the default module set the App registers.
var Core = []registry.Module{CoreModule{}}

// subscribeInvalidations wires the instance to the event kinds named by its
// `invalidate_on` parameter (a string or list of strings). Receiving any of
// them marks the node Dirty for the next safe point. Nodes not yet Compiled
// ignore events; there is nothing to invalidate.
func subscribeInvalidations(cc *compiler.Context, n *node.Instance) {
	raw, ok := n.Param("invalidate_on")
	if !ok {
		return
	}
	var kinds []string
	switch v := raw.(type) {
	case string:
		kinds = []string{v}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				kinds = append(kinds, s)
			}
		}
	}
	for _, k := range kinds {
		cc.Events.Subscribe(events.Kind(k), n.Handle(), func(events.Event) {
			if n.State() == node.StateCompiled {
				n.MarkDirty()
			}
		})
	}
}
