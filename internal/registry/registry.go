// Package registry holds the node kinds available to a single application
// instance: their immutable templates and the factories producing lifecycle
// implementations. There is no process-global registry; each App owns one.
package registry

import (
	"fmt"
	"sort"

	"github.com/voxgraph/voxgraph/internal/compiler"
	"github.com/voxgraph/voxgraph/internal/node"
)

// Factory builds one lifecycle implementation for a node instance declared
// with the given parameters.
type Factory func(cc *compiler.Context, params map[string]any) (node.Lifecycle, error)

// Definition pairs a node template with its factory.
type Definition struct {
	Type *node.Type
	New  Factory
}

// Module is the interface all built-in node collections implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Registry maps kind names to definitions for one application instance.
type Registry struct {
	defs map[string]*Definition
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds a definition under its template's name. Re-registering a
// kind is a programmer error and panics.
func (r *Registry) Register(def *Definition) {
	if def == nil || def.Type == nil {
		panic("registry: nil definition")
	}
	kind := def.Type.Name
	if _, exists := r.defs[kind]; exists {
		panic(fmt.Sprintf("registry: duplicate node kind %q", kind))
	}
	r.defs[kind] = def
}

// Definition returns the definition for a kind.
func (r *Registry) Definition(kind string) (*Definition, bool) {
	def, ok := r.defs[kind]
	return def, ok
}

// Kinds returns the registered kind names in sorted order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.defs))
	for k := range r.defs {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
