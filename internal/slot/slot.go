// Package slot defines the typed connection points of a node template and
// the type-erased resource handles that flow through them.
package slot

import "strings"

// Role describes how a node uses the resource bound to a slot. Roles are bit
// flags and combinable: a slot can be both a Dependency and an Execute slot.
type Role uint8

const (
	// RoleDependency slots impose ordering: the producer must compile before
	// the consumer. Only Dependency edges participate in cycle detection and
	// topological sorting.
	RoleDependency Role = 1 << iota
	// RoleExecute slots are consumed during Execute. Execute-role resources
	// may remain unresolved until PostCompile.
	RoleExecute
	// RoleCleanupOnly slots are consulted only during Cleanup.
	RoleCleanupOnly
	// RoleOutput marks a producing slot.
	RoleOutput
)

// Has reports whether all bits of f are set on r.
func (r Role) Has(f Role) bool {
	return r&f == f
}

func (r Role) String() string {
	if r == 0 {
		return "none"
	}
	var parts []string
	if r.Has(RoleDependency) {
		parts = append(parts, "dependency")
	}
	if r.Has(RoleExecute) {
		parts = append(parts, "execute")
	}
	if r.Has(RoleCleanupOnly) {
		parts = append(parts, "cleanup-only")
	}
	if r.Has(RoleOutput) {
		parts = append(parts, "output")
	}
	return strings.Join(parts, "|")
}

// Lifetime tags a slot's resource as frame-local or long-lived.
type Lifetime uint8

const (
	// LifetimeTransient resources are candidates for lifetime-based reuse.
	LifetimeTransient Lifetime = iota
	// LifetimePersistent resources are never aliased or reused.
	LifetimePersistent
)

func (l Lifetime) String() string {
	if l == LifetimePersistent {
		return "persistent"
	}
	return "transient"
}

// Descriptor describes one named connection point on a node template.
type Descriptor struct {
	// Name identifies the slot within its node type.
	Name string
	// Type is a semantic type tag; connections are only valid between slots
	// with matching tags.
	Type string
	// Lifetime of the resource bound here.
	Lifetime Lifetime
	// Nullable input slots may be left unconnected; non-nullable unconnected
	// inputs fail validation.
	Nullable bool
	// Roles is the combined role bit set for this slot.
	Roles Role
}
