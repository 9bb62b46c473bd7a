package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/voxgraph/voxgraph/internal/ctxlog"
	"github.com/voxgraph/voxgraph/internal/slot"
)

// Validate performs a strict integrity check over every registered
// definition: factories present, slot names unique and role flags coherent.
// A broken definition is a mismatch between code and registration, so the
// caller is expected to treat a non-nil error as fatal at startup.
func (r *Registry) Validate(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	var errs []string

	for _, kind := range r.Kinds() {
		def := r.defs[kind]
		if def.New == nil {
			errs = append(errs, fmt.Sprintf("kind %q: no factory registered", kind))
		}

		seen := make(map[string]bool)
		for _, d := range def.Type.Inputs {
			if seen[d.Name] {
				errs = append(errs, fmt.Sprintf("kind %q: duplicate input slot name %q", kind, d.Name))
			}
			seen[d.Name] = true
			if d.Roles == 0 {
				errs = append(errs, fmt.Sprintf("kind %q: input slot %q has no roles", kind, d.Name))
			}
			if d.Roles.Has(slot.RoleOutput) {
				errs = append(errs, fmt.Sprintf("kind %q: input slot %q carries the Output role", kind, d.Name))
			}
			if d.Type == "" {
				errs = append(errs, fmt.Sprintf("kind %q: input slot %q has no semantic type tag", kind, d.Name))
			}
		}

		seen = make(map[string]bool)
		for _, d := range def.Type.Outputs {
			if seen[d.Name] {
				errs = append(errs, fmt.Sprintf("kind %q: duplicate output slot name %q", kind, d.Name))
			}
			seen[d.Name] = true
			if !d.Roles.Has(slot.RoleOutput) {
				errs = append(errs, fmt.Sprintf("kind %q: output slot %q lacks the Output role", kind, d.Name))
			}
			if d.Type == "" {
				errs = append(errs, fmt.Sprintf("kind %q: output slot %q has no semantic type tag", kind, d.Name))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	logger.Debug("Registry validation passed.", "kinds", len(r.defs))
	return nil
}
