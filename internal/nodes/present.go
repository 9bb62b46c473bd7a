package nodes

import (
	"context"

	"github.com/voxgraph/voxgraph/internal/compiler"
	"github.com/voxgraph/voxgraph/internal/ctxlog"
	"github.com/voxgraph/voxgraph/internal/node"
	"github.com/voxgraph/voxgraph/internal/registry"
	"github.com/voxgraph/voxgraph/internal/slot"
)

var presentType = &node.Type{
	Name: "present",
	Inputs: []slot.Descriptor{
		{Name: "source", Type: "buffer", Roles: slot.RoleDependency | slot.RoleExecute},
	},
}

func presentDefinition() *registry.Definition {
	return &registry.Definition{
		Type: presentType,
		New: func(cc *compiler.Context, params map[string]any) (node.Lifecycle, error) {
			return &presentNode{cc: cc}, nil
		},
	}
}

// presentNode hands the finished frame to the display. Presentation is
// mandatory regardless of the frame budget, so its work item is enqueued
// without admission accounting at the highest priority.
type presentNode struct {
	cc *compiler.Context
}

func (p *presentNode) Setup(ctx context.Context, n *node.Instance) error {
	subscribeInvalidations(p.cc, n)
	return nil
}

func (p *presentNode) Compile(ctx context.Context, n *node.Instance) error {
	n.MarkInputUsedInCompile(0, 0)
	return nil
}

func (p *presentNode) PostCompile(ctx context.Context, n *node.Instance) error { return nil }

func (p *presentNode) Execute(ctx context.Context, n *node.Instance) error {
	name := n.Name()
	p.cc.Queue.EnqueueUnchecked(compiler.GPUWork{
		Node: n.Handle(),
		Name: name,
		Submit: func(ctx context.Context) error {
			ctxlog.FromContext(ctx).Debug("Frame presented.", "node", name)
			return nil
		},
	}, 255)
	return nil
}

func (p *presentNode) Cleanup(ctx context.Context, n *node.Instance) error { return nil }
