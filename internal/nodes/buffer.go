package nodes

import (
	"context"
	"fmt"

	"github.com/voxgraph/voxgraph/internal/compiler"
	"github.com/voxgraph/voxgraph/internal/ctxlog"
	"github.com/voxgraph/voxgraph/internal/device"
	"github.com/voxgraph/voxgraph/internal/node"
	"github.com/voxgraph/voxgraph/internal/registry"
	"github.com/voxgraph/voxgraph/internal/slot"
)

var bufferType = &node.Type{
	Name:   "buffer",
	Inputs: nil,
	Outputs: []slot.Descriptor{
		{Name: "handle", Type: "buffer", Roles: slot.RoleOutput},
	},
}

func bufferDefinition() *registry.Definition {
	return &registry.Definition{
		Type: bufferType,
		New: func(cc *compiler.Context, params map[string]any) (node.Lifecycle, error) {
			return &bufferNode{cc: cc}, nil
		},
	}
}

// bufferNode allocates one device buffer during Compile and publishes its
// handle on the "handle" output slot. Parameters:
//
//	size_bytes    allocation size (default 256)
//	persistent    true pins the resource's lifetime tag to persistent
//	invalidate_on event kind(s) that mark this node Dirty
type bufferNode struct {
	cc *compiler.Context
}

func (b *bufferNode) Setup(ctx context.Context, n *node.Instance) error {
	subscribeInvalidations(b.cc, n)
	return nil
}

func (b *bufferNode) Compile(ctx context.Context, n *node.Instance) error {
	logger := ctxlog.FromContext(ctx)

	size := n.ParamUint64("size_bytes", 256)
	h, err := b.cc.Device.AllocateResource(ctx, device.Descriptor{
		Name:      n.Name(),
		Kind:      device.KindBuffer,
		SizeBytes: size,
	})
	if err != nil {
		return fmt.Errorf("buffer %q: allocate %d bytes: %w", n.Name(), size, err)
	}

	desc := bufferType.Outputs[0]
	if v, ok := n.Param("persistent"); ok {
		if persistent, ok := v.(bool); ok && persistent {
			desc.Lifetime = slot.LifetimePersistent
		}
	}
	r := slot.NewResource(desc)
	r.Set(h)
	n.SetOutput(0, 0, r)

	logger.Debug("Buffer allocated.", "node", n.Name(), "size_bytes", size, "handle", h.ID)
	return nil
}

func (b *bufferNode) PostCompile(ctx context.Context, n *node.Instance) error { return nil }

func (b *bufferNode) Execute(ctx context.Context, n *node.Instance) error { return nil }

func (b *bufferNode) Cleanup(ctx context.Context, n *node.Instance) error { return nil }
