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

var textureType = &node.Type{
	Name: "texture",
	Outputs: []slot.Descriptor{
		{Name: "handle", Type: "texture", Roles: slot.RoleOutput},
	},
}

func textureDefinition() *registry.Definition {
	return &registry.Definition{
		Type: textureType,
		New: func(cc *compiler.Context, params map[string]any) (node.Lifecycle, error) {
			return &textureNode{cc: cc}, nil
		},
	}
}

// textureNode allocates a 2D device texture during Compile. Parameters:
//
//	width, height  texture dimensions (default 1x1)
//	format         backend format string (default "rgba8")
//	invalidate_on  event kind(s) that mark this node Dirty
type textureNode struct {
	cc *compiler.Context
}

func (t *textureNode) Setup(ctx context.Context, n *node.Instance) error {
	subscribeInvalidations(t.cc, n)
	return nil
}

func (t *textureNode) Compile(ctx context.Context, n *node.Instance) error {
	logger := ctxlog.FromContext(ctx)

	width := uint32(n.ParamUint64("width", 1))
	height := uint32(n.ParamUint64("height", 1))
	format := n.ParamString("format", "rgba8")

	h, err := t.cc.Device.AllocateResource(ctx, device.Descriptor{
		Name:   n.Name(),
		Kind:   device.KindTexture,
		Width:  width,
		Height: height,
		Format: format,
	})
	if err != nil {
		return fmt.Errorf("texture %q: allocate %dx%d %s: %w", n.Name(), width, height, format, err)
	}

	r := slot.NewResource(textureType.Outputs[0])
	r.Set(h)
	n.SetOutput(0, 0, r)

	logger.Debug("Texture allocated.",
		"node", n.Name(), "width", width, "height", height, "format", format, "handle", h.ID)
	return nil
}

func (t *textureNode) PostCompile(ctx context.Context, n *node.Instance) error { return nil }

func (t *textureNode) Execute(ctx context.Context, n *node.Instance) error { return nil }

func (t *textureNode) Cleanup(ctx context.Context, n *node.Instance) error { return nil }
