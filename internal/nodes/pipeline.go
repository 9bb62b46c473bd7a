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

var computePipelineType = &node.Type{
	Name: "compute_pipeline",
	Outputs: []slot.Descriptor{
		// Execute-role output: consumers may compile against it before the
		// backend state exists; it stays Pending until PostCompile.
		{Name: "pipeline", Type: "pipeline", Roles: slot.RoleOutput},
	},
}

// PipelineState is the payload published on a pipeline resource. The backend
// handle inside it is owned by the pipeline cache, not by any single node, so
// the compiler's cleanup path must not defer its release; wrapping the handle
// in this struct keeps it out of the per-node destruction flow.
type PipelineState struct {
	Handle device.Handle
	Shader string
}

func computePipelineDefinition() *registry.Definition {
	return &registry.Definition{
		Type: computePipelineType,
		New: func(cc *compiler.Context, params map[string]any) (node.Lifecycle, error) {
			shader, _ := params["shader"].(string)
			if shader == "" {
				return nil, fmt.Errorf("compute_pipeline: missing required parameter %q", "shader")
			}
			return &computePipelineNode{cc: cc, shader: shader}, nil
		},
	}
}

// computePipelineNode publishes a shared compute pipeline. Compile only
// creates the resource and marks it Pending; the expensive build happens in
// PostCompile through the pipeline cache, so two nodes naming the same shader
// share one backend pipeline.
type computePipelineNode struct {
	cc     *compiler.Context
	shader string
}

func (p *computePipelineNode) Setup(ctx context.Context, n *node.Instance) error {
	subscribeInvalidations(p.cc, n)
	return nil
}

func (p *computePipelineNode) Compile(ctx context.Context, n *node.Instance) error {
	r := slot.NewResource(computePipelineType.Outputs[0])
	r.MarkPending()
	n.SetOutput(0, 0, r)
	return nil
}

func (p *computePipelineNode) PostCompile(ctx context.Context, n *node.Instance) error {
	logger := ctxlog.FromContext(ctx)

	key := "compute_pipeline/" + p.shader
	v, err := p.cc.Pipelines.GetOrCreate(ctx, key, func() (any, error) {
		h, err := p.cc.Device.AllocateResource(ctx, device.Descriptor{
			Name: key,
			Kind: device.KindPipeline,
		})
		if err != nil {
			return nil, err
		}
		return PipelineState{Handle: h, Shader: p.shader}, nil
	})
	if err != nil {
		r := n.Output(0, 0)
		if r != nil {
			r.MarkFailed()
		}
		return fmt.Errorf("compute_pipeline %q: build shader %q: %w", n.Name(), p.shader, err)
	}

	state := v.(PipelineState)
	n.Output(0, 0).Set(state)

	logger.Debug("Pipeline resolved.", "node", n.Name(), "shader", p.shader, "handle", state.Handle.ID)
	return nil
}

func (p *computePipelineNode) Execute(ctx context.Context, n *node.Instance) error { return nil }

func (p *computePipelineNode) Cleanup(ctx context.Context, n *node.Instance) error { return nil }
