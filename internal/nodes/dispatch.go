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

var dispatchType = &node.Type{
	Name: "dispatch",
	Inputs: []slot.Descriptor{
		{Name: "pipeline", Type: "pipeline", Roles: slot.RoleDependency | slot.RoleExecute},
		{Name: "inputs", Type: "buffer", Roles: slot.RoleDependency | slot.RoleExecute},
		// An indirect-arguments buffer is optional; leaving it unconnected is
		// valid and common.
		{Name: "indirect", Type: "buffer", Nullable: true, Roles: slot.RoleExecute},
	},
	Outputs: []slot.Descriptor{
		{Name: "result", Type: "buffer", Roles: slot.RoleOutput},
	},
	AllowInputArrays: true,
}

const (
	dispatchSlotPipeline = 0
	dispatchSlotInputs   = 1
	dispatchSlotIndirect = 2
)

func dispatchDefinition() *registry.Definition {
	return &registry.Definition{
		Type: dispatchType,
		New: func(cc *compiler.Context, params map[string]any) (node.Lifecycle, error) {
			return &dispatchNode{cc: cc}, nil
		},
	}
}

// dispatchNode records one compute dispatch per frame against the bound
// pipeline and input buffers, writing into a result buffer it allocates at
// Compile. Parameters:
//
//	groups_x, groups_y, groups_z  workgroup counts (default 1)
//	result_size_bytes             result buffer size (default 256)
//	estimated_cost_ns             admission cost estimate (default 100000)
//	priority                      drain priority 0..255 (default 128)
//	invalidate_on                 event kind(s) that mark this node Dirty
type dispatchNode struct {
	cc *compiler.Context
}

func (d *dispatchNode) Setup(ctx context.Context, n *node.Instance) error {
	subscribeInvalidations(d.cc, n)
	return nil
}

func (d *dispatchNode) Compile(ctx context.Context, n *node.Instance) error {
	logger := ctxlog.FromContext(ctx)

	// The pipeline and every bound input buffer feed the descriptor layout
	// built here, so they count as compile-time uses. The indirect buffer is
	// consumed at execute time only and stays out of the usage record.
	n.MarkInputUsedInCompile(dispatchSlotPipeline, 0)
	for i := 0; i < n.InputCount(dispatchSlotInputs); i++ {
		if n.Input(dispatchSlotInputs, i) != nil {
			n.MarkInputUsedInCompile(dispatchSlotInputs, i)
		}
	}

	size := n.ParamUint64("result_size_bytes", 256)
	h, err := d.cc.Device.AllocateResource(ctx, device.Descriptor{
		Name:      n.Name() + "/result",
		Kind:      device.KindBuffer,
		SizeBytes: size,
	})
	if err != nil {
		return fmt.Errorf("dispatch %q: allocate result buffer: %w", n.Name(), err)
	}
	r := slot.NewResource(dispatchType.Outputs[0])
	r.Set(h)
	n.SetOutput(0, 0, r)

	logger.Debug("Dispatch compiled.",
		"node", n.Name(), "input_buffers", n.InputCount(dispatchSlotInputs), "result_bytes", size)
	return nil
}

func (d *dispatchNode) PostCompile(ctx context.Context, n *node.Instance) error { return nil }

func (d *dispatchNode) Execute(ctx context.Context, n *node.Instance) error {
	logger := ctxlog.FromContext(ctx)

	gx := n.ParamUint64("groups_x", 1)
	gy := n.ParamUint64("groups_y", 1)
	gz := n.ParamUint64("groups_z", 1)
	cost := n.ParamUint64("estimated_cost_ns", 100_000)
	priority := uint8(n.ParamUint64("priority", 128))
	name := n.Name()

	work := compiler.GPUWork{
		Node: n.Handle(),
		Name: name,
		Submit: func(ctx context.Context) error {
			ctxlog.FromContext(ctx).Debug("Dispatch submitted.",
				"node", name, "groups_x", gx, "groups_y", gy, "groups_z", gz)
			return nil
		},
	}

	n.SetLastCostNs(cost)
	if !d.cc.Queue.TryEnqueue(work, cost, priority) {
		logger.Warn("Dispatch rejected by frame budget, deferred to a later frame.",
			"node", name, "cost_ns", cost,
			"remaining_ns", d.cc.Queue.GetRemainingBudget())
	}
	return nil
}

func (d *dispatchNode) Cleanup(ctx context.Context, n *node.Instance) error { return nil }
