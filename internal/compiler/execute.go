package compiler

import (
	"context"
	"fmt"

	"github.com/voxgraph/voxgraph/internal/ctxlog"
	"github.com/voxgraph/voxgraph/internal/node"
	"github.com/voxgraph/voxgraph/internal/taskqueue"
)

// ExecuteFrame runs one frame: every Compiled node's Execute in the
// finalized order (nodes enqueue their GPU work against the frame budget),
// then the queue drains in priority order and each item is submitted. The
// recompilation fixed point must have settled before this is called; a Dirty
// node here is a driver bug.
func (c *Compiler) ExecuteFrame(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	ctx, span := c.cc.tracer().Start(ctx, "compiler.ExecuteFrame")
	defer span.End()

	if c.order == nil {
		return fmt.Errorf("compiler: ExecuteFrame before successful Compile")
	}
	for _, h := range c.order {
		inst := c.graph.Node(h)
		if inst == nil {
			continue
		}
		if inst.Dirty() {
			return fmt.Errorf("compiler: node %q is dirty at frame execution; recompilation did not settle", inst.Name())
		}
		if inst.State() != node.StateCompiled {
			continue
		}
		if err := inst.Impl().Execute(ctx, inst); err != nil {
			return fmt.Errorf("execute of node %q: %w", inst.Name(), err)
		}
	}

	c.cc.Queue.Drain(func(s taskqueue.Slot[GPUWork]) {
		task := taskqueue.NewTask()
		if err := task.Start(); err != nil {
			panic(err)
		}
		if err := s.Data.Submit(ctx); err != nil {
			_ = task.Fail(err)
			logger.Error("GPU work submission failed.", "work", s.Data.Name, "error", err)
			return
		}
		_ = task.Complete()
		logger.Debug("GPU work submitted.", "work", s.Data.Name, "priority", s.Priority, "cost_ns", s.EstimatedCostNs)
	})
	return nil
}
