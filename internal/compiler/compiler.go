package compiler

import (
	"context"
	"fmt"

	"github.com/voxgraph/voxgraph/internal/ctxlog"
	"github.com/voxgraph/voxgraph/internal/device"
	"github.com/voxgraph/voxgraph/internal/graph"
	"github.com/voxgraph/voxgraph/internal/node"
)

// Compiler turns a constructed graph into a validated, resource-allocated,
// ordered execution plan, and keeps it valid across invalidation cascades.
type Compiler struct {
	graph *graph.Graph
	cc    *Context

	// order is the finalized execution order from the last successful
	// compile; nil until Compile succeeds.
	order []node.Handle
}

// New creates a compiler over the given graph and collaborator context.
func New(g *graph.Graph, cc *Context) *Compiler {
	return &Compiler{graph: g, cc: cc}
}

// Graph returns the compiled graph.
func (c *Compiler) Graph() *graph.Graph { return c.graph }

// ExecutionOrder returns the handles in finalized execution order.
func (c *Compiler) ExecutionOrder() []node.Handle { return c.order }

// Compile runs the five phases in strict order, each completing fully across
// all nodes before the next begins:
//
//	Validate -> AnalyzeDependencies -> AllocateResources ->
//	GeneratePipelines -> BuildExecutionOrder
//
// On validation failure compilation aborts before any resource allocation,
// leaving no partial state.
func (c *Compiler) Compile(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	ctx, span := c.cc.tracer().Start(ctx, "compiler.Compile")
	defer span.End()

	if err := c.validate(ctx); err != nil {
		logger.Error("Graph validation failed.", "error", err)
		return err
	}
	logger.Debug("Validate phase passed.")

	order, err := c.graph.TopoSort()
	if err != nil {
		return err
	}
	logger.Debug("AnalyzeDependencies phase complete.", "node_count", len(order))

	if err := c.allocateResources(ctx, order); err != nil {
		return err
	}
	logger.Debug("AllocateResources phase complete.")

	if err := c.generatePipelines(ctx, order); err != nil {
		return err
	}
	logger.Debug("GeneratePipelines phase complete.")

	c.buildExecutionOrder(ctx, order)
	logger.Debug("BuildExecutionOrder phase complete.")
	return nil
}

// validate checks that every non-nullable input slot is connected and that
// Dependency-role edges form a DAG. The cycle check runs once per compile
// cycle, before any resource allocation.
func (c *Compiler) validate(ctx context.Context) error {
	_, span := c.cc.tracer().Start(ctx, "compiler.validate")
	defer span.End()

	for _, h := range c.graph.Handles() {
		inst := c.graph.Node(h)
		connected := make(map[int]bool)
		for _, conn := range c.graph.ConnectionsInto(h) {
			connected[conn.ToInput] = true
		}
		for i, desc := range inst.Type().Inputs {
			if desc.Nullable || connected[i] {
				continue
			}
			return &UnconnectedSlotError{Node: inst.Name(), Slot: desc.Name}
		}
	}
	return c.graph.DetectCycles()
}

// allocateResources runs Setup and Compile for each node in topological
// order, binding producer outputs into consumer inputs along the declared
// connections as it goes. Producers always precede consumers, so every
// Dependency-role input is fully resolved before its consumer compiles.
// Reuse/aliasing of Transient resources is the device collaborator's
// concern; Persistent resources are simply never offered for reuse.
func (c *Compiler) allocateResources(ctx context.Context, order []node.Handle) error {
	ctx, span := c.cc.tracer().Start(ctx, "compiler.allocateResources")
	defer span.End()

	for _, h := range order {
		inst := c.graph.Node(h)
		if inst.State() != node.StateUninitialized {
			continue
		}
		if err := c.setupAndCompile(ctx, inst); err != nil {
			return err
		}
	}
	return nil
}

// setupAndCompile drives one node through Setup and Compile, then registers
// its outputs with the dependency tracker.
func (c *Compiler) setupAndCompile(ctx context.Context, inst *node.Instance) error {
	logger := ctxlog.FromContext(ctx)

	if err := inst.Impl().Setup(ctx, inst); err != nil {
		return fmt.Errorf("setup of node %q: %w", inst.Name(), err)
	}
	inst.MarkSetupDone()

	c.bindInputs(inst)

	if err := inst.Impl().Compile(ctx, inst); err != nil {
		return fmt.Errorf("compile of node %q: %w", inst.Name(), err)
	}
	inst.MarkCompiled()
	c.registerProducers(inst)
	logger.Debug("Node compiled.", "node", inst.Name(), "type", inst.Type().Name)
	return nil
}

// bindInputs copies producer output resources into the consumer's input
// slots along the declared connections, in declaration order.
func (c *Compiler) bindInputs(inst *node.Instance) {
	for _, conn := range c.graph.ConnectionsInto(inst.Handle()) {
		producer := c.graph.Node(conn.From)
		if producer == nil {
			continue
		}
		r := producer.Output(conn.FromOutput, 0)
		if r == nil {
			continue
		}
		inst.SetInput(conn.ToInput, conn.Index, r)
	}
}

// registerProducers records every bound output resource's origin with the
// dependency tracker. Last registration wins, supporting resource recycling
// across recompiles.
func (c *Compiler) registerProducers(inst *node.Instance) {
	for slotIdx := range inst.Type().Outputs {
		for i := 0; i < inst.OutputCount(slotIdx); i++ {
			c.cc.Tracker.RegisterResourceProducer(inst.Output(slotIdx, i), inst.Handle(), slotIdx)
		}
	}
}

// generatePipelines runs PostCompile for each node in topological order.
// Nodes sharing compatible configuration resolve their backend pipeline
// state through the pipeline cache, so shared state is built once.
func (c *Compiler) generatePipelines(ctx context.Context, order []node.Handle) error {
	ctx, span := c.cc.tracer().Start(ctx, "compiler.generatePipelines")
	defer span.End()

	for _, h := range order {
		inst := c.graph.Node(h)
		if err := inst.Impl().PostCompile(ctx, inst); err != nil {
			return fmt.Errorf("post-compile of node %q: %w", inst.Name(), err)
		}
	}
	return nil
}

// buildExecutionOrder finalizes the ordered list consumed by the per-frame
// execute loop.
func (c *Compiler) buildExecutionOrder(ctx context.Context, order []node.Handle) {
	_, span := c.cc.tracer().Start(ctx, "compiler.buildExecutionOrder")
	defer span.End()

	c.order = order
	for i, h := range order {
		c.graph.Node(h).SetExecutionOrder(i)
	}
}

// cleanupNode tears one compiled node back down: its lifecycle Cleanup runs,
// its subscriptions are removed (Setup re-subscribes on the next cycle), and
// every output resource backed by a device handle is handed to the deferred
// destruction queue, never freed immediately, since asynchronous hardware
// work may still reference it.
func (c *Compiler) cleanupNode(ctx context.Context, inst *node.Instance) error {
	logger := ctxlog.FromContext(ctx)

	if err := inst.Impl().Cleanup(ctx, inst); err != nil {
		return fmt.Errorf("cleanup of node %q: %w", inst.Name(), err)
	}
	c.cc.Events.Unsubscribe(inst.Handle())

	for slotIdx := range inst.Type().Outputs {
		for i := 0; i < inst.OutputCount(slotIdx); i++ {
			r := inst.Output(slotIdx, i)
			if r == nil {
				continue
			}
			r.MarkStale()
			if h, ok := r.Payload().(device.Handle); ok {
				dev := c.cc.Device
				handle := h
				name := inst.Name()
				c.cc.Destroy.Defer(func() {
					if err := dev.ReleaseResource(ctx, handle); err != nil {
						logger.Warn("Deferred release failed.", "node", name, "error", err)
					}
				}, c.cc.DestroyFrameDelay)
			}
		}
	}

	inst.ResetCompileState()
	logger.Debug("Node cleaned up.", "node", inst.Name())
	return nil
}
