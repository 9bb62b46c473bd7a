package compiler

import (
	"context"

	"github.com/voxgraph/voxgraph/internal/ctxlog"
	"github.com/voxgraph/voxgraph/internal/node"
)

// maxRecompileIterations caps the fixed-point loop. Legitimate cascades
// settle within a handful of passes; hitting the cap means a cascade is
// re-dirtying its own ancestors, which the design treats as a configuration
// defect rather than something to untangle automatically.
const maxRecompileIterations = 64

// Recompile runs the recompilation fixed-point loop at a safe point between
// frames: deliver pending invalidation events, recompile every Dirty node in
// topological order (Cleanup -> Setup -> Compile -> PostCompile), process any
// new events those recompiles generated, and repeat until no node is Dirty
// and no event is pending. Returns the number of nodes recompiled.
func (c *Compiler) Recompile(ctx context.Context) (int, error) {
	logger := ctxlog.FromContext(ctx)
	ctx, span := c.cc.tracer().Start(ctx, "compiler.Recompile")
	defer span.End()

	total := 0
	for iter := 0; ; iter++ {
		if iter >= maxRecompileIterations {
			return total, &NonTerminationError{
				Iterations: iter,
				DirtyNodes: c.dirtyNames(),
			}
		}

		delivered := c.cc.Events.Dispatch()
		recompiled, err := c.recompilePass(ctx)
		if err != nil {
			return total, err
		}
		total += recompiled

		if recompiled == 0 && delivered == 0 && !c.cc.Events.HasPending() {
			break
		}
	}

	if total > 0 {
		logger.Debug("Recompilation settled.", "recompiled_nodes", total)
	}
	return total, nil
}

// recompilePass sweeps the execution order once and recompiles every node
// found Dirty. Recompiling a producer re-creates its output resources, so
// its still-Compiled consumers are marked Dirty as part of the same sweep;
// the topological order guarantees they are visited after it and rebuild
// against the fresh bindings within this pass.
func (c *Compiler) recompilePass(ctx context.Context) (int, error) {
	logger := ctxlog.FromContext(ctx)

	recompiled := 0
	for _, h := range c.order {
		inst := c.graph.Node(h)
		if inst == nil || !inst.Dirty() {
			continue
		}
		logger.Debug("Recompiling dirty node.", "node", inst.Name())

		if err := c.cleanupNode(ctx, inst); err != nil {
			return recompiled, err
		}
		if err := inst.Impl().Setup(ctx, inst); err != nil {
			return recompiled, err
		}
		inst.MarkSetupDone()
		c.bindInputs(inst)
		if err := inst.Impl().Compile(ctx, inst); err != nil {
			return recompiled, err
		}
		inst.MarkCompiled()
		c.registerProducers(inst)
		if err := inst.Impl().PostCompile(ctx, inst); err != nil {
			return recompiled, err
		}
		recompiled++

		c.dirtyConsumersOf(h)
	}
	return recompiled, nil
}

// dirtyConsumersOf marks every still-Compiled consumer of a recompiled
// producer Dirty: their input bindings point at resources that no longer
// exist.
func (c *Compiler) dirtyConsumersOf(h node.Handle) {
	for _, conn := range c.graph.Connections() {
		if conn.From != h {
			continue
		}
		consumer := c.graph.Node(conn.To)
		if consumer != nil && consumer.State() == node.StateCompiled {
			consumer.MarkDirty()
		}
	}
}

// dirtyNames lists the names of currently Dirty nodes, for diagnostics.
func (c *Compiler) dirtyNames() []string {
	var names []string
	for _, h := range c.graph.Handles() {
		if inst := c.graph.Node(h); inst != nil && inst.Dirty() {
			names = append(names, inst.Name())
		}
	}
	return names
}
