package nodes

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxgraph/voxgraph/internal/compiler"
	"github.com/voxgraph/voxgraph/internal/ctxlog"
	"github.com/voxgraph/voxgraph/internal/deptrack"
	"github.com/voxgraph/voxgraph/internal/destroyq"
	"github.com/voxgraph/voxgraph/internal/device"
	"github.com/voxgraph/voxgraph/internal/events"
	"github.com/voxgraph/voxgraph/internal/graph"
	"github.com/voxgraph/voxgraph/internal/node"
	"github.com/voxgraph/voxgraph/internal/pipecache"
	"github.com/voxgraph/voxgraph/internal/registry"
	"github.com/voxgraph/voxgraph/internal/slot"
	"github.com/voxgraph/voxgraph/internal/taskqueue"
)

type harness struct {
	ctx      context.Context
	cc       *compiler.Context
	dev      *device.SimDevice
	reg      *registry.Registry
	graph    *graph.Graph
	compiler *compiler.Compiler
}

func newHarness(t *testing.T, budget taskqueue.Budget) *harness {
	t.Helper()
	dev := device.NewSimDevice()
	h := &harness{
		ctx: ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil))),
		dev: dev,
		cc: &compiler.Context{
			Device:            dev,
			Pipelines:         pipecache.New(pipecache.DefaultExpiration, pipecache.DefaultCleanupInterval),
			Events:            events.New(),
			Tracker:           deptrack.New(),
			Destroy:           destroyq.New(),
			Queue:             taskqueue.New[compiler.GPUWork](budget),
			DestroyFrameDelay: 2,
		},
		reg:   registry.New(),
		graph: graph.New(),
	}
	CoreModule{}.Register(h.reg)
	h.compiler = compiler.New(h.graph, h.cc)
	return h
}

func (h *harness) add(t *testing.T, kind, name string, params map[string]any) node.Handle {
	t.Helper()
	def, ok := h.reg.Definition(kind)
	require.True(t, ok, "kind %s not registered", kind)
	impl, err := def.New(h.cc, params)
	require.NoError(t, err)
	handle, err := h.graph.AddNode(node.NewInstance(name, def.Type, impl, params))
	require.NoError(t, err)
	return handle
}

func (h *harness) connect(t *testing.T, from string, fromSlot string, to string, toSlot string, index int) {
	t.Helper()
	producer, ok := h.graph.NodeByName(from)
	require.True(t, ok)
	consumer, ok := h.graph.NodeByName(to)
	require.True(t, ok)
	require.NoError(t, h.graph.Connect(h.ctx, graph.Connection{
		From:       producer.Handle(),
		FromOutput: producer.Type().OutputIndex(fromSlot),
		To:         consumer.Handle(),
		ToInput:    consumer.Type().InputIndex(toSlot),
		Index:      index,
	}))
}

func bigBudget() taskqueue.Budget {
	return taskqueue.Budget{GPUTimeBudgetNs: 1 << 40, Mode: taskqueue.Strict}
}

func TestCoreModule_RegistersValidKinds(t *testing.T) {
	h := newHarness(t, bigBudget())
	assert.Equal(t, []string{"buffer", "compute_pipeline", "dispatch", "present", "texture"}, h.reg.Kinds())
	require.NoError(t, h.reg.Validate(h.ctx))
}

func TestBuffer_CompileAllocates(t *testing.T) {
	h := newHarness(t, bigBudget())
	hB := h.add(t, "buffer", "vertices", map[string]any{"size_bytes": int64(4096)})

	require.NoError(t, h.compiler.Compile(h.ctx))

	inst := h.graph.Node(hB)
	r := inst.Output(0, 0)
	require.NotNil(t, r)
	assert.True(t, r.Ready())
	handle, ok := r.Payload().(device.Handle)
	require.True(t, ok)
	assert.Equal(t, device.KindBuffer, handle.Kind)
	assert.Equal(t, 1, h.dev.Allocated())
}

func TestBuffer_PersistentLifetime(t *testing.T) {
	h := newHarness(t, bigBudget())
	hB := h.add(t, "buffer", "state", map[string]any{"persistent": true})
	require.NoError(t, h.compiler.Compile(h.ctx))

	r := h.graph.Node(hB).Output(0, 0)
	require.NotNil(t, r)
	assert.Equal(t, slot.LifetimePersistent, r.Descriptor().Lifetime)
}

func TestTexture_CompileAllocates(t *testing.T) {
	h := newHarness(t, bigBudget())
	hT := h.add(t, "texture", "albedo", map[string]any{
		"width": int64(256), "height": int64(128), "format": "rgba16f",
	})
	require.NoError(t, h.compiler.Compile(h.ctx))

	r := h.graph.Node(hT).Output(0, 0)
	require.NotNil(t, r)
	handle := r.Payload().(device.Handle)
	assert.Equal(t, device.KindTexture, handle.Kind)
}

func TestComputePipeline_RequiresShader(t *testing.T) {
	h := newHarness(t, bigBudget())
	def, _ := h.reg.Definition("compute_pipeline")
	_, err := def.New(h.cc, map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shader")
}

func TestComputePipeline_PendingUntilPostCompile(t *testing.T) {
	h := newHarness(t, bigBudget())
	params := map[string]any{"shader": "blur.comp"}
	def, _ := h.reg.Definition("compute_pipeline")
	impl, err := def.New(h.cc, params)
	require.NoError(t, err)
	inst := node.NewInstance("p", def.Type, impl, params)
	_, err = h.graph.AddNode(inst)
	require.NoError(t, err)

	require.NoError(t, impl.Setup(h.ctx, inst))
	require.NoError(t, impl.Compile(h.ctx, inst))
	r := inst.Output(0, 0)
	require.NotNil(t, r)
	assert.True(t, r.Has(slot.StatePending))
	assert.False(t, r.Ready())

	require.NoError(t, impl.PostCompile(h.ctx, inst))
	assert.True(t, r.Ready())
	assert.False(t, r.Has(slot.StatePending), "resolution clears the Pending bit")

	state, ok := r.Payload().(PipelineState)
	require.True(t, ok)
	assert.Equal(t, "blur.comp", state.Shader)
}

func TestComputePipeline_SharedAcrossNodes(t *testing.T) {
	h := newHarness(t, bigBudget())
	hP1 := h.add(t, "compute_pipeline", "p1", map[string]any{"shader": "blur.comp"})
	hP2 := h.add(t, "compute_pipeline", "p2", map[string]any{"shader": "blur.comp"})
	hP3 := h.add(t, "compute_pipeline", "p3", map[string]any{"shader": "sharpen.comp"})

	require.NoError(t, h.compiler.Compile(h.ctx))

	s1 := h.graph.Node(hP1).Output(0, 0).Payload().(PipelineState)
	s2 := h.graph.Node(hP2).Output(0, 0).Payload().(PipelineState)
	s3 := h.graph.Node(hP3).Output(0, 0).Payload().(PipelineState)

	assert.Equal(t, s1.Handle, s2.Handle, "same shader shares one backend pipeline")
	assert.NotEqual(t, s1.Handle, s3.Handle)

	hits, misses := h.cc.Pipelines.Stats()
	assert.EqualValues(t, 1, hits)
	assert.EqualValues(t, 2, misses)
	assert.Equal(t, 2, h.dev.Allocated(), "one allocation per distinct shader")
}

func TestDispatch_FullGraphFrame(t *testing.T) {
	h := newHarness(t, bigBudget())
	h.add(t, "buffer", "in_a", nil)
	h.add(t, "buffer", "in_b", nil)
	h.add(t, "compute_pipeline", "pipe", map[string]any{"shader": "shade.comp"})
	hD := h.add(t, "dispatch", "shade", map[string]any{
		"estimated_cost_ns": int64(5000),
		"priority":          int64(200),
	})
	h.add(t, "present", "out", nil)

	h.connect(t, "pipe", "pipeline", "shade", "pipeline", 0)
	h.connect(t, "in_a", "handle", "shade", "inputs", 0)
	h.connect(t, "in_b", "handle", "shade", "inputs", 1)
	h.connect(t, "shade", "result", "out", "source", 0)

	require.NoError(t, h.compiler.Compile(h.ctx))

	// The dispatch consulted the pipeline and both buffers at compile time,
	// so its deduplicated dependency set has all three producers.
	inst := h.graph.Node(hD)
	deps := h.cc.Tracker.GetDependenciesForNode(inst)
	assert.Len(t, deps, 3)

	// One frame: dispatch and present enqueue, drain submits by priority.
	require.NoError(t, h.compiler.ExecuteFrame(h.ctx))
	assert.EqualValues(t, 5000, inst.LastCostNs())
	assert.EqualValues(t, 5000, h.cc.Queue.RunningTotal(), "present is unchecked and costs nothing")
}

func TestDispatch_BudgetRejectionIsNotAnError(t *testing.T) {
	h := newHarness(t, taskqueue.Budget{GPUTimeBudgetNs: 1000, Mode: taskqueue.Strict})
	h.add(t, "buffer", "b", nil)
	h.add(t, "compute_pipeline", "pipe", map[string]any{"shader": "s.comp"})
	h.add(t, "dispatch", "heavy", map[string]any{"estimated_cost_ns": int64(50_000)})
	h.connect(t, "pipe", "pipeline", "heavy", "pipeline", 0)
	h.connect(t, "b", "handle", "heavy", "inputs", 0)

	require.NoError(t, h.compiler.Compile(h.ctx))
	require.NoError(t, h.compiler.ExecuteFrame(h.ctx), "a rejected dispatch defers, it does not fail the frame")
	assert.EqualValues(t, 0, h.cc.Queue.RunningTotal())
}

func TestPresent_EnqueuesUnchecked(t *testing.T) {
	// Zero budget: regular dispatches are rejected, presentation still runs.
	h := newHarness(t, taskqueue.Budget{GPUTimeBudgetNs: 0, Mode: taskqueue.Strict})
	h.add(t, "buffer", "frame", nil)
	h.add(t, "present", "out", nil)
	h.connect(t, "frame", "handle", "out", "source", 0)

	require.NoError(t, h.compiler.Compile(h.ctx))

	inst, _ := h.graph.NodeByName("out")
	require.NoError(t, inst.Impl().Execute(h.ctx, inst))
	assert.Equal(t, 1, h.cc.Queue.Len())
	assert.EqualValues(t, 0, h.cc.Queue.RunningTotal())
}

func TestInvalidateOn_MarksDirtyAtSafePoint(t *testing.T) {
	h := newHarness(t, bigBudget())
	hB := h.add(t, "buffer", "b", map[string]any{"invalidate_on": "settings_changed"})
	require.NoError(t, h.compiler.Compile(h.ctx))

	h.cc.Events.Emit(events.Event{Kind: "settings_changed"})
	assert.Equal(t, node.StateCompiled, h.graph.Node(hB).State(), "emission alone changes nothing")

	n, err := h.compiler.Recompile(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, node.StateCompiled, h.graph.Node(hB).State())
	assert.Equal(t, 2, h.dev.Allocated(), "recompile allocated a fresh buffer")
}

func TestInvalidateOn_ListOfKinds(t *testing.T) {
	h := newHarness(t, bigBudget())
	hB := h.add(t, "buffer", "b", map[string]any{
		"invalidate_on": []any{"resized", "reloaded"},
	})
	require.NoError(t, h.compiler.Compile(h.ctx))

	h.cc.Events.Emit(events.Event{Kind: "reloaded"})
	n, err := h.compiler.Recompile(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_ = hB
}

func TestDispatch_RecompileCascadeFromBuffer(t *testing.T) {
	h := newHarness(t, bigBudget())
	h.add(t, "buffer", "b", map[string]any{"invalidate_on": "resized"})
	h.add(t, "compute_pipeline", "pipe", map[string]any{"shader": "s.comp"})
	hD := h.add(t, "dispatch", "d", nil)
	h.connect(t, "pipe", "pipeline", "d", "pipeline", 0)
	h.connect(t, "b", "handle", "d", "inputs", 0)
	require.NoError(t, h.compiler.Compile(h.ctx))

	h.cc.Events.Emit(events.Event{Kind: "resized"})
	n, err := h.compiler.Recompile(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "buffer and its consumer recompile; the pipeline is untouched")

	// The dispatch rebound to the fresh buffer resource.
	inst := h.graph.Node(hD)
	b, _ := h.graph.NodeByName("b")
	assert.Same(t, b.Output(0, 0), inst.Input(1, 0))
}
