// Package compiler orchestrates phase-ordered graph compilation and the
// recompilation fixed-point loop, and drives per-frame execution against the
// budget-aware task queue.
package compiler

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/voxgraph/voxgraph/internal/deptrack"
	"github.com/voxgraph/voxgraph/internal/destroyq"
	"github.com/voxgraph/voxgraph/internal/device"
	"github.com/voxgraph/voxgraph/internal/events"
	"github.com/voxgraph/voxgraph/internal/node"
	"github.com/voxgraph/voxgraph/internal/pipecache"
	"github.com/voxgraph/voxgraph/internal/taskqueue"
)

// GPUWork is one schedulable item of per-frame device work, produced by node
// Execute methods and drained by the frame loop in priority order.
type GPUWork struct {
	// Node is the producing instance.
	Node node.Handle
	// Name describes the work for logs.
	Name string
	// Submit records the actual device commands. Simulated backends just log.
	Submit func(ctx context.Context) error
}

// Context is the explicit collaborator bundle threaded through compilation
// and execution. It replaces any process-wide registries or caches: its
// lifecycle matches the compiler's, which keeps compilers fully isolated in
// tests.
type Context struct {
	// Device is the command-submission collaborator (§ external interfaces);
	// the compiler allocates through it and releases via destructor closures.
	Device device.Device
	// Pipelines caches shared backend pipeline state across compatible nodes.
	Pipelines *pipecache.Cache
	// Events is the invalidation cascade source, dispatched at safe points.
	Events *events.Bus
	// Tracker indexes resource producers for deduplicated dependency queries.
	Tracker *deptrack.Tracker
	// Destroy receives resources whose owners were cleaned up; teardown is
	// frame-delayed, never immediate.
	Destroy *destroyq.Queue
	// Queue admits per-frame GPU work under the frame budget.
	Queue *taskqueue.Queue[GPUWork]
	// DestroyFrameDelay is the frame count applied when compiled resources
	// are handed to the destruction queue during recompilation.
	DestroyFrameDelay uint32
	// Tracer records compile-phase and frame spans; defaults to a no-op.
	Tracer trace.Tracer
}

// tracer returns the configured tracer or a no-op one.
func (cc *Context) tracer() trace.Tracer {
	if cc.Tracer != nil {
		return cc.Tracer
	}
	return noop.NewTracerProvider().Tracer("voxgraph")
}
