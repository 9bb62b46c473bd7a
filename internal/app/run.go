package app

import (
	"context"
	"fmt"
	"time"

	"github.com/voxgraph/voxgraph/internal/ctxlog"
	"github.com/voxgraph/voxgraph/internal/inspect"
	"github.com/voxgraph/voxgraph/internal/watch"
)

// watchDebounce batches the event storms editors produce when saving.
const watchDebounce = 500 * time.Millisecond

// Run compiles the graph and drives the frame loop: recompilation settles at
// the safe point, the frame executes, then the deferred destruction queue
// advances. A frame count of 0 runs until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.cfg.StatsPort > 0 {
		a.startStatsServer(a.cfg.StatsPort)
	}

	if a.cfg.Watch {
		w, err := watch.New(a.cc.Events, watchDebounce)
		if err != nil {
			return fmt.Errorf("failed to start file watcher: %w", err)
		}
		if err := w.Start(ctx, a.cfg.GraphPath); err != nil {
			return fmt.Errorf("failed to watch %s: %w", a.cfg.GraphPath, err)
		}
		defer func() { _ = w.Stop() }()
		a.logger.Info("Watching definition files for changes.", "path", a.cfg.GraphPath)
	}

	if err := a.compiler.Compile(ctx); err != nil {
		return fmt.Errorf("compilation failed: %w", err)
	}
	a.logger.Info("Graph compiled.",
		"nodes", a.graph.Len(), "order_len", len(a.compiler.ExecutionOrder()))

	if a.cfg.Inspect {
		fmt.Fprint(a.outW, inspect.RenderDependencyTree(a.graph))
	}

	frames := a.model.Settings.Frames
	if a.cfg.Frames >= 0 {
		frames = a.cfg.Frames
	}

	for frame := 0; frames == 0 || frame < frames; frame++ {
		select {
		case <-ctx.Done():
			a.logger.Info("Frame loop canceled.", "frames_run", a.framesRun.Load())
			return ctx.Err()
		default:
		}
		if err := a.runFrame(ctx, frame); err != nil {
			return err
		}
	}

	a.logger.Info("Frame loop finished.", "frames_run", a.framesRun.Load())
	return nil
}

// runFrame advances the system by exactly one frame. Order matters: events
// deliver and recompilation settles before any Execute runs, and deferred
// destruction advances only after the frame's submissions are done.
func (a *App) runFrame(ctx context.Context, frame int) error {
	recompiled, err := a.compiler.Recompile(ctx)
	if err != nil {
		return fmt.Errorf("frame %d: recompilation failed: %w", frame, err)
	}
	if recompiled > 0 {
		a.logger.Info("Recompiled at safe point.", "frame", frame, "nodes", recompiled)
	}

	if err := a.compiler.ExecuteFrame(ctx); err != nil {
		return fmt.Errorf("frame %d: %w", frame, err)
	}

	destroyed := a.cc.Destroy.ProcessFrame()
	if destroyed > 0 {
		a.logger.Debug("Deferred destructors ran.", "frame", frame, "count", destroyed)
	}

	a.cc.Queue.Clear()
	a.framesRun.Add(1)
	return nil
}
