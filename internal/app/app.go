// Package app wires the configuration loader, node registry, graph builder,
// compiler and frame loop into one application instance. Every App owns its
// own logger, registry and collaborator set; nothing is process-global, so
// instances are fully isolated in tests.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/voxgraph/voxgraph/internal/compiler"
	"github.com/voxgraph/voxgraph/internal/config"
	"github.com/voxgraph/voxgraph/internal/ctxlog"
	"github.com/voxgraph/voxgraph/internal/deptrack"
	"github.com/voxgraph/voxgraph/internal/destroyq"
	"github.com/voxgraph/voxgraph/internal/device"
	"github.com/voxgraph/voxgraph/internal/events"
	"github.com/voxgraph/voxgraph/internal/graph"
	"github.com/voxgraph/voxgraph/internal/nodes"
	"github.com/voxgraph/voxgraph/internal/pipecache"
	"github.com/voxgraph/voxgraph/internal/registry"
	"github.com/voxgraph/voxgraph/internal/taskqueue"
	"github.com/voxgraph/voxgraph/internal/tracing"
)

// AppConfig holds all the necessary configuration for an App instance to run.
type AppConfig struct {
	GraphPath string
	// Frames overrides the definition's frame count when >= 0; -1 keeps the
	// definition's value.
	Frames    int
	StatsPort int
	LogFormat string
	LogLevel  string
	Inspect   bool
	Watch     bool
	Trace     bool
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	cfg      *AppConfig
	model    *config.Model
	registry *registry.Registry
	graph    *graph.Graph
	compiler *compiler.Compiler
	cc       *compiler.Context
	dev      *device.SimDevice
	tracer   *tracing.Provider

	// framesRun is read concurrently by the stats endpoint.
	framesRun atomic.Int64
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger, registry and
// collaborator set. A failure to load or translate configuration is a fatal
// startup error.
func NewApp(outW io.Writer, appConfig *AppConfig, loader config.Loader, modules ...registry.Module) (*App, error) {
	logger := ctxlog.New(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, appConfig.GraphPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Debug("Configuration loaded and translated into unified model.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = nodes.Core
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All node modules registered.", "count", len(modules))

	if err := reg.Validate(ctx); err != nil {
		// A mismatch between code and registration is a programmer error.
		panic(err)
	}

	tracer, err := tracing.NewProvider(appConfig.Trace)
	if err != nil {
		return nil, fmt.Errorf("failed to configure tracing: %w", err)
	}

	mode := taskqueue.Strict
	if model.Settings.OverflowMode == "lenient" {
		mode = taskqueue.Lenient
	}
	queue := taskqueue.New[compiler.GPUWork](taskqueue.Budget{
		GPUTimeBudgetNs: model.Settings.GPUTimeBudgetNs,
		Mode:            mode,
	})
	queue.SetWarnFunc(func(newTotalNs, budgetNs, itemCostNs uint64) {
		logger.Warn("Frame budget exceeded.",
			"total_ns", newTotalNs, "budget_ns", budgetNs, "item_cost_ns", itemCostNs)
	})

	dev := device.NewSimDevice()
	cc := &compiler.Context{
		Device:            dev,
		Pipelines:         pipecache.New(pipecache.DefaultExpiration, pipecache.DefaultCleanupInterval),
		Events:            events.New(),
		Tracker:           deptrack.New(),
		Destroy:           destroyq.New(),
		Queue:             queue,
		DestroyFrameDelay: model.Settings.DestroyFrameDelay,
		Tracer:            tracer.Tracer(),
	}

	a := &App{
		outW:     outW,
		logger:   logger,
		cfg:      appConfig,
		model:    model,
		registry: reg,
		cc:       cc,
		dev:      dev,
		tracer:   tracer,
	}

	g, err := a.buildGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}
	a.graph = g
	a.compiler = compiler.New(g, cc)
	return a, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Graph returns the application's graph. This is primarily for testing.
func (a *App) Graph() *graph.Graph {
	return a.graph
}

// Compiler returns the application's compiler. This is primarily for testing.
func (a *App) Compiler() *compiler.Compiler {
	return a.compiler
}

// Close flushes tracing and marks the device closed. Pending deferred
// destructors are drained first; the device is assumed idle at shutdown.
func (a *App) Close(ctx context.Context) error {
	a.cc.Destroy.Drain()
	a.dev.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return a.tracer.Shutdown(shutdownCtx)
}
