// Package config defines the format-agnostic representation of a graph
// definition, decoupled from any particular file syntax.
package config

import "context"

// Model is the unified representation of one graph definition: global
// settings plus the declared nodes and connections.
type Model struct {
	Settings    *Settings
	Nodes       []*Node
	Connections []*Connection
}

// Settings carries the frame-loop and budget configuration.
type Settings struct {
	// GPUTimeBudgetNs is the per-frame admission budget.
	GPUTimeBudgetNs uint64
	// OverflowMode is "strict" or "lenient".
	OverflowMode string
	// DestroyFrameDelay is applied to resources handed to the deferred
	// destruction queue during recompilation.
	DestroyFrameDelay uint32
	// Frames is how many frames the CLI drives; 0 means run until canceled.
	Frames int
}

// Node is the format-agnostic representation of a `node` block.
type Node struct {
	// Kind names the registered node type, e.g. "buffer".
	Kind string
	// Name is the unique instance name.
	Name string
	// Params holds the remaining decoded attributes.
	Params map[string]any
}

// Connection is the format-agnostic representation of a `connect` block.
// Endpoint strings use the "node.slot" form.
type Connection struct {
	From  string
	To    string
	Index int
}

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads graph definitions from the given paths and translates them
	// into the format-agnostic model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}

// DefaultSettings returns the settings applied when a definition omits the
// settings block: a 60 Hz frame budget, strict admission, and a two-frame
// destruction delay.
func DefaultSettings() *Settings {
	return &Settings{
		GPUTimeBudgetNs:   16_666_666,
		OverflowMode:      "strict",
		DestroyFrameDelay: 2,
		Frames:            1,
	}
}
