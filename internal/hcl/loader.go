// Package hcl is the HCL-specific implementation of the config.Loader
// interface, decoding `settings`, `node` and `connect` blocks from graph
// definition files.
package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/voxgraph/voxgraph/internal/config"
	"github.com/voxgraph/voxgraph/internal/ctxlog"
)

// Loader parses graph definition files written in HCL.
type Loader struct{}

// NewLoader creates a new HCL graph loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileRoot decodes all possible top-level blocks from any file.
type fileRoot struct {
	Settings *settingsBlock  `hcl:"settings,block"`
	Nodes    []*nodeBlock    `hcl:"node,block"`
	Connects []*connectBlock `hcl:"connect,block"`
	Remain   hcl.Body        `hcl:",remain"`
}

type settingsBlock struct {
	GPUTimeBudgetNs   *uint64 `hcl:"gpu_time_budget_ns,optional"`
	OverflowMode      *string `hcl:"overflow_mode,optional"`
	DestroyFrameDelay *uint32 `hcl:"destroy_frame_delay,optional"`
	Frames            *int    `hcl:"frames,optional"`
}

type nodeBlock struct {
	Kind   string   `hcl:"kind,label"`
	Name   string   `hcl:"name,label"`
	Remain hcl.Body `hcl:",remain"`
}

type connectBlock struct {
	From  string `hcl:"from"`
	To    string `hcl:"to"`
	Index *int   `hcl:"index,optional"`
}

// Load orchestrates the HCL loading process: discover files, parse, decode
// and merge every block into the format-agnostic model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	model := &config.Model{Settings: config.DefaultSettings()}

	files, err := findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		if root.Settings != nil {
			applySettings(model.Settings, root.Settings)
		}
		for _, nb := range root.Nodes {
			n, err := translateNode(nb)
			if err != nil {
				return nil, fmt.Errorf("file %s: %w", file, err)
			}
			model.Nodes = append(model.Nodes, n)
		}
		for _, cb := range root.Connects {
			conn := &config.Connection{From: cb.From, To: cb.To}
			if cb.Index != nil {
				conn.Index = *cb.Index
			}
			model.Connections = append(model.Connections, conn)
		}
	}

	logger.Debug("HCL loading complete.",
		"nodes", len(model.Nodes), "connections", len(model.Connections))
	return model, nil
}

func applySettings(dst *config.Settings, src *settingsBlock) {
	if src.GPUTimeBudgetNs != nil {
		dst.GPUTimeBudgetNs = *src.GPUTimeBudgetNs
	}
	if src.OverflowMode != nil {
		dst.OverflowMode = *src.OverflowMode
	}
	if src.DestroyFrameDelay != nil {
		dst.DestroyFrameDelay = *src.DestroyFrameDelay
	}
	if src.Frames != nil {
		dst.Frames = *src.Frames
	}
}

// translateNode converts one `node` block, decoding its remaining attributes
// into plain Go values.
func translateNode(nb *nodeBlock) (*config.Node, error) {
	attrs, diags := nb.Remain.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("node %q %q: %w", nb.Kind, nb.Name, diags)
	}
	params := make(map[string]any, len(attrs))
	for name, attr := range attrs {
		val, valDiags := attr.Expr.Value(nil)
		if valDiags.HasErrors() {
			return nil, fmt.Errorf("node %q %q, attribute %q: %w", nb.Kind, nb.Name, name, valDiags)
		}
		goVal, err := ctyToGo(val)
		if err != nil {
			return nil, fmt.Errorf("node %q %q, attribute %q: %w", nb.Kind, nb.Name, name, err)
		}
		params[name] = goVal
	}
	return &config.Node{Kind: nb.Kind, Name: nb.Name, Params: params}, nil
}

// findAllHCLFiles expands each path into the .hcl files beneath it. A file
// path must itself be an .hcl file; a directory is walked recursively.
func findAllHCLFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("cannot access path %s: %w", p, err)
		}
		if !info.IsDir() {
			if !strings.HasSuffix(p, ".hcl") {
				return nil, fmt.Errorf("file %s is not an .hcl file", p)
			}
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, ".hcl") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
