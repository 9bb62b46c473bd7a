package graph

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxgraph/voxgraph/internal/ctxlog"
	"github.com/voxgraph/voxgraph/internal/node"
	"github.com/voxgraph/voxgraph/internal/slot"
)

type nopLifecycle struct{}

func (nopLifecycle) Setup(context.Context, *node.Instance) error       { return nil }
func (nopLifecycle) Compile(context.Context, *node.Instance) error     { return nil }
func (nopLifecycle) PostCompile(context.Context, *node.Instance) error { return nil }
func (nopLifecycle) Execute(context.Context, *node.Instance) error     { return nil }
func (nopLifecycle) Cleanup(context.Context, *node.Instance) error     { return nil }

// passType both consumes and produces buffers, so chains and cycles can be
// wired from it alone.
var passType = &node.Type{
	Name: "pass",
	Inputs: []slot.Descriptor{
		{Name: "in", Type: "buffer", Nullable: true, Roles: slot.RoleDependency | slot.RoleExecute},
		{Name: "aux", Type: "buffer", Nullable: true, Roles: slot.RoleExecute},
	},
	Outputs: []slot.Descriptor{
		{Name: "out", Type: "buffer", Roles: slot.RoleOutput},
	},
	AllowInputArrays: true,
}

var scalarType = &node.Type{
	Name: "scalar",
	Inputs: []slot.Descriptor{
		{Name: "in", Type: "buffer", Nullable: true, Roles: slot.RoleDependency},
		{Name: "tex", Type: "texture", Nullable: true, Roles: slot.RoleDependency},
	},
	Outputs: []slot.Descriptor{
		{Name: "out", Type: "buffer", Roles: slot.RoleOutput},
	},
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ctxlog.WithLogger(context.Background(), logger)
}

func addNode(t *testing.T, g *Graph, name string, typ *node.Type) node.Handle {
	t.Helper()
	h, err := g.AddNode(node.NewInstance(name, typ, nopLifecycle{}, nil))
	require.NoError(t, err)
	return h
}

// chain wires out(from) -> in(to) at the given array index.
func chain(t *testing.T, g *Graph, from, to node.Handle, index int) {
	t.Helper()
	err := g.Connect(testCtx(t), Connection{From: from, FromOutput: 0, To: to, ToInput: 0, Index: index})
	require.NoError(t, err)
}

func TestGraph_AddNode(t *testing.T) {
	g := New()
	hA := addNode(t, g, "a", passType)
	hB := addNode(t, g, "b", passType)

	assert.EqualValues(t, 0, hA)
	assert.EqualValues(t, 1, hB)
	assert.Equal(t, 2, g.Len())

	inst, ok := g.NodeByName("a")
	require.True(t, ok)
	assert.Equal(t, hA, inst.Handle())

	_, err := g.AddNode(node.NewInstance("a", passType, nopLifecycle{}, nil))
	require.Error(t, err, "duplicate names are rejected")
}

func TestGraph_Connect_Validation(t *testing.T) {
	g := New()
	hA := addNode(t, g, "a", passType)
	hB := addNode(t, g, "b", scalarType)
	ctx := testCtx(t)

	t.Run("valid", func(t *testing.T) {
		err := g.Connect(ctx, Connection{From: hA, FromOutput: 0, To: hB, ToInput: 0})
		require.NoError(t, err)
	})

	t.Run("missing node", func(t *testing.T) {
		err := g.Connect(ctx, Connection{From: 99, FromOutput: 0, To: hB, ToInput: 0})
		require.Error(t, err)
	})

	t.Run("self reference", func(t *testing.T) {
		err := g.Connect(ctx, Connection{From: hA, FromOutput: 0, To: hA, ToInput: 0})
		require.Error(t, err)
	})

	t.Run("bad slot indices", func(t *testing.T) {
		err := g.Connect(ctx, Connection{From: hA, FromOutput: 5, To: hB, ToInput: 0})
		require.Error(t, err)
		err = g.Connect(ctx, Connection{From: hA, FromOutput: 0, To: hB, ToInput: 5})
		require.Error(t, err)
	})

	t.Run("type tag mismatch", func(t *testing.T) {
		err := g.Connect(ctx, Connection{From: hA, FromOutput: 0, To: hB, ToInput: 1})
		require.Error(t, err, "buffer output cannot feed a texture input")
	})

	t.Run("array index on scalar consumer", func(t *testing.T) {
		err := g.Connect(ctx, Connection{From: hA, FromOutput: 0, To: hB, ToInput: 0, Index: 1})
		require.Error(t, err)
	})

	t.Run("negative index", func(t *testing.T) {
		err := g.Connect(ctx, Connection{From: hA, FromOutput: 0, To: hB, ToInput: 0, Index: -1})
		require.Error(t, err)
	})
}

func TestGraph_ConnectionsInto(t *testing.T) {
	g := New()
	hA := addNode(t, g, "a", passType)
	hB := addNode(t, g, "b", passType)
	hC := addNode(t, g, "c", passType)
	chain(t, g, hA, hC, 0)
	chain(t, g, hB, hC, 1)

	into := g.ConnectionsInto(hC)
	require.Len(t, into, 2)
	assert.Equal(t, hA, into[0].From)
	assert.Equal(t, hB, into[1].From)
	assert.Empty(t, g.ConnectionsInto(hA))
}

func TestGraph_RemoveNode(t *testing.T) {
	g := New()
	hA := addNode(t, g, "a", passType)
	hB := addNode(t, g, "b", passType)
	chain(t, g, hA, hB, 0)

	t.Run("uninitialized not removable", func(t *testing.T) {
		err := g.RemoveNode(hA)
		require.Error(t, err)
	})

	t.Run("removal tombstones and drops connections", func(t *testing.T) {
		g.Node(hA).MarkSetupDone()
		require.NoError(t, g.RemoveNode(hA))

		assert.Nil(t, g.Node(hA))
		assert.Equal(t, 1, g.Len())
		assert.Empty(t, g.Connections())
		_, ok := g.NodeByName("a")
		assert.False(t, ok)

		// Remaining handles stay stable.
		assert.Equal(t, hB, g.Node(hB).Handle())
	})

	t.Run("removing twice fails", func(t *testing.T) {
		err := g.RemoveNode(hA)
		require.Error(t, err)
	})
}
