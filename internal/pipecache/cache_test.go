package pipecache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxgraph/voxgraph/internal/ctxlog"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCache_GetOrCreate(t *testing.T) {
	ctx := testCtx(t)
	c := New(DefaultExpiration, DefaultCleanupInterval)

	builds := 0
	build := func() (any, error) {
		builds++
		return "pipeline-state", nil
	}

	v, err := c.GetOrCreate(ctx, "compute/blur", build)
	require.NoError(t, err)
	assert.Equal(t, "pipeline-state", v)

	v, err = c.GetOrCreate(ctx, "compute/blur", build)
	require.NoError(t, err)
	assert.Equal(t, "pipeline-state", v)
	assert.Equal(t, 1, builds, "second lookup is served from cache")

	hits, misses := c.Stats()
	assert.EqualValues(t, 1, hits)
	assert.EqualValues(t, 1, misses)
}

func TestCache_BuildErrorNotCached(t *testing.T) {
	ctx := testCtx(t)
	c := New(DefaultExpiration, DefaultCleanupInterval)

	boom := errors.New("shader compile failed")
	_, err := c.GetOrCreate(ctx, "k", func() (any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	// The failure was not stored; the next attempt rebuilds.
	v, err := c.GetOrCreate(ctx, "k", func() (any, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, misses := c.Stats()
	assert.EqualValues(t, 2, misses)
}

func TestCache_Invalidate(t *testing.T) {
	ctx := testCtx(t)
	c := New(DefaultExpiration, DefaultCleanupInterval)

	builds := 0
	build := func() (any, error) { builds++; return builds, nil }

	_, err := c.GetOrCreate(ctx, "k", build)
	require.NoError(t, err)

	c.Invalidate("k")
	v, err := c.GetOrCreate(ctx, "k", build)
	require.NoError(t, err)
	assert.Equal(t, 2, v, "invalidation forces a rebuild")
}
