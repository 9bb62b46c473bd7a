package device

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

func TestSimDevice_AllocateAndRelease(t *testing.T) {
	ctx := testCtx(t)
	d := NewSimDevice()

	h, err := d.AllocateResource(ctx, Descriptor{Name: "vertices", Kind: KindBuffer, SizeBytes: 1024})
	require.NoError(t, err)
	assert.Equal(t, KindBuffer, h.Kind)
	assert.Equal(t, 1, d.LiveCount())
	assert.Equal(t, 1, d.Allocated())

	require.NoError(t, d.ReleaseResource(ctx, h))
	assert.Equal(t, 0, d.LiveCount())
	assert.Equal(t, 1, d.Released())
}

func TestSimDevice_DoubleReleaseFails(t *testing.T) {
	ctx := testCtx(t)
	d := NewSimDevice()
	h, err := d.AllocateResource(ctx, Descriptor{Name: "x", Kind: KindTexture})
	require.NoError(t, err)

	require.NoError(t, d.ReleaseResource(ctx, h))
	assert.ErrorIs(t, d.ReleaseResource(ctx, h), ErrUnknownHandle)
}

func TestSimDevice_UnknownHandle(t *testing.T) {
	d := NewSimDevice()
	err := d.ReleaseResource(testCtx(t), Handle{Kind: KindBuffer})
	assert.ErrorIs(t, err, ErrUnknownHandle)
}

func TestSimDevice_FailureInjection(t *testing.T) {
	ctx := testCtx(t)
	d := NewSimDevice()
	injected := errors.New("out of memory")
	d.FailAllocations = func(desc Descriptor) error {
		if desc.Name == "huge" {
			return injected
		}
		return nil
	}

	_, err := d.AllocateResource(ctx, Descriptor{Name: "huge", Kind: KindBuffer})
	assert.ErrorIs(t, err, injected)
	assert.Equal(t, 0, d.Allocated())

	_, err = d.AllocateResource(ctx, Descriptor{Name: "small", Kind: KindBuffer})
	assert.NoError(t, err)
}

func TestSimDevice_Closed(t *testing.T) {
	ctx := testCtx(t)
	d := NewSimDevice()
	h, err := d.AllocateResource(ctx, Descriptor{Name: "x", Kind: KindBuffer})
	require.NoError(t, err)

	d.Close()
	_, err = d.AllocateResource(ctx, Descriptor{Name: "y", Kind: KindBuffer})
	assert.ErrorIs(t, err, ErrDeviceClosed)
	assert.ErrorIs(t, d.ReleaseResource(ctx, h), ErrDeviceClosed)
}
