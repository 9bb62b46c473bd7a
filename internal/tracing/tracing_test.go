package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(false)
	require.NoError(t, err)
	require.NotNil(t, p.Tracer())

	// The no-op tracer still yields usable spans.
	_, span := p.Tracer().Start(context.Background(), "test")
	span.End()

	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_Enabled(t *testing.T) {
	p, err := NewProvider(true)
	require.NoError(t, err)
	require.NotNil(t, p.Tracer())

	_, span := p.Tracer().Start(context.Background(), "compile")
	span.End()

	assert.NoError(t, p.Shutdown(context.Background()))
}
