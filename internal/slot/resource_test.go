package slot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResource(t *testing.T) {
	r := NewResource(Descriptor{Name: "handle", Type: "buffer"})
	require.NotNil(t, r)
	assert.Equal(t, StateUninitialized, State(0))
	assert.False(t, r.Ready())
	assert.Nil(t, r.Payload())
	assert.EqualValues(t, 0, r.Generation())
}

func TestResource_Set(t *testing.T) {
	r := NewResource(Descriptor{Name: "handle", Type: "buffer"})

	r.Set("payload-1")
	assert.True(t, r.Ready())
	assert.Equal(t, "payload-1", r.Payload())
	assert.EqualValues(t, 1, r.Generation())

	r.Set("payload-2")
	assert.Equal(t, "payload-2", r.Payload())
	assert.EqualValues(t, 2, r.Generation())
}

func TestResource_SetClearsTransientFlags(t *testing.T) {
	r := NewResource(Descriptor{Name: "handle", Type: "buffer"})
	r.MarkOutdated()
	r.MarkStale()
	r.MarkPending()
	r.MarkFailed()

	r.Set(42)

	assert.True(t, r.Ready())
	assert.False(t, r.Has(StateOutdated))
	assert.False(t, r.Has(StateStale))
	assert.False(t, r.Has(StatePending))
	assert.False(t, r.Has(StateFailed))
}

func TestResource_FlagsCombine(t *testing.T) {
	r := NewResource(Descriptor{Name: "handle", Type: "buffer"})
	r.Set(1)
	r.MarkOutdated()

	// Ready and Outdated are independent bits and may coexist.
	assert.True(t, r.Ready())
	assert.True(t, r.Has(StateOutdated))
	assert.True(t, r.Has(StateReady|StateOutdated))
	assert.False(t, r.Has(StateReady|StateLocked))
}

func TestResource_Lock(t *testing.T) {
	t.Run("set on locked panics", func(t *testing.T) {
		r := NewResource(Descriptor{Name: "handle", Type: "buffer"})
		r.Set(1)
		r.Lock()

		require.Panics(t, func() { r.Set(2) })

		// The lock holder's view is unchanged.
		assert.Equal(t, 1, r.Payload())
		assert.EqualValues(t, 1, r.Generation())
	})

	t.Run("set succeeds after unlock", func(t *testing.T) {
		r := NewResource(Descriptor{Name: "handle", Type: "buffer"})
		r.Set(1)
		r.Lock()
		r.Unlock()

		require.NotPanics(t, func() { r.Set(2) })
		assert.Equal(t, 2, r.Payload())
	})

	t.Run("double lock panics", func(t *testing.T) {
		r := NewResource(Descriptor{Name: "handle", Type: "buffer"})
		r.Lock()
		require.Panics(t, func() { r.Lock() })
	})

	t.Run("unlock without lock panics", func(t *testing.T) {
		r := NewResource(Descriptor{Name: "handle", Type: "buffer"})
		require.Panics(t, func() { r.Unlock() })
	})
}

func TestRole_Has(t *testing.T) {
	r := RoleDependency | RoleExecute
	assert.True(t, r.Has(RoleDependency))
	assert.True(t, r.Has(RoleExecute))
	assert.True(t, r.Has(RoleDependency|RoleExecute))
	assert.False(t, r.Has(RoleOutput))
	assert.False(t, r.Has(RoleCleanupOnly))
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "none", Role(0).String())
	assert.Equal(t, "dependency|execute", (RoleDependency | RoleExecute).String())
	assert.Equal(t, "output", RoleOutput.String())
}
