package device

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/voxgraph/voxgraph/internal/ctxlog"
)

// SimDevice is an in-process Device that tracks allocations without touching
// hardware. It backs the CLI and the test suites; the real backend lives
// outside this module.
type SimDevice struct {
	mu        sync.Mutex
	live      map[uuid.UUID]Descriptor
	allocated int
	released  int
	closed    bool

	// FailAllocations, when non-nil, is consulted before each allocation so
	// tests can inject device-side failures by descriptor name.
	FailAllocations func(desc Descriptor) error
}

// NewSimDevice returns an empty simulated device.
func NewSimDevice() *SimDevice {
	return &SimDevice{live: make(map[uuid.UUID]Descriptor)}
}

// AllocateResource implements Device.
func (d *SimDevice) AllocateResource(ctx context.Context, desc Descriptor) (Handle, error) {
	logger := ctxlog.FromContext(ctx)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return Handle{}, ErrDeviceClosed
	}
	if d.FailAllocations != nil {
		if err := d.FailAllocations(desc); err != nil {
			return Handle{}, err
		}
	}
	h := Handle{ID: uuid.New(), Kind: desc.Kind}
	d.live[h.ID] = desc
	d.allocated++
	logger.Debug("Device allocation.", "name", desc.Name, "kind", desc.Kind.String(), "size_bytes", desc.SizeBytes)
	return h, nil
}

// ReleaseResource implements Device.
func (d *SimDevice) ReleaseResource(ctx context.Context, h Handle) error {
	logger := ctxlog.FromContext(ctx)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDeviceClosed
	}
	desc, ok := d.live[h.ID]
	if !ok {
		return ErrUnknownHandle
	}
	delete(d.live, h.ID)
	d.released++
	logger.Debug("Device release.", "name", desc.Name, "kind", h.Kind.String())
	return nil
}

// LiveCount returns the number of outstanding allocations.
func (d *SimDevice) LiveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

// Allocated returns the total allocation count.
func (d *SimDevice) Allocated() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocated
}

// Released returns the total release count.
func (d *SimDevice) Released() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}

// Close marks the device closed; further calls fail with ErrDeviceClosed.
func (d *SimDevice) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}
