// Package device specifies the command-submission collaborator at its
// interface boundary. The scheduler core never issues hardware commands
// itself; it allocates through this interface during the AllocateResources
// phase and releases through destructor closures run by the deferred
// destruction queue.
package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Device-level errors.
var (
	// ErrDeviceClosed is returned when operating on a closed device.
	ErrDeviceClosed = errors.New("device: closed")

	// ErrUnknownHandle is returned when releasing a handle the device did
	// not allocate, or releasing one twice.
	ErrUnknownHandle = errors.New("device: unknown handle")
)

// ResourceKind distinguishes backend object categories.
type ResourceKind int

const (
	KindBuffer ResourceKind = iota
	KindTexture
	KindPipeline
)

func (k ResourceKind) String() string {
	switch k {
	case KindBuffer:
		return "buffer"
	case KindTexture:
		return "texture"
	case KindPipeline:
		return "pipeline"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Descriptor describes the backend object to allocate.
type Descriptor struct {
	Name      string
	Kind      ResourceKind
	SizeBytes uint64
	// Width/Height apply to textures only.
	Width  uint32
	Height uint32
	Format string
}

// Handle identifies one allocated backend object.
type Handle struct {
	ID   uuid.UUID
	Kind ResourceKind
}

// Device is the narrow allocation surface the compiler consumes.
type Device interface {
	AllocateResource(ctx context.Context, desc Descriptor) (Handle, error)
	ReleaseResource(ctx context.Context, h Handle) error
}
