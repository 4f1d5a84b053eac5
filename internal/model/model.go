// Package model defines the inference model interface, the built-in
// model kinds, and a fixed-size pool that leases model handles to
// pipeline workers.
package model

import (
	"errors"

	"github.com/achene/infercast/internal/frame"
)

var (
	// ErrLeaseTimeout is returned by Pool.Lease when no handle frees up
	// in time.
	ErrLeaseTimeout = errors.New("model: lease timeout")
	// ErrPoolClosed is returned by Pool.Lease after Close.
	ErrPoolClosed = errors.New("model: pool closed")
	// ErrUnknownType is returned by a Registry for an unregistered
	// model type.
	ErrUnknownType = errors.New("model: unknown model type")
)

// Model runs inference on a frame in place. Implementations are not
// required to be safe for concurrent use; the pool guarantees each
// handle serves one worker at a time.
type Model interface {
	// Load prepares the model from the given weights path. An empty
	// path is acceptable for models that need no weights.
	Load(path string) error
	// Run performs inference on the frame, mutating its pixel data
	// with any annotations. The frame stays owned by the caller.
	Run(f *frame.Frame) error
	// Name identifies the model kind.
	Name() string
}
