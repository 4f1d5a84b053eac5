// Package capture abstracts video frame sources. A source delivers
// frames to a registered callback; ownership of each frame transfers to
// the callback, which must release it or hand it onward.
package capture

import (
	"errors"

	"github.com/achene/infercast/internal/frame"
)

// ErrNotInitialized is returned by Start before Initialize succeeded.
var ErrNotInitialized = errors.New("capture: not initialized")

// FrameCallback receives each captured frame. Presentation timestamps
// are strictly increasing per source. The callback owns the frame.
type FrameCallback func(f *frame.Frame)

// Source is a camera or synthetic frame producer.
type Source interface {
	// Initialize prepares the device. Must be called before Start.
	Initialize() error
	// Start begins frame delivery to the registered callback.
	Start() error
	// Stop halts delivery. No callback invocations happen after Stop
	// returns.
	Stop() error
	// SetFrameCallback registers the frame receiver. Must be set
	// before Start.
	SetFrameCallback(cb FrameCallback)
	// Format reports the pixel format of delivered frames.
	Format() frame.PixelFormat
}
