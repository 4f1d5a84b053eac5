// Package encode abstracts the video encoder and muxer stage: frames
// go in, an H.264 stream leaves over RTMP. It also provides the pixel
// format converter feeding the encoder.
package encode

import (
	"errors"

	"github.com/achene/infercast/internal/frame"
)

var (
	// ErrNotOpen is returned by Submit before Open succeeded.
	ErrNotOpen = errors.New("encode: sink not open")
	// ErrSinkFailed is returned once the underlying encoder process or
	// connection has failed; further submits will not succeed.
	ErrSinkFailed = errors.New("encode: sink failed")
)

// Sink encodes and muxes frames to a streaming destination.
type Sink interface {
	// Open connects to the destination and prepares the encoder for
	// frames of the given geometry.
	Open(url string, width, height, fps, bitrate int) error
	// Submit hands one frame to the encoder. The frame stays owned by
	// the caller. A nil frame flushes buffered output.
	Submit(f *frame.Frame) error
	// Close flushes and tears down the encoder. Idempotent.
	Close() error
	// InputFormat reports the pixel format Submit expects.
	InputFormat() frame.PixelFormat
}
