// Package frame defines the video frame type passed between capture,
// inference, and encoding stages, plus a buffer pool that recycles the
// underlying pixel storage.
package frame

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// PixelFormat identifies the pixel layout of a frame's data buffer.
type PixelFormat string

const (
	FormatRGB24   PixelFormat = "rgb24"
	FormatGray8   PixelFormat = "gray8"
	FormatYUYV422 PixelFormat = "yuyv422"
	FormatYUV420P PixelFormat = "yuv420p"
)

// BytesPerFrame returns the buffer size needed for a frame of the given
// dimensions in this format.
func (f PixelFormat) BytesPerFrame(width, height int) (int, error) {
	switch f {
	case FormatRGB24:
		return width * height * 3, nil
	case FormatGray8:
		return width * height, nil
	case FormatYUYV422:
		return width * height * 2, nil
	case FormatYUV420P:
		return width * height * 3 / 2, nil
	default:
		return 0, fmt.Errorf("unknown pixel format %q", f)
	}
}

// FFmpegName returns the pix_fmt string ffmpeg uses for this format.
func (f PixelFormat) FFmpegName() string {
	return string(f)
}

// Frame is a single video frame. Ownership transfers with the frame:
// whoever holds it is responsible for calling Release exactly once when
// done, which returns the data buffer to its pool.
type Frame struct {
	Data     []byte
	Width    int
	Height   int
	Stride   int
	Format   PixelFormat
	PTS      int64
	CameraID string

	pool     *BufferPool
	released atomic.Bool
}

// Release returns the frame's buffer to its pool. The second and later
// calls are no-ops and report false.
func (f *Frame) Release() bool {
	if f == nil {
		return false
	}
	if !f.released.CompareAndSwap(false, true) {
		return false
	}
	if f.pool != nil {
		f.pool.put(f.Data)
	}
	f.Data = nil
	return true
}

// Released reports whether Release has been called.
func (f *Frame) Released() bool {
	return f.released.Load()
}

// BufferPool hands out fixed-size byte buffers for frames of one
// geometry and recycles them on Release.
type BufferPool struct {
	size int
	pool sync.Pool
}

// NewBufferPool creates a pool for frames of the given format and
// dimensions.
func NewBufferPool(format PixelFormat, width, height int) (*BufferPool, error) {
	size, err := format.BytesPerFrame(width, height)
	if err != nil {
		return nil, err
	}
	p := &BufferPool{size: size}
	p.pool.New = func() any {
		return make([]byte, size)
	}
	return p, nil
}

// BufferSize returns the byte size of buffers handed out by the pool.
func (p *BufferPool) BufferSize() int {
	return p.size
}

// Get returns a frame backed by a pooled buffer. The caller owns the
// frame until it hands it off or releases it.
func (p *BufferPool) Get(format PixelFormat, width, height int, pts int64, cameraID string) *Frame {
	data := p.pool.Get().([]byte)
	return &Frame{
		Data:     data,
		Width:    width,
		Height:   height,
		Stride:   rowStride(format, width),
		Format:   format,
		PTS:      pts,
		CameraID: cameraID,
		pool:     p,
	}
}

func (p *BufferPool) put(data []byte) {
	if cap(data) < p.size {
		return
	}
	p.pool.Put(data[:p.size])
}

func rowStride(format PixelFormat, width int) int {
	switch format {
	case FormatRGB24:
		return width * 3
	case FormatGray8:
		return width
	case FormatYUYV422:
		return width * 2
	default:
		return width
	}
}
