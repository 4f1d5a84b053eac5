package encode

import (
	"fmt"

	"github.com/achene/infercast/internal/frame"
)

// Converter turns frames of arbitrary supported formats into the
// encoder's input format. The conversion context is built lazily on
// first use and rebuilt whenever the source format or geometry
// changes, so a source that renegotiates mid-stream never runs through
// a stale context.
type Converter struct {
	target frame.PixelFormat

	srcFormat frame.PixelFormat
	srcWidth  int
	srcHeight int
	ready     bool

	dstPool *frame.BufferPool
	dst     *frame.Frame
}

// NewConverter creates a converter producing frames in target format.
func NewConverter(target frame.PixelFormat) *Converter {
	return &Converter{target: target}
}

// Convert returns a frame in the target format carrying src's
// timestamp. The returned frame is owned by the converter and reused
// across calls; callers must not release it or hold it past the next
// Convert.
func (c *Converter) Convert(src *frame.Frame) (*frame.Frame, error) {
	if src == nil || src.Data == nil {
		return nil, fmt.Errorf("encode: convert of nil frame")
	}

	if !c.ready || src.Format != c.srcFormat || src.Width != c.srcWidth || src.Height != c.srcHeight {
		if err := c.rebuild(src); err != nil {
			return nil, err
		}
	}

	c.dst.PTS = src.PTS
	c.dst.CameraID = src.CameraID

	if src.Format == c.target {
		copy(c.dst.Data, src.Data)
		return c.dst, nil
	}

	switch c.target {
	case frame.FormatYUV420P:
		return c.dst, convertToI420(src, c.dst)
	default:
		return nil, fmt.Errorf("encode: unsupported target format %q", c.target)
	}
}

func (c *Converter) rebuild(src *frame.Frame) error {
	pool, err := frame.NewBufferPool(c.target, src.Width, src.Height)
	if err != nil {
		return err
	}
	c.dstPool = pool
	c.dst = pool.Get(c.target, src.Width, src.Height, 0, src.CameraID)
	c.srcFormat = src.Format
	c.srcWidth = src.Width
	c.srcHeight = src.Height
	c.ready = true
	return nil
}

// convertToI420 writes src into dst as planar YUV 4:2:0 using BT.601
// studio-swing integer arithmetic.
func convertToI420(src, dst *frame.Frame) error {
	w, h := src.Width, src.Height
	ySize := w * h
	uSize := (w / 2) * (h / 2)
	yPlane := dst.Data[:ySize]
	uPlane := dst.Data[ySize : ySize+uSize]
	vPlane := dst.Data[ySize+uSize:]

	switch src.Format {
	case frame.FormatRGB24:
		for y := 0; y < h; y++ {
			row := y * src.Stride
			for x := 0; x < w; x++ {
				i := row + x*3
				r, g, b := int(src.Data[i]), int(src.Data[i+1]), int(src.Data[i+2])
				yPlane[y*w+x] = byte(((66*r+129*g+25*b+128)>>8) + 16)
				if y%2 == 0 && x%2 == 0 {
					ci := (y/2)*(w/2) + x/2
					uPlane[ci] = byte(((-38*r-74*g+112*b+128)>>8) + 128)
					vPlane[ci] = byte(((112*r-94*g-18*b+128)>>8) + 128)
				}
			}
		}
	case frame.FormatGray8:
		for y := 0; y < h; y++ {
			copy(yPlane[y*w:y*w+w], src.Data[y*src.Stride:])
		}
		for i := range uPlane {
			uPlane[i] = 128
			vPlane[i] = 128
		}
	case frame.FormatYUYV422:
		for y := 0; y < h; y++ {
			row := y * src.Stride
			for x := 0; x < w; x += 2 {
				i := row + x*2
				yPlane[y*w+x] = src.Data[i]
				if x+1 < w {
					yPlane[y*w+x+1] = src.Data[i+2]
				}
				if y%2 == 0 {
					ci := (y/2)*(w/2) + x/2
					uPlane[ci] = src.Data[i+1]
					vPlane[ci] = src.Data[i+3]
				}
			}
		}
	default:
		return fmt.Errorf("encode: no conversion from %q to yuv420p", src.Format)
	}
	return nil
}
