package model

import (
	"fmt"
	"sync/atomic"

	"github.com/achene/infercast/internal/frame"
)

// TypeTest is the registry name of the synthetic annotation model.
const TypeTest = "test"

// TestModel draws a moving marker box onto each frame instead of
// running real inference. Useful for exercising the full pipeline
// without model weights or an inference backend.
type TestModel struct {
	counter atomic.Int64
}

// NewTestModel returns an unloaded test model.
func NewTestModel() *TestModel {
	return &TestModel{}
}

// Load is a no-op; the test model needs no weights.
func (m *TestModel) Load(_ string) error {
	return nil
}

// Name implements Model.
func (m *TestModel) Name() string {
	return TypeTest
}

// Run stamps a small box whose position advances with each processed
// frame, so output video visibly confirms inference ran.
func (m *TestModel) Run(f *frame.Frame) error {
	if f == nil || f.Data == nil {
		return fmt.Errorf("test model: nil frame")
	}

	n := m.counter.Add(1)

	const box = 32
	if f.Width < box || f.Height < box {
		return nil
	}

	step := int(n) % (f.Width - box)
	y0 := (f.Height - box) / 2

	switch f.Format {
	case frame.FormatRGB24:
		for y := y0; y < y0+box; y++ {
			row := y * f.Stride
			for x := step; x < step+box; x++ {
				i := row + x*3
				f.Data[i] = 0xFF
				f.Data[i+1] = 0x00
				f.Data[i+2] = 0x00
			}
		}
	case frame.FormatGray8:
		for y := y0; y < y0+box; y++ {
			row := y * f.Stride
			for x := step; x < step+box; x++ {
				f.Data[row+x] = 0xFF
			}
		}
	default:
		// Other layouts pass through untouched.
	}

	return nil
}
