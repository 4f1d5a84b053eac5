package capture

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/achene/infercast/internal/frame"
)

var testDeviceRe = regexp.MustCompile(`^test:(\d+)x(\d+)@(\d+)$`)

// IsTestDevice reports whether the device string selects the synthetic
// source, e.g. "test:640x480@30".
func IsTestDevice(device string) bool {
	return testDeviceRe.MatchString(device)
}

// ParseTestDevice extracts width, height, and fps from a synthetic
// device string.
func ParseTestDevice(device string) (width, height, fps int, err error) {
	m := testDeviceRe.FindStringSubmatch(device)
	if m == nil {
		return 0, 0, 0, fmt.Errorf("capture: invalid test device %q, want test:<w>x<h>@<fps>", device)
	}
	width, _ = strconv.Atoi(m[1])
	height, _ = strconv.Atoi(m[2])
	fps, _ = strconv.Atoi(m[3])
	if width <= 0 || height <= 0 || fps <= 0 {
		return 0, 0, 0, fmt.Errorf("capture: test device %q has non-positive dimensions", device)
	}
	return width, height, fps, nil
}

// SyntheticOption tunes a SyntheticSource.
type SyntheticOption func(*SyntheticSource)

// WithFrameLimit stops delivery after n frames. Zero means unlimited.
func WithFrameLimit(n int) SyntheticOption {
	return func(s *SyntheticSource) {
		s.frameLimit = n
	}
}

// WithInterval overrides the inter-frame delay derived from fps. Useful
// in tests that want frames as fast as possible.
func WithInterval(d time.Duration) SyntheticOption {
	return func(s *SyntheticSource) {
		s.interval = d
		s.intervalSet = true
	}
}

// SyntheticSource generates moving-gradient frames at a fixed rate
// without touching any hardware.
type SyntheticSource struct {
	cameraID string
	width    int
	height   int
	fps      int

	frameLimit  int
	interval    time.Duration
	intervalSet bool

	pool        *frame.BufferPool
	cb          FrameCallback
	initialized bool
	running     atomic.Bool

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewSyntheticSource builds a synthetic source for the given geometry.
func NewSyntheticSource(cameraID string, width, height, fps int, opts ...SyntheticOption) *SyntheticSource {
	s := &SyntheticSource{
		cameraID: cameraID,
		width:    width,
		height:   height,
		fps:      fps,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize allocates the frame buffer pool.
func (s *SyntheticSource) Initialize() error {
	if s.width <= 0 || s.height <= 0 || s.fps <= 0 {
		return fmt.Errorf("capture: invalid synthetic geometry %dx%d@%d", s.width, s.height, s.fps)
	}
	pool, err := frame.NewBufferPool(frame.FormatRGB24, s.width, s.height)
	if err != nil {
		return err
	}
	s.pool = pool
	if !s.intervalSet {
		s.interval = time.Second / time.Duration(s.fps)
	}
	s.initialized = true
	return nil
}

// SetFrameCallback implements Source.
func (s *SyntheticSource) SetFrameCallback(cb FrameCallback) {
	s.cb = cb
}

// Format implements Source.
func (s *SyntheticSource) Format() frame.PixelFormat {
	return frame.FormatRGB24
}

// Start launches the generator goroutine.
func (s *SyntheticSource) Start() error {
	if !s.initialized {
		return ErrNotInitialized
	}
	if s.cb == nil {
		return fmt.Errorf("capture: frame callback not set")
	}
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.generate()
	return nil
}

// Stop halts generation and waits for the generator to exit.
func (s *SyntheticSource) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.mu.Unlock()
	close(stop)
	<-done
	return nil
}

func (s *SyntheticSource) generate() {
	defer close(s.done)

	var ticker *time.Ticker
	if s.interval > 0 {
		ticker = time.NewTicker(s.interval)
		defer ticker.Stop()
	}

	var pts int64
	for {
		if s.frameLimit > 0 && pts >= int64(s.frameLimit) {
			return
		}
		if ticker != nil {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
			}
		} else {
			select {
			case <-s.stop:
				return
			default:
			}
		}

		f := s.pool.Get(frame.FormatRGB24, s.width, s.height, pts, s.cameraID)
		s.paint(f, pts)
		pts++
		s.cb(f)
	}
}

// paint fills the frame with a gradient that shifts each frame, so
// encoded output visibly moves.
func (s *SyntheticSource) paint(f *frame.Frame, pts int64) {
	shift := byte(pts)
	for y := 0; y < f.Height; y++ {
		row := y * f.Stride
		for x := 0; x < f.Width; x++ {
			i := row + x*3
			f.Data[i] = byte(x) + shift
			f.Data[i+1] = byte(y)
			f.Data[i+2] = shift
		}
	}
}
