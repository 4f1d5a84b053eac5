package capture

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/achene/infercast/internal/ffmpeg"
	"github.com/achene/infercast/internal/frame"
	"github.com/achene/infercast/internal/process"
)

// FFmpegSource captures frames by running an ffmpeg child that decodes
// the device and writes raw frames to stdout. One io.ReadFull per
// frame; pts is the frame index.
type FFmpegSource struct {
	cameraID string
	params   ffmpeg.CaptureParams
	logger   *slog.Logger

	format frame.PixelFormat
	pool   *frame.BufferPool
	proc   *process.Process

	callback    FrameCallback
	running     atomic.Bool
	initialized bool
	done        chan struct{}
}

// NewFFmpegSource creates a source for the given device. The child is
// not started until Start.
func NewFFmpegSource(cameraID string, params ffmpeg.CaptureParams, logger *slog.Logger) *FFmpegSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegSource{
		cameraID: cameraID,
		params:   params,
		logger:   logger.With("camera_id", cameraID),
	}
}

// SetFrameCallback registers the per-frame callback. Must be called
// before Start.
func (s *FFmpegSource) SetFrameCallback(cb FrameCallback) {
	s.callback = cb
}

// Format returns the pixel format frames are delivered in.
func (s *FFmpegSource) Format() frame.PixelFormat {
	return s.format
}

// Initialize validates the parameters and allocates the frame pool.
func (s *FFmpegSource) Initialize() error {
	format := frame.PixelFormat(s.params.PixelFormat)
	if format == "" {
		format = frame.FormatRGB24
		s.params.PixelFormat = format.FFmpegName()
	}
	if _, err := ffmpeg.BuildCaptureArgs(&s.params); err != nil {
		return err
	}
	pool, err := frame.NewBufferPool(format, s.params.Width, s.params.Height)
	if err != nil {
		return err
	}
	s.format = format
	s.pool = pool
	s.initialized = true
	return nil
}

// Start launches the ffmpeg child and the frame reader goroutine.
func (s *FFmpegSource) Start() error {
	if !s.initialized {
		return ErrNotInitialized
	}
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}

	args, err := ffmpeg.BuildCaptureArgs(&s.params)
	if err != nil {
		s.running.Store(false)
		return err
	}

	proc := process.New("capture-"+s.cameraID, args, s.logger, process.WithStdoutPipe())
	proc.SetLogParser(s.logger.With("module", "ffmpeg"), ffmpeg.ParseLogLevel)
	if err := proc.Start(); err != nil {
		s.running.Store(false)
		return fmt.Errorf("capture: starting ffmpeg: %w", err)
	}

	s.proc = proc
	s.done = make(chan struct{})
	go s.readFrames(proc.Stdout())
	return nil
}

// Stop terminates the ffmpeg child and waits for the reader to drain.
func (s *FFmpegSource) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.proc != nil {
		s.proc.Stop()
	}
	if s.done != nil {
		<-s.done
	}
	return nil
}

// readFrames reads fixed-size frames from the child's stdout until the
// pipe closes or the source is stopped.
func (s *FFmpegSource) readFrames(r io.ReadCloser) {
	defer close(s.done)
	defer r.Close()

	var pts int64
	for s.running.Load() {
		f := s.pool.Get(s.format, s.params.Width, s.params.Height, pts, s.cameraID)
		if _, err := io.ReadFull(r, f.Data); err != nil {
			f.Release()
			if s.running.Load() && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				s.logger.Error("Capture read failed", "error", err, "frame_size", s.pool.BufferSize())
			}
			return
		}
		pts++

		if s.callback != nil {
			s.callback(f)
		} else {
			f.Release()
		}
	}
}
