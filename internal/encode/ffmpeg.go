package encode

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/achene/infercast/internal/ffmpeg"
	"github.com/achene/infercast/internal/frame"
	"github.com/achene/infercast/internal/metrics"
	"github.com/achene/infercast/internal/process"
)

// FFmpegSink encodes by piping raw frames into an ffmpeg child that
// runs libx264 and muxes FLV to the RTMP endpoint. A write failure
// marks the sink failed permanently; the pipeline reacts by stopping.
type FFmpegSink struct {
	cameraID string
	logger   *slog.Logger

	encoder string
	preset  string
	gop     int
	metrics *metrics.Recorder

	mu       sync.Mutex
	proc     *process.Process
	stdin    io.WriteCloser
	progress *progressListener
	open     bool
	failed   bool
}

// SinkOption configures an FFmpegSink before Open.
type SinkOption func(*FFmpegSink)

// WithEncoder overrides the video encoder, e.g. h264_vaapi.
func WithEncoder(name string) SinkOption {
	return func(s *FFmpegSink) { s.encoder = name }
}

// WithPreset overrides the x264 preset.
func WithPreset(name string) SinkOption {
	return func(s *FFmpegSink) { s.preset = name }
}

// WithGOP overrides the keyframe interval in frames.
func WithGOP(frames int) SinkOption {
	return func(s *FFmpegSink) { s.gop = frames }
}

// WithProgressMetrics publishes the child's -progress output as
// encoder gauges on the recorder.
func WithProgressMetrics(rec *metrics.Recorder) SinkOption {
	return func(s *FFmpegSink) { s.metrics = rec }
}

// NewFFmpegSink creates a sink for one camera's stream.
func NewFFmpegSink(cameraID string, logger *slog.Logger, opts ...SinkOption) *FFmpegSink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &FFmpegSink{
		cameraID: cameraID,
		logger:   logger.With("camera_id", cameraID),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InputFormat reports the raw format written to the child's stdin.
func (s *FFmpegSink) InputFormat() frame.PixelFormat {
	return frame.FormatYUV420P
}

// Open starts the ffmpeg child for the given stream geometry.
func (s *FFmpegSink) Open(url string, width, height, fps, bitrate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return fmt.Errorf("encode: sink already open for %s", s.cameraID)
	}

	// A listener that fails to bind only costs progress gauges, so
	// the encoder still starts.
	var progressSocket string
	if s.metrics != nil {
		path := filepath.Join(os.TempDir(), fmt.Sprintf("infercast-progress-%s-%d.sock", s.cameraID, time.Now().UnixNano()))
		listener := newProgressListener(s.cameraID, path, s.metrics, s.logger)
		if err := listener.Start(); err != nil {
			s.logger.Warn("Encoder progress reporting disabled", "error", err)
		} else {
			s.progress = listener
			progressSocket = path
		}
	}

	args, err := ffmpeg.BuildEncodeArgs(&ffmpeg.EncodeParams{
		Width:          width,
		Height:         height,
		FPS:            fps,
		PixelFormat:    s.InputFormat().FFmpegName(),
		Encoder:        s.encoder,
		Preset:         s.preset,
		Bitrate:        bitrate,
		GOP:            s.gop,
		OutputURL:      url,
		ProgressSocket: progressSocket,
	})
	if err != nil {
		s.stopProgress()
		return err
	}

	proc := process.New("encode-"+s.cameraID, args, s.logger, process.WithStdinPipe())
	proc.SetLogParser(s.logger.With("module", "ffmpeg"), ffmpeg.ParseLogLevel)
	if err := proc.Start(); err != nil {
		s.stopProgress()
		return fmt.Errorf("encode: starting ffmpeg: %w", err)
	}

	s.proc = proc
	s.stdin = proc.Stdin()
	s.open = true
	s.failed = false
	s.logger.Info("Encoder started", "url", url, "size", fmt.Sprintf("%dx%d", width, height), "fps", fps, "bitrate", bitrate)
	return nil
}

// Submit writes one frame to the child's stdin. A nil frame is a
// flush, which the pipe-based child does not buffer for, so it is a
// no-op while the child is healthy.
func (s *FFmpegSink) Submit(f *frame.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return ErrNotOpen
	}
	if s.failed {
		return ErrSinkFailed
	}
	if f == nil {
		return nil
	}
	if f.Format != s.InputFormat() {
		return fmt.Errorf("encode: frame format %s, sink expects %s", f.Format, s.InputFormat())
	}

	if _, err := s.stdin.Write(f.Data); err != nil {
		s.failed = true
		if !s.proc.Running() {
			s.logger.Error("Encoder process died", "error", err)
		} else {
			s.logger.Error("Encoder write failed", "error", err)
		}
		return fmt.Errorf("%w: %v", ErrSinkFailed, err)
	}
	return nil
}

// Close closes stdin so the child flushes its encoder, then stops the
// child. Idempotent.
func (s *FFmpegSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}
	s.open = false

	code := s.proc.Stop()
	if code != 0 && !s.failed {
		s.logger.Warn("Encoder exited non-zero", "exit_code", code)
	}
	s.stopProgress()
	s.proc = nil
	s.stdin = nil
	return nil
}

func (s *FFmpegSink) stopProgress() {
	if s.progress == nil {
		return
	}
	s.progress.Stop()
	s.progress = nil
	s.metrics.ClearEncoderProgress(s.cameraID)
}
