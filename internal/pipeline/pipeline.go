// Package pipeline wires a capture source, an inference worker stage,
// and an encoder sink into one camera-to-RTMP stream. Frames flow
// through two bounded timestamp-ordered queues; a fixed worker pool
// runs inference in parallel and a single encoding loop restores
// strict presentation order before frames reach the encoder.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/achene/infercast/internal/capture"
	"github.com/achene/infercast/internal/encode"
	"github.com/achene/infercast/internal/events"
	"github.com/achene/infercast/internal/frame"
	"github.com/achene/infercast/internal/metrics"
	"github.com/achene/infercast/internal/model"
	"github.com/achene/infercast/internal/queue"
	"github.com/achene/infercast/internal/worker"
)

const (
	popTimeout   = 50 * time.Millisecond
	leaseTimeout = 10 * time.Millisecond
)

// ErrBadTransition is returned when Initialize, Start, or Stop is
// called out of lifecycle order.
var ErrBadTransition = errors.New("pipeline: invalid state transition")

// Options configures a Pipeline.
type Options struct {
	CameraID string
	Source   capture.Source
	Sink     encode.Sink

	URL     string
	Width   int
	Height  int
	FPS     int
	Bitrate int

	Registry      *model.Registry
	ModelType     string
	ModelPath     string
	ThreadCount   int
	ModelPoolSize int
	QueueCapacity int

	Logger  *slog.Logger
	Bus     *events.Bus
	Metrics *metrics.Recorder
}

// Stats is a point-in-time snapshot of a pipeline's frame accounting.
type Stats struct {
	SessionID        string `json:"session_id"`
	CameraID         string `json:"camera_id"`
	State            string `json:"state"`
	Captured         int64  `json:"captured"`
	Encoded          int64  `json:"encoded"`
	DroppedInference int64  `json:"dropped_inference"`
	DroppedMonotonic int64  `json:"dropped_monotonic"`
	Drained          int64  `json:"drained"`
	InputDepth       int    `json:"input_depth"`
	OutputDepth      int    `json:"output_depth"`
	Workers          int    `json:"workers"`
}

// Pipeline runs one camera's capture, inference, and encode stages.
type Pipeline struct {
	opts      Options
	sessionID string
	logger    *slog.Logger

	state atomic.Int32
	// running is the sole cancellation token shared by every loop.
	running atomic.Bool

	inputQ  *queue.Ordered[*frame.Frame]
	outputQ *queue.Ordered[*frame.Frame]
	models  *model.Pool
	workers *worker.Pool

	readFutures []*worker.Future
	encodeDone  chan struct{}
	converter   *encode.Converter

	captured         atomic.Int64
	encoded          atomic.Int64
	droppedInference atomic.Int64
	droppedMonotonic atomic.Int64
	drained          atomic.Int64

	stopOnce sync.Once
	stopErr  error
}

// New creates a pipeline in the Created state. Nothing is allocated or
// opened until Initialize.
func New(opts Options) (*Pipeline, error) {
	if opts.CameraID == "" {
		return nil, errors.New("pipeline: camera id required")
	}
	if opts.Source == nil {
		return nil, errors.New("pipeline: capture source required")
	}
	if opts.Sink == nil {
		return nil, errors.New("pipeline: encoder sink required")
	}
	if opts.ThreadCount <= 0 {
		opts.ThreadCount = 1
	}
	if opts.ModelPoolSize <= 0 {
		opts.ModelPoolSize = opts.ThreadCount
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = 16
	}
	if opts.Registry == nil {
		opts.Registry = model.NewRegistry()
	}
	if opts.ModelType == "" {
		opts.ModelType = model.TypeTest
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	p := &Pipeline{
		opts:       opts,
		sessionID:  uuid.NewString(),
		encodeDone: make(chan struct{}),
	}
	p.logger = opts.Logger.With("camera_id", opts.CameraID, "session_id", p.sessionID)
	p.state.Store(int32(StateCreated))
	return p, nil
}

// SessionID returns the unique identifier of this pipeline run.
func (p *Pipeline) SessionID() string {
	return p.sessionID
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Initialize builds the queues, model pool, and worker pool, opens the
// encoder, and prepares the capture source. Any failure leaves the
// pipeline unusable; callers treat it as fatal for this camera.
func (p *Pipeline) Initialize() error {
	if State(p.state.Load()) == StateInitialized {
		return nil
	}
	if !p.state.CompareAndSwap(int32(StateCreated), int32(StateInitialized)) {
		return fmt.Errorf("%w: initialize from %s", ErrBadTransition, p.State())
	}

	byPTS := func(a, b *frame.Frame) bool { return a.PTS < b.PTS }

	var err error
	if p.inputQ, err = queue.NewOrdered(p.opts.QueueCapacity, byPTS); err != nil {
		return fmt.Errorf("input queue: %w", err)
	}
	if p.outputQ, err = queue.NewOrdered(p.opts.QueueCapacity, byPTS); err != nil {
		return fmt.Errorf("output queue: %w", err)
	}

	p.models, err = model.NewPool(p.opts.Registry, p.opts.ModelType, p.opts.ModelPath, p.opts.ModelPoolSize)
	if err != nil {
		return fmt.Errorf("model pool: %w", err)
	}

	p.workers, err = worker.NewPool(worker.Options{
		InitSize:      p.opts.ThreadCount,
		QueueCapacity: p.opts.ThreadCount,
		Logger:        p.logger,
	})
	if err != nil {
		return fmt.Errorf("worker pool: %w", err)
	}

	p.converter = encode.NewConverter(p.opts.Sink.InputFormat())

	if err := p.opts.Sink.Open(p.opts.URL, p.opts.Width, p.opts.Height, p.opts.FPS, p.opts.Bitrate); err != nil {
		p.publishError("encode", err)
		return fmt.Errorf("opening encoder: %w", err)
	}

	if err := p.opts.Source.Initialize(); err != nil {
		p.publishError("capture", err)
		return fmt.Errorf("initializing capture: %w", err)
	}

	// The callback closes over the queue and counters rather than the
	// pipeline, so the source never holds a reference cycle back into
	// its owner.
	p.opts.Source.SetFrameCallback(makeCaptureCallback(
		p.inputQ, &p.captured, &p.drained, p.opts.Metrics, p.opts.CameraID,
	))

	p.publishState(StateCreated, StateInitialized)
	p.logger.Info("Pipeline initialized",
		"model", p.opts.ModelType,
		"threads", p.opts.ThreadCount,
		"pool_size", p.opts.ModelPoolSize,
		"url", p.opts.URL)
	return nil
}

// makeCaptureCallback builds the frame receiver handed to the capture
// source. A frame that cannot be queued is released here.
func makeCaptureCallback(
	q *queue.Ordered[*frame.Frame],
	captured, drained *atomic.Int64,
	rec *metrics.Recorder,
	cameraID string,
) capture.FrameCallback {
	return func(f *frame.Frame) {
		captured.Add(1)
		rec.FrameCaptured(cameraID)
		if err := q.Push(f); err != nil {
			f.Release()
			drained.Add(1)
			rec.FrameDropped(cameraID, metrics.ReasonDrained)
		}
	}
}

// Start launches the reading loops and the encoding loop, then starts
// the capture source. Start on a running pipeline is a no-op.
func (p *Pipeline) Start() error {
	if State(p.state.Load()) == StateRunning {
		return nil
	}
	if !p.state.CompareAndSwap(int32(StateInitialized), int32(StateRunning)) {
		return fmt.Errorf("%w: start from %s", ErrBadTransition, p.State())
	}

	p.running.Store(true)

	p.readFutures = make([]*worker.Future, 0, p.opts.ThreadCount)
	for i := 0; i < p.opts.ThreadCount; i++ {
		future, err := p.workers.Submit(p.readingLoop)
		if err != nil {
			p.running.Store(false)
			return fmt.Errorf("submitting reading loop: %w", err)
		}
		p.readFutures = append(p.readFutures, future)
	}

	go p.encodingLoop()

	if err := p.opts.Source.Start(); err != nil {
		p.publishError("capture", err)
		p.running.Store(false)
		return fmt.Errorf("starting capture: %w", err)
	}

	p.opts.Metrics.SetPipelineUp(p.opts.CameraID, true)
	p.publishState(StateInitialized, StateRunning)
	p.logger.Info("Pipeline running")
	return nil
}

// readingLoop leases one model handle for its whole lifetime, then
// moves frames from the input queue through inference into the output
// queue until the pipeline stops.
func (p *Pipeline) readingLoop() error {
	var m model.Model
	for p.running.Load() {
		leased, err := p.models.Lease(leaseTimeout)
		if err == nil {
			m = leased
			break
		}
	}
	if m == nil {
		return nil
	}
	defer p.models.Return(m)

	for p.running.Load() {
		f, err := p.inputQ.Pop(popTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				return nil
			}
			continue
		}

		if err := m.Run(f); err != nil {
			p.logger.Warn("Inference failed, dropping frame", "pts", f.PTS, "error", err)
			f.Release()
			p.droppedInference.Add(1)
			p.opts.Metrics.FrameDropped(p.opts.CameraID, metrics.ReasonInference)
			continue
		}

		if err := p.outputQ.Push(f); err != nil {
			f.Release()
			p.drained.Add(1)
			p.opts.Metrics.FrameDropped(p.opts.CameraID, metrics.ReasonDrained)
		}
	}
	return nil
}

// encodingLoop is the single consumer of the output queue. It enforces
// strictly increasing presentation timestamps, converts each frame
// into the encoder's input format, and submits it.
func (p *Pipeline) encodingLoop() {
	defer close(p.encodeDone)

	lastPTS := int64(math.MinInt64)

	for p.running.Load() {
		f, err := p.outputQ.Pop(popTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				break
			}
			continue
		}
		p.encodeFrame(f, &lastPTS)
	}

	// Frames still queued at shutdown are reclaimed, not encoded.
	for {
		f, err := p.outputQ.Pop(0)
		if err != nil {
			break
		}
		f.Release()
		p.drained.Add(1)
		p.opts.Metrics.FrameDropped(p.opts.CameraID, metrics.ReasonDrained)
	}

	if err := p.opts.Sink.Submit(nil); err != nil && !errors.Is(err, encode.ErrNotOpen) {
		p.logger.Warn("Encoder flush failed", "error", err)
	}
}

func (p *Pipeline) encodeFrame(f *frame.Frame, lastPTS *int64) {
	defer func() {
		f.Release()
	}()

	if f.PTS <= *lastPTS {
		p.droppedMonotonic.Add(1)
		p.opts.Metrics.FrameDropped(p.opts.CameraID, metrics.ReasonMonotonic)
		p.logger.Debug("Dropping out-of-order frame", "pts", f.PTS, "last_pts", *lastPTS)
		return
	}

	converted, err := p.converter.Convert(f)
	if err != nil {
		p.logger.Warn("Pixel conversion failed, dropping frame", "pts", f.PTS, "error", err)
		p.droppedInference.Add(1)
		p.opts.Metrics.FrameDropped(p.opts.CameraID, metrics.ReasonInference)
		return
	}

	if err := p.opts.Sink.Submit(converted); err != nil {
		if errors.Is(err, encode.ErrSinkFailed) {
			p.logger.Error("Encoder failed, stopping pipeline", "error", err)
			p.publishError("encode", err)
			p.running.Store(false)
			return
		}
		p.logger.Warn("Encode failed, dropping frame", "pts", f.PTS, "error", err)
		return
	}

	*lastPTS = f.PTS
	p.encoded.Add(1)
	p.opts.Metrics.FrameEncoded(p.opts.CameraID)
}

// Stop halts capture, waits for the inference and encoding loops to
// drain, flushes the encoder, and releases every outstanding frame.
// Stop is idempotent and returns every teardown error, joined.
func (p *Pipeline) Stop() error {
	prev := State(p.state.Load())
	if prev != StateRunning && prev != StateInitialized {
		if prev == StateStopped {
			return p.stopErr
		}
		return fmt.Errorf("%w: stop from %s", ErrBadTransition, prev)
	}

	p.stopOnce.Do(func() {
		p.state.Store(int32(StateStopped))
		p.running.Store(false)

		var errs []error

		// Close both queues before joining anything: a capture
		// callback blocked pushing into a full input queue, or a
		// reader blocked pushing into a full output queue, must wake
		// and fail rather than hold up shutdown.
		if p.inputQ != nil {
			p.inputQ.Close()
		}
		if p.outputQ != nil {
			p.outputQ.Close()
		}

		if err := p.opts.Source.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping capture: %w", err))
		}

		for _, future := range p.readFutures {
			if err := future.Wait(); err != nil && !errors.Is(err, worker.ErrStopped) {
				errs = append(errs, fmt.Errorf("reading loop: %w", err))
			}
		}
		if p.inputQ != nil {
			for {
				f, err := p.inputQ.Pop(0)
				if err != nil {
					break
				}
				f.Release()
				p.drained.Add(1)
				p.opts.Metrics.FrameDropped(p.opts.CameraID, metrics.ReasonDrained)
			}
		}

		if prev == StateRunning {
			<-p.encodeDone
		}

		if err := p.opts.Sink.Close(); err != nil && !errors.Is(err, encode.ErrNotOpen) {
			errs = append(errs, fmt.Errorf("closing encoder: %w", err))
		}

		if p.models != nil {
			p.models.Close()
		}
		if p.workers != nil {
			p.workers.Stop()
		}

		p.opts.Metrics.SetPipelineUp(p.opts.CameraID, false)
		p.publishState(prev, StateStopped)
		p.stopErr = errors.Join(errs...)

		s := p.Stats()
		p.logger.Info("Pipeline stopped",
			"captured", s.Captured,
			"encoded", s.Encoded,
			"dropped_inference", s.DroppedInference,
			"dropped_monotonic", s.DroppedMonotonic,
			"drained", s.Drained)
	})
	return p.stopErr
}

// Stats returns a snapshot of the pipeline's counters and queue
// depths.
func (p *Pipeline) Stats() Stats {
	s := Stats{
		SessionID:        p.sessionID,
		CameraID:         p.opts.CameraID,
		State:            p.State().String(),
		Captured:         p.captured.Load(),
		Encoded:          p.encoded.Load(),
		DroppedInference: p.droppedInference.Load(),
		DroppedMonotonic: p.droppedMonotonic.Load(),
		Drained:          p.drained.Load(),
	}
	if p.inputQ != nil {
		s.InputDepth = p.inputQ.Len()
	}
	if p.outputQ != nil {
		s.OutputDepth = p.outputQ.Len()
	}
	if p.workers != nil {
		s.Workers = p.workers.Size()
	}
	p.opts.Metrics.SetQueueDepth(p.opts.CameraID, metrics.StageInput, s.InputDepth)
	p.opts.Metrics.SetQueueDepth(p.opts.CameraID, metrics.StageOutput, s.OutputDepth)
	p.opts.Metrics.SetWorkers(p.opts.CameraID, s.Workers)
	return s
}

func (p *Pipeline) publishState(from, to State) {
	if p.opts.Bus == nil {
		return
	}
	p.opts.Bus.Publish(events.PipelineStateChangedEvent{
		SessionID: p.sessionID,
		CameraID:  p.opts.CameraID,
		From:      from.String(),
		To:        to.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (p *Pipeline) publishError(stage string, err error) {
	if p.opts.Bus == nil {
		return
	}
	p.opts.Bus.Publish(events.PipelineErrorEvent{
		SessionID: p.sessionID,
		CameraID:  p.opts.CameraID,
		Stage:     stage,
		Error:     err.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
