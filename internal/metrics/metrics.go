// Package metrics exposes Prometheus instrumentation for the frame
// pipeline: conservation counters per camera, queue depth gauges, and
// worker pool gauges.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons recorded on frames_dropped_total.
const (
	ReasonInference = "inference"
	ReasonMonotonic = "monotonic"
	ReasonDrained   = "drained"
)

// Queue stage labels for the depth gauge.
const (
	StageInput  = "input"
	StageOutput = "output"
)

// Recorder owns the pipeline metric vectors. A nil Recorder is valid
// and records nothing, so instrumentation call sites need no guards.
type Recorder struct {
	registry *prometheus.Registry

	framesCaptured *prometheus.CounterVec
	framesEncoded  *prometheus.CounterVec
	framesDropped  *prometheus.CounterVec
	queueDepth     *prometheus.GaugeVec
	workers        *prometheus.GaugeVec
	pipelineUp     *prometheus.GaugeVec

	encoderFrame      *prometheus.GaugeVec
	encoderFPS        *prometheus.GaugeVec
	encoderBitrate    *prometheus.GaugeVec
	encoderOutBytes   *prometheus.GaugeVec
	encoderDupFrames  *prometheus.GaugeVec
	encoderDropFrames *prometheus.GaugeVec
	encoderSpeed      *prometheus.GaugeVec

	progressMu sync.RWMutex
	progress   map[string]EncoderProgress
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		framesCaptured: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "infercast_frames_captured_total",
			Help: "Frames delivered by the capture source",
		}, []string{"camera"}),
		framesEncoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "infercast_frames_encoded_total",
			Help: "Frames submitted to the encoder",
		}, []string{"camera"}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "infercast_frames_dropped_total",
			Help: "Frames dropped, by reason",
		}, []string{"camera", "reason"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "infercast_queue_depth",
			Help: "Current depth of pipeline queues",
		}, []string{"camera", "stage"}),
		workers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "infercast_workers",
			Help: "Current worker pool size",
		}, []string{"camera"}),
		pipelineUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "infercast_pipeline_up",
			Help: "1 while the pipeline is running",
		}, []string{"camera"}),
		encoderFrame: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "infercast_encoder_frame_number",
			Help: "Latest frame number reported by the encoder child",
		}, []string{"camera"}),
		encoderFPS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "infercast_encoder_fps",
			Help: "Current encoding rate reported by the encoder child",
		}, []string{"camera"}),
		encoderBitrate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "infercast_encoder_bitrate_kbps",
			Help: "Current output bitrate reported by the encoder child",
		}, []string{"camera"}),
		encoderOutBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "infercast_encoder_output_bytes",
			Help: "Total bytes written by the encoder child",
		}, []string{"camera"}),
		encoderDupFrames: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "infercast_encoder_duplicate_frames",
			Help: "Frames the encoder child duplicated to hold the rate",
		}, []string{"camera"}),
		encoderDropFrames: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "infercast_encoder_dropped_frames",
			Help: "Frames the encoder child dropped to hold the rate",
		}, []string{"camera"}),
		encoderSpeed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "infercast_encoder_speed",
			Help: "Encoder throughput as a multiple of real time",
		}, []string{"camera"}),
		progress: make(map[string]EncoderProgress),
	}

	r.registry.MustRegister(
		r.framesCaptured,
		r.framesEncoded,
		r.framesDropped,
		r.queueDepth,
		r.workers,
		r.pipelineUp,
		r.encoderFrame,
		r.encoderFPS,
		r.encoderBitrate,
		r.encoderOutBytes,
		r.encoderDupFrames,
		r.encoderDropFrames,
		r.encoderSpeed,
	)
	return r
}

// Handler returns the promhttp handler for this recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// FrameCaptured counts one captured frame.
func (r *Recorder) FrameCaptured(camera string) {
	if r == nil {
		return
	}
	r.framesCaptured.WithLabelValues(camera).Inc()
}

// FrameEncoded counts one frame submitted to the encoder.
func (r *Recorder) FrameEncoded(camera string) {
	if r == nil {
		return
	}
	r.framesEncoded.WithLabelValues(camera).Inc()
}

// FrameDropped counts one dropped frame with its reason.
func (r *Recorder) FrameDropped(camera, reason string) {
	if r == nil {
		return
	}
	r.framesDropped.WithLabelValues(camera, reason).Inc()
}

// SetQueueDepth records the current depth of a pipeline queue.
func (r *Recorder) SetQueueDepth(camera, stage string, depth int) {
	if r == nil {
		return
	}
	r.queueDepth.WithLabelValues(camera, stage).Set(float64(depth))
}

// SetWorkers records the current worker pool size.
func (r *Recorder) SetWorkers(camera string, n int) {
	if r == nil {
		return
	}
	r.workers.WithLabelValues(camera).Set(float64(n))
}

// SetPipelineUp flags whether the camera's pipeline is running.
func (r *Recorder) SetPipelineUp(camera string, up bool) {
	if r == nil {
		return
	}
	v := 0.0
	if up {
		v = 1.0
	}
	r.pipelineUp.WithLabelValues(camera).Set(v)
}
