// Package monitoring reports periodic runtime status for the managed
// pipelines and the process itself.
package monitoring

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/achene/infercast/internal/metrics"
	"github.com/achene/infercast/internal/pipeline"
)

// DefaultInterval is the reporting period when none is configured.
const DefaultInterval = time.Second

// Reporter logs a status line for every managed pipeline once per
// interval, along with process CPU and memory usage.
type Reporter struct {
	manager  *pipeline.Manager
	logger   *slog.Logger
	interval time.Duration
	metrics  *metrics.Recorder

	self *process.Process

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

// ReporterOption tunes a Reporter.
type ReporterOption func(*Reporter)

// WithInterval overrides the reporting period.
func WithInterval(d time.Duration) ReporterOption {
	return func(r *Reporter) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithMetrics adds the encoder's progress figures to each camera's
// status line.
func WithMetrics(rec *metrics.Recorder) ReporterOption {
	return func(r *Reporter) { r.metrics = rec }
}

// NewReporter creates a reporter for the given manager.
func NewReporter(manager *pipeline.Manager, logger *slog.Logger, opts ...ReporterOption) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reporter{
		manager:  manager,
		logger:   logger,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	// Self-inspection is best effort; status lines simply omit CPU and
	// RSS when the handle is unavailable.
	if self, err := process.NewProcess(int32(os.Getpid())); err == nil {
		r.self = self
	}
	return r
}

// Start begins periodic reporting. Calling Start on a running reporter
// is a no-op.
func (r *Reporter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	go r.run(r.stopCh, r.doneCh)
}

// Stop halts reporting and waits for the loop to exit.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	close(stopCh)
	<-doneCh
}

func (r *Reporter) run(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *Reporter) report() {
	for _, st := range r.manager.Stats() {
		attrs := []any{
			"camera_id", st.CameraID,
			"state", st.State,
			"captured", st.Captured,
			"encoded", st.Encoded,
			"dropped_inference", st.DroppedInference,
			"dropped_monotonic", st.DroppedMonotonic,
			"drained", st.Drained,
			"input_depth", st.InputDepth,
			"output_depth", st.OutputDepth,
			"workers", st.Workers,
		}
		if p, ok := r.metrics.EncoderProgressFor(st.CameraID); ok {
			attrs = append(attrs, "encoder_fps", p.FPS, "encoder_speed", p.Speed)
		}
		r.logger.Info("Pipeline status", attrs...)
	}

	if r.self == nil {
		return
	}
	attrs := make([]any, 0, 4)
	if cpuPercent, err := r.self.CPUPercent(); err == nil {
		attrs = append(attrs, "cpu_percent", cpuPercent)
	}
	if memInfo, err := r.self.MemoryInfo(); err == nil && memInfo != nil {
		attrs = append(attrs, "rss_bytes", memInfo.RSS)
	}
	if len(attrs) > 0 {
		attrs = append(attrs, "pipelines_running", r.manager.Running())
		r.logger.Debug("Process status", attrs...)
	}
}
