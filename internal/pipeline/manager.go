package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrAllPipelinesFailed is returned by Manager.StartAll when no
// configured pipeline could be initialized.
var ErrAllPipelinesFailed = errors.New("pipeline: all pipelines failed to start")

// Manager owns one pipeline per configured camera. A single camera
// failing to come up does not take the others down.
type Manager struct {
	logger *slog.Logger

	mu        sync.Mutex
	pipelines []*Pipeline
}

// NewManager creates an empty manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// StartAll creates, initializes, and starts a pipeline for each
// options set. Per-camera failures are logged and skipped; the error
// is non-nil only when every camera failed.
func (m *Manager) StartAll(optsList []Options) error {
	if len(optsList) == 0 {
		return errors.New("pipeline: no cameras configured")
	}

	started := 0
	for _, opts := range optsList {
		p, err := New(opts)
		if err != nil {
			m.logger.Error("Invalid pipeline configuration", "camera_id", opts.CameraID, "error", err)
			continue
		}
		if err := p.Initialize(); err != nil {
			m.logger.Error("Pipeline initialization failed", "camera_id", opts.CameraID, "error", err)
			p.Stop()
			continue
		}
		if err := p.Start(); err != nil {
			m.logger.Error("Pipeline start failed", "camera_id", opts.CameraID, "error", err)
			p.Stop()
			continue
		}

		m.mu.Lock()
		m.pipelines = append(m.pipelines, p)
		m.mu.Unlock()
		started++
	}

	if started == 0 {
		return fmt.Errorf("%w: %d configured", ErrAllPipelinesFailed, len(optsList))
	}
	return nil
}

// StopAll stops every managed pipeline and clears the set. Errors are
// joined; stopping continues past failures.
func (m *Manager) StopAll() error {
	m.mu.Lock()
	pipelines := m.pipelines
	m.pipelines = nil
	m.mu.Unlock()

	var errs []error
	for _, p := range pipelines {
		if err := p.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("camera %s: %w", p.opts.CameraID, err))
		}
	}
	return errors.Join(errs...)
}

// Stats snapshots every managed pipeline.
func (m *Manager) Stats() []Stats {
	m.mu.Lock()
	pipelines := make([]*Pipeline, len(m.pipelines))
	copy(pipelines, m.pipelines)
	m.mu.Unlock()

	stats := make([]Stats, 0, len(pipelines))
	for _, p := range pipelines {
		stats = append(stats, p.Stats())
	}
	return stats
}

// Running returns the number of pipelines currently in the running
// state.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.pipelines {
		if p.State() == StateRunning {
			n++
		}
	}
	return n
}
