// Package cmd holds the cobra subcommands and the shared wiring that
// turns camera configuration into running pipelines.
package cmd

import (
	"fmt"

	"github.com/achene/infercast/internal/capture"
	"github.com/achene/infercast/internal/config"
	"github.com/achene/infercast/internal/encode"
	"github.com/achene/infercast/internal/events"
	"github.com/achene/infercast/internal/ffmpeg"
	"github.com/achene/infercast/internal/logging"
	"github.com/achene/infercast/internal/metrics"
	"github.com/achene/infercast/internal/model"
	"github.com/achene/infercast/internal/pipeline"
)

// Runtime bundles the process-wide collaborators shared by every
// pipeline.
type Runtime struct {
	Registry *model.Registry
	Bus      *events.Bus
	Metrics  *metrics.Recorder
}

// NewRuntime creates the shared collaborators.
func NewRuntime() Runtime {
	return Runtime{
		Registry: model.NewRegistry(),
		Bus:      events.New(),
		Metrics:  metrics.NewRecorder(),
	}
}

// PipelineOptions turns one camera's configuration into pipeline
// options with concrete adapters attached. Synthetic "test:" devices
// get the in-process source; everything else runs through ffmpeg.
func PipelineOptions(cam config.CameraConfig, rt Runtime) (pipeline.Options, error) {
	width, height, fps, err := cam.Geometry()
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("camera %s: %w", cam.ID, err)
	}

	var source capture.Source
	if capture.IsTestDevice(cam.Device) {
		source = capture.NewSyntheticSource(cam.ID, width, height, fps)
	} else {
		source = capture.NewFFmpegSource(cam.ID, ffmpeg.CaptureParams{
			DevicePath:  cam.Device,
			InputFormat: cam.InputFormat,
			Width:       width,
			Height:      height,
			FPS:         fps,
		}, logging.GetLogger("capture").With("camera_id", cam.ID))
	}

	sinkOpts := []encode.SinkOption{encode.WithProgressMetrics(rt.Metrics)}
	if cam.Encoder != "" {
		sinkOpts = append(sinkOpts, encode.WithEncoder(cam.Encoder))
	}
	if cam.Preset != "" {
		sinkOpts = append(sinkOpts, encode.WithPreset(cam.Preset))
	}
	sink := encode.NewFFmpegSink(cam.ID, logging.GetLogger("encode").With("camera_id", cam.ID), sinkOpts...)

	bitrate := cam.Bitrate
	if bitrate <= 0 {
		bitrate = config.DefaultBitrate
	}

	return pipeline.Options{
		CameraID: cam.ID,
		Source:   source,
		Sink:     sink,

		URL:     cam.URL,
		Width:   width,
		Height:  height,
		FPS:     fps,
		Bitrate: bitrate,

		Registry:      rt.Registry,
		ModelType:     cam.Model,
		ModelPath:     cam.ModelPath,
		ThreadCount:   cam.Threads,
		ModelPoolSize: cam.ModelPoolSize,
		QueueCapacity: cam.QueueCapacity,

		Logger:  logging.GetLogger("pipeline").With("camera_id", cam.ID),
		Bus:     rt.Bus,
		Metrics: rt.Metrics,
	}, nil
}

// PipelineOptionsForAll maps every enabled camera to pipeline options.
// A camera whose geometry cannot be resolved fails the whole call, the
// same way config validation does.
func PipelineOptionsForAll(cams []config.CameraConfig, rt Runtime) ([]pipeline.Options, error) {
	optsList := make([]pipeline.Options, 0, len(cams))
	for _, cam := range cams {
		opts, err := PipelineOptions(cam, rt)
		if err != nil {
			return nil, err
		}
		optsList = append(optsList, opts)
	}
	return optsList, nil
}
