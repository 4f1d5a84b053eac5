package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/achene/infercast/internal/config"
	"github.com/achene/infercast/internal/logging"
	"github.com/achene/infercast/internal/monitoring"
	"github.com/achene/infercast/internal/pipeline"
)

// CreateStreamCmd creates the stream command: one camera pipeline built
// from flags, no config file, runs until interrupted.
func CreateStreamCmd() *cobra.Command {
	cam := config.CameraConfig{
		ID:      "cam0",
		Model:   "test",
		Bitrate: config.DefaultBitrate,
	}
	var logLevel string
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Run a single camera pipeline",
		Long: `Runs one capture-inference-encode pipeline from flags without a ` +
			`configuration file. Streams until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			loggingConfig := logging.Config{
				Level:  logLevel,
				Format: "text",
			}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("stream").With("camera_id", cam.ID)

			if err := cam.Validate(); err != nil {
				logger.Error("Invalid camera parameters", "error", err)
				os.Exit(1)
			}

			rt := NewRuntime()
			opts, err := PipelineOptions(cam, rt)
			if err != nil {
				logger.Error("Invalid camera parameters", "error", err)
				os.Exit(1)
			}

			manager := pipeline.NewManager(logger)
			if err := manager.StartAll([]pipeline.Options{opts}); err != nil {
				logger.Error("Pipeline failed to start", "error", err)
				os.Exit(1)
			}

			reporter := monitoring.NewReporter(manager, logging.GetLogger("status"), monitoring.WithMetrics(rt.Metrics))
			reporter.Start()

			logger.Info("Streaming", "device", cam.Device, "url", cam.URL)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			sig := <-sigCh
			logger.Info("Shutting down", "signal", sig.String())

			reporter.Stop()
			if err := manager.StopAll(); err != nil {
				logger.Error("Shutdown finished with errors", "error", err)
				os.Exit(1)
			}
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cam.ID, "camera-id", cam.ID, "Camera identifier stamped into logs and metrics")
	flags.StringVar(&cam.Device, "device", "", "Capture device path or test:<w>x<h>@<fps>")
	flags.StringVar(&cam.InputFormat, "input-format", "", "V4L2 input format passed to ffmpeg")
	flags.IntVar(&cam.Width, "width", 0, "Frame width (required for real devices)")
	flags.IntVar(&cam.Height, "height", 0, "Frame height (required for real devices)")
	flags.IntVar(&cam.FPS, "fps", 0, "Capture frame rate (required for real devices)")
	flags.StringVar(&cam.URL, "url", "", "RTMP output URL")
	flags.IntVar(&cam.Bitrate, "bitrate", cam.Bitrate, "Encoder bitrate in bits per second")
	flags.StringVar(&cam.Encoder, "encoder", "", "Encoder override (e.g. libx264, h264_vaapi)")
	flags.StringVar(&cam.Preset, "preset", "", "Encoder preset for software encoders")
	flags.StringVar(&cam.Model, "model", cam.Model, "Inference model type")
	flags.StringVar(&cam.ModelPath, "model-path", "", "Path to model weights")
	flags.IntVar(&cam.Threads, "threads", 0, "Inference reader count")
	flags.IntVar(&cam.ModelPoolSize, "model-pool-size", 0, "Model instances (defaults to threads)")
	flags.IntVar(&cam.QueueCapacity, "queue-capacity", 0, "Bounded queue capacity")
	flags.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	_ = cmd.MarkFlagRequired("device")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}
