package main

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/achene/infercast/cmd"
	"github.com/achene/infercast/internal/api"
	"github.com/achene/infercast/internal/config"
	"github.com/achene/infercast/internal/events"
	"github.com/achene/infercast/internal/logging"
	"github.com/achene/infercast/internal/monitoring"
	"github.com/achene/infercast/internal/pipeline"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Status API listen address" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Camera settings
	CamerasFile string `help:"Camera definitions file" default:"cameras.toml" toml:"cameras.config_file" env:"CAMERAS_CONFIG_FILE"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			os.Stderr.WriteString("failed to load config: " + loadErr.Error() + "\n")
			os.Exit(1)
		}

		// Per-module level overrides come from the [logging] table; the
		// flat options carry the global level and format.
		loggingConfig := config.LoadLoggingConfig(opts.Config)
		loggingConfig.Level = opts.LoggingLevel
		loggingConfig.Format = opts.LoggingFormat
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")

		camerasConfig, err := config.LoadCameras(opts.CamerasFile)
		if err != nil {
			logger.Error("Invalid cameras configuration", "path", opts.CamerasFile, "error", err)
			os.Exit(1)
		}

		rt := cmd.NewRuntime()
		manager := pipeline.NewManager(logger)

		optsList, err := cmd.PipelineOptionsForAll(camerasConfig.Enabled(), rt)
		if err != nil {
			logger.Error("Invalid cameras configuration", "path", opts.CamerasFile, "error", err)
			os.Exit(1)
		}

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Manager:           manager,
			Bus:               rt.Bus,
			PrometheusHandler: rt.Metrics.Handler(),
		})

		reporter := monitoring.NewReporter(manager, logging.GetLogger("status"), monitoring.WithMetrics(rt.Metrics))

		// Edits to the cameras file restart the whole pipeline set with
		// the fresh definitions. A file that no longer validates keeps
		// the running set untouched.
		watcher := config.NewConfigWatcher(
			opts.CamerasFile,
			config.LoadCameras,
			logger,
		)
		watcher.OnReload(func(fresh *config.CamerasConfig) {
			freshOpts, buildErr := cmd.PipelineOptionsForAll(fresh.Enabled(), rt)
			if buildErr != nil {
				logger.Warn("Reloaded cameras configuration is invalid, keeping current pipelines", "error", buildErr)
				return
			}

			logger.Info("Cameras configuration changed, restarting pipelines", "cameras", len(freshOpts))
			if stopErr := manager.StopAll(); stopErr != nil {
				logger.Error("Error stopping pipelines during reload", "error", stopErr)
			}
			if startErr := manager.StartAll(freshOpts); startErr != nil {
				logger.Error("No pipeline survived the reload", "error", startErr)
			}

			rt.Bus.Publish(events.ConfigReloadedEvent{
				Path:      opts.CamerasFile,
				Cameras:   len(freshOpts),
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
		})

		hooks.OnStart(func() {
			if startErr := manager.StartAll(optsList); startErr != nil {
				logger.Error("No pipeline could be started", "error", startErr)
				os.Exit(1)
			}

			reporter.Start()

			if watchErr := watcher.Start(); watchErr != nil {
				logger.Warn("Config watcher failed to start, hot-reload disabled", "error", watchErr)
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			_ = watcher.Stop()
			reporter.Stop()
			if stopErr := manager.StopAll(); stopErr != nil {
				logger.Error("Error stopping pipelines", "error", stopErr)
			}
		})
	})

	cli.Root().AddCommand(cmd.CreateStreamCmd())
	cli.Root().AddCommand(cmd.CreateValidateCmd())
	cli.Root().AddCommand(cmd.CreateEncodersCmd())

	cli.Run()
}
