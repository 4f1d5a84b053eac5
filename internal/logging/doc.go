// Package logging provides structured logging with per-module log
// level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output
// routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Mirrors every record into a ring buffer served by the status API
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"pipeline": "debug", // Per-module overrides
//			"api":      "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("pipeline")
//	logger.Info("Starting up", "camera_id", id)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("pipeline").With("camera_id", id)
//	logger.Info("Pipeline started") // Includes camera_id in all logs
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t infercast              # All infercast logs
//	journalctl -t infercast -f           # Follow live
//	journalctl -t infercast -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t infercast MODULE=pipeline
//	journalctl -t infercast CAMERA_ID=cam0
//
// # Configuration
//
// Log levels can be set globally or per-module in the TOML config.
// Module-specific levels override the global level for that module
// only:
//
//	[logging]
//	level = "info"
//	format = "text"
//	pipeline = "debug"
//	ffmpeg = "warn"
package logging
