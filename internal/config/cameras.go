package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/achene/infercast/internal/capture"
)

// CameraConfig describes one camera's capture, inference, and stream
// settings. Every field failing validation is fatal at startup; a
// half-configured camera silently dropping frames is worse than a
// refused boot.
type CameraConfig struct {
	ID     string `toml:"id" json:"id"`
	Device string `toml:"device" json:"device"` // /dev/videoN or test:<w>x<h>@<fps>
	// Enabled defaults to true when the key is absent.
	Enabled *bool `toml:"enabled,omitempty" json:"enabled,omitempty"`

	// Capture settings
	InputFormat string `toml:"input_format,omitempty" json:"input_format,omitempty"` // v4l2 format: yuyv422, mjpeg
	Width       int    `toml:"width" json:"width"`
	Height      int    `toml:"height" json:"height"`
	FPS         int    `toml:"fps" json:"fps"`

	// Inference settings
	Model         string `toml:"model,omitempty" json:"model,omitempty"` // test, yolov5
	ModelPath     string `toml:"model_path,omitempty" json:"model_path,omitempty"`
	Threads       int    `toml:"threads,omitempty" json:"threads,omitempty"`
	ModelPoolSize int    `toml:"model_pool_size,omitempty" json:"model_pool_size,omitempty"`
	QueueCapacity int    `toml:"queue_capacity,omitempty" json:"queue_capacity,omitempty"`

	// Stream output settings
	URL     string `toml:"url" json:"url"`
	Bitrate int    `toml:"bitrate,omitempty" json:"bitrate,omitempty"`
	Encoder string `toml:"encoder,omitempty" json:"encoder,omitempty"`
	Preset  string `toml:"preset,omitempty" json:"preset,omitempty"`
}

// CamerasConfig is the root of the cameras TOML file.
type CamerasConfig struct {
	Cameras []CameraConfig `toml:"camera" json:"cameras"`
}

// DefaultBitrate is used when a camera omits bitrate.
const DefaultBitrate = 2_000_000

// Validate checks one camera entry. All errors are collected so the
// operator sees every problem in one run.
func (c *CameraConfig) Validate() error {
	var errs []error

	if c.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if strings.ContainsAny(c.ID, " /\\") {
		errs = append(errs, fmt.Errorf("id %q must not contain spaces or slashes", c.ID))
	}

	switch {
	case c.Device == "":
		errs = append(errs, errors.New("device is required"))
	case capture.IsTestDevice(c.Device):
		// Geometry comes from the device string itself.
	case strings.HasPrefix(c.Device, "/dev/"):
		if c.Width <= 0 || c.Height <= 0 {
			errs = append(errs, fmt.Errorf("device %s requires positive width and height, got %dx%d", c.Device, c.Width, c.Height))
		}
		if c.FPS <= 0 {
			errs = append(errs, fmt.Errorf("device %s requires positive fps, got %d", c.Device, c.FPS))
		}
	default:
		errs = append(errs, fmt.Errorf("device %q is neither a /dev path nor test:<w>x<h>@<fps>", c.Device))
	}

	if c.URL == "" {
		errs = append(errs, errors.New("url is required"))
	}
	if c.Bitrate < 0 {
		errs = append(errs, fmt.Errorf("bitrate must be non-negative, got %d", c.Bitrate))
	}
	if c.Threads < 0 {
		errs = append(errs, fmt.Errorf("threads must be non-negative, got %d", c.Threads))
	}
	if c.ModelPoolSize < 0 {
		errs = append(errs, fmt.Errorf("model_pool_size must be non-negative, got %d", c.ModelPoolSize))
	}
	if c.QueueCapacity < 0 {
		errs = append(errs, fmt.Errorf("queue_capacity must be non-negative, got %d", c.QueueCapacity))
	}

	return errors.Join(errs...)
}

// Geometry resolves the camera's capture geometry, reading it from the
// device string for synthetic sources.
func (c *CameraConfig) Geometry() (width, height, fps int, err error) {
	if capture.IsTestDevice(c.Device) {
		return capture.ParseTestDevice(c.Device)
	}
	return c.Width, c.Height, c.FPS, nil
}

// LoadCameras reads and validates the cameras TOML file. Any invalid
// camera fails the whole load.
func LoadCameras(path string) (*CamerasConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cameras config: %w", err)
	}

	var cfg CamerasConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse cameras config: %w", err)
	}

	if len(cfg.Cameras) == 0 {
		return nil, fmt.Errorf("cameras config %s defines no [[camera]] entries", path)
	}

	seen := make(map[string]bool)
	var errs []error
	for i := range cfg.Cameras {
		cam := &cfg.Cameras[i]
		if err := cam.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("camera %d (%s): %w", i, cam.ID, err))
			continue
		}
		if seen[cam.ID] {
			errs = append(errs, fmt.Errorf("camera %d: duplicate id %q", i, cam.ID))
		}
		seen[cam.ID] = true

		if cam.Bitrate == 0 {
			cam.Bitrate = DefaultBitrate
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return &cfg, nil
}

// IsEnabled reports whether the camera should get a pipeline. Cameras
// are enabled unless explicitly switched off.
func (c *CameraConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Enabled returns the cameras that should get a pipeline.
func (c *CamerasConfig) Enabled() []CameraConfig {
	var out []CameraConfig
	for _, cam := range c.Cameras {
		if cam.IsEnabled() {
			out = append(out, cam)
		}
	}
	return out
}
