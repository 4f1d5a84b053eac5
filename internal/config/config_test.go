package config

import (
	"os"
	"reflect"
	"testing"
)

// TestConfig represents a test configuration structure.
type TestConfig struct {
	Config string `help:"Config file path"`

	// Basic types
	StringField string   `toml:"test.string_field" env:"STRING_FIELD"`
	BoolField   bool     `toml:"test.bool_field" env:"BOOL_FIELD"`
	IntField    int      `toml:"test.int_field" env:"INT_FIELD"`
	SliceField  []string `toml:"test.slice_field" env:"SLICE_FIELD"`

	// Nested config
	NestedString string `toml:"nested.value" env:"NESTED_VALUE"`
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "config_*.toml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	tmpFile.Close()
	return tmpFile.Name()
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeTempConfig(t, `
[test]
string_field = "hello world"
bool_field = true
int_field = 42
slice_field = ["item1", "item2", "item3"]

[nested]
value = "nested value"
`)

	config := &TestConfig{Config: path}
	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.StringField != "hello world" {
		t.Errorf("StringField = %q, want 'hello world'", config.StringField)
	}
	if !config.BoolField {
		t.Errorf("BoolField = %v, want true", config.BoolField)
	}
	if config.IntField != 42 {
		t.Errorf("IntField = %d, want 42", config.IntField)
	}
	expectedSlice := []string{"item1", "item2", "item3"}
	if !reflect.DeepEqual(config.SliceField, expectedSlice) {
		t.Errorf("SliceField = %v, want %v", config.SliceField, expectedSlice)
	}
	if config.NestedString != "nested value" {
		t.Errorf("NestedString = %q, want 'nested value'", config.NestedString)
	}
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	t.Setenv("INFERCAST_STRING_FIELD", "env string")
	t.Setenv("INFERCAST_BOOL_FIELD", "false")
	t.Setenv("INFERCAST_INT_FIELD", "123")
	t.Setenv("INFERCAST_SLICE_FIELD", "a,b,c")
	t.Setenv("INFERCAST_NESTED_VALUE", "env nested")

	config := &TestConfig{}
	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.StringField != "env string" {
		t.Errorf("StringField = %q, want 'env string'", config.StringField)
	}
	if config.BoolField {
		t.Errorf("BoolField = %v, want false", config.BoolField)
	}
	if config.IntField != 123 {
		t.Errorf("IntField = %d, want 123", config.IntField)
	}
	expectedSlice := []string{"a", "b", "c"}
	if !reflect.DeepEqual(config.SliceField, expectedSlice) {
		t.Errorf("SliceField = %v, want %v", config.SliceField, expectedSlice)
	}
	if config.NestedString != "env nested" {
		t.Errorf("NestedString = %q, want 'env nested'", config.NestedString)
	}
}

func TestLoadConfigEnvOverridesToml(t *testing.T) {
	path := writeTempConfig(t, `
[test]
string_field = "toml value"
bool_field = true
int_field = 100
slice_field = ["toml1", "toml2"]
`)

	t.Setenv("INFERCAST_STRING_FIELD", "env override")
	t.Setenv("INFERCAST_BOOL_FIELD", "false")

	config := &TestConfig{Config: path}
	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.StringField != "env override" {
		t.Errorf("StringField = %q, want 'env override'", config.StringField)
	}
	if config.BoolField {
		t.Errorf("BoolField = %v, want false (env override)", config.BoolField)
	}
	if config.IntField != 100 {
		t.Errorf("IntField = %d, want 100 (from TOML)", config.IntField)
	}
	expectedSlice := []string{"toml1", "toml2"}
	if !reflect.DeepEqual(config.SliceField, expectedSlice) {
		t.Errorf("SliceField = %v, want %v (from TOML)", config.SliceField, expectedSlice)
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"level1": map[string]any{
			"level2": map[string]any{
				"value": "nested_value",
			},
			"simple": "simple_value",
		},
		"root": "root_value",
	}

	tests := []struct {
		path     string
		expected any
	}{
		{"root", "root_value"},
		{"level1.simple", "simple_value"},
		{"level1.level2.value", "nested_value"},
		{"nonexistent", nil},
		{"level1.nonexistent", nil},
	}

	for _, test := range tests {
		if result := getNestedValue(data, test.path); result != test.expected {
			t.Errorf("getNestedValue(%q) = %v, want %v", test.path, result, test.expected)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	config := &TestConfig{Config: "nonexistent_file.toml"}
	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for missing file: %v", err)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := writeTempConfig(t, "\n[test\ninvalid toml syntax\n")
	config := &TestConfig{Config: path}
	if err := LoadConfig(config, nil); err == nil {
		t.Fatal("LoadConfig should fail for invalid TOML")
	}
}

func TestLoadLoggingModuleLevels(t *testing.T) {
	path := writeTempConfig(t, `
[logging]
level = "info"
format = "text"
pipeline = "debug"
ffmpeg = "warn"
api = "error"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "info" || cfg.Format != "text" {
		t.Errorf("base config = %s/%s, want info/text", cfg.Level, cfg.Format)
	}
	wantModules := map[string]string{"pipeline": "debug", "ffmpeg": "warn", "api": "error"}
	if !reflect.DeepEqual(cfg.Modules, wantModules) {
		t.Errorf("Modules = %v, want %v", cfg.Modules, wantModules)
	}
}

func TestLoadCameras(t *testing.T) {
	path := writeTempConfig(t, `
[[camera]]
id = "cam0"
device = "/dev/video0"
enabled = true
input_format = "yuyv422"
width = 1280
height = 720
fps = 30
model = "yolov5"
model_path = "/opt/models/yolov5s.onnx"
threads = 4
url = "rtmp://localhost/live/cam0"
bitrate = 4000000

[[camera]]
id = "synthetic"
device = "test:640x480@15"
enabled = true
url = "rtmp://localhost/live/synthetic"
`)

	cfg, err := LoadCameras(path)
	if err != nil {
		t.Fatalf("LoadCameras failed: %v", err)
	}
	if len(cfg.Cameras) != 2 {
		t.Fatalf("got %d cameras, want 2", len(cfg.Cameras))
	}

	cam := cfg.Cameras[0]
	if cam.ID != "cam0" || cam.Model != "yolov5" || cam.Threads != 4 {
		t.Errorf("cam0 parsed wrong: %+v", cam)
	}
	if cam.Bitrate != 4_000_000 {
		t.Errorf("cam0 bitrate = %d, want 4000000", cam.Bitrate)
	}

	// Omitted bitrate falls back to the default.
	if cfg.Cameras[1].Bitrate != DefaultBitrate {
		t.Errorf("synthetic bitrate = %d, want default %d", cfg.Cameras[1].Bitrate, DefaultBitrate)
	}

	w, h, fps, err := cfg.Cameras[1].Geometry()
	if err != nil {
		t.Fatalf("Geometry() error = %v", err)
	}
	if w != 640 || h != 480 || fps != 15 {
		t.Errorf("Geometry() = %dx%d@%d, want 640x480@15", w, h, fps)
	}
}

func TestLoadCamerasValidation(t *testing.T) {
	cases := []struct {
		name string
		toml string
	}{
		{"missing id", `
[[camera]]
device = "/dev/video0"
width = 640
height = 480
fps = 30
url = "rtmp://x/y"
`},
		{"missing device", `
[[camera]]
id = "cam0"
url = "rtmp://x/y"
`},
		{"bad device", `
[[camera]]
id = "cam0"
device = "video0"
url = "rtmp://x/y"
`},
		{"missing geometry", `
[[camera]]
id = "cam0"
device = "/dev/video0"
url = "rtmp://x/y"
`},
		{"missing url", `
[[camera]]
id = "cam0"
device = "test:640x480@15"
`},
		{"duplicate id", `
[[camera]]
id = "cam0"
device = "test:640x480@15"
url = "rtmp://x/a"

[[camera]]
id = "cam0"
device = "test:640x480@15"
url = "rtmp://x/b"
`},
		{"no cameras", ``},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempConfig(t, tc.toml)
			if _, err := LoadCameras(path); err == nil {
				t.Error("LoadCameras() = nil error, want validation failure")
			}
		})
	}
}

func TestCamerasEnabled(t *testing.T) {
	off := false
	on := true
	cfg := &CamerasConfig{Cameras: []CameraConfig{
		{ID: "a", Enabled: &on},
		{ID: "b", Enabled: &off},
		{ID: "c"}, // absent key means enabled
	}}
	enabled := cfg.Enabled()
	if len(enabled) != 2 || enabled[0].ID != "a" || enabled[1].ID != "c" {
		t.Errorf("Enabled() = %+v, want cameras a and c", enabled)
	}
}
