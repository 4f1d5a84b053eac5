package events

// Event type constants for kelindar/event.
const (
	TypePipelineStateChanged uint32 = iota + 1
	TypePipelineError
	TypeCaptureError
	TypeEncoderError
	TypeConfigReloaded
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// PipelineStateChangedEvent is published on every pipeline state
// transition.
type PipelineStateChangedEvent struct {
	SessionID string `json:"session_id" doc:"Unique pipeline session identifier"`
	CameraID  string `json:"camera_id" example:"cam0" doc:"Camera this pipeline serves"`
	From      string `json:"from" example:"initialized" doc:"Previous state"`
	To        string `json:"to" example:"running" doc:"New state"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Transition timestamp"`
}

// Type returns the event type identifier for PipelineStateChangedEvent.
func (e PipelineStateChangedEvent) Type() uint32 { return TypePipelineStateChanged }

// PipelineErrorEvent is published when a pipeline hits a fatal error.
type PipelineErrorEvent struct {
	SessionID string `json:"session_id" doc:"Unique pipeline session identifier"`
	CameraID  string `json:"camera_id" example:"cam0" doc:"Camera this pipeline serves"`
	Stage     string `json:"stage" example:"encode" doc:"Stage the error originated in"`
	Error     string `json:"error" doc:"Error description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Error timestamp"`
}

// Type returns the event type identifier for PipelineErrorEvent.
func (e PipelineErrorEvent) Type() uint32 { return TypePipelineError }

// CaptureErrorEvent reports a capture source failure.
type CaptureErrorEvent struct {
	CameraID  string `json:"camera_id" example:"cam0" doc:"Camera the source serves"`
	Device    string `json:"device" example:"/dev/video0" doc:"Capture device"`
	Error     string `json:"error" doc:"Error description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Error timestamp"`
}

// Type returns the event type identifier for CaptureErrorEvent.
func (e CaptureErrorEvent) Type() uint32 { return TypeCaptureError }

// EncoderErrorEvent reports an encoder or mux failure.
type EncoderErrorEvent struct {
	CameraID  string `json:"camera_id" example:"cam0" doc:"Camera the encoder serves"`
	URL       string `json:"url" example:"rtmp://host/live/cam0" doc:"Streaming destination"`
	Error     string `json:"error" doc:"Error description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Error timestamp"`
}

// Type returns the event type identifier for EncoderErrorEvent.
func (e EncoderErrorEvent) Type() uint32 { return TypeEncoderError }

// ConfigReloadedEvent is published after the camera configuration file
// changes on disk and reloads successfully.
type ConfigReloadedEvent struct {
	Path      string `json:"path" example:"cameras.toml" doc:"Configuration file path"`
	Cameras   int    `json:"cameras" example:"2" doc:"Number of configured cameras"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Reload timestamp"`
}

// Type returns the event type identifier for ConfigReloadedEvent.
func (e ConfigReloadedEvent) Type() uint32 { return TypeConfigReloaded }
