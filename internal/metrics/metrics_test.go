package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, r *Recorder) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)
	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatalf("reading scrape body: %v", err)
	}
	return string(body)
}

func TestRecorderExportsPipelineSeries(t *testing.T) {
	r := NewRecorder()
	r.FrameCaptured("cam0")
	r.FrameEncoded("cam0")
	r.FrameDropped("cam0", ReasonInference)
	r.SetQueueDepth("cam0", StageInput, 3)
	r.SetWorkers("cam0", 4)
	r.SetPipelineUp("cam0", true)

	body := scrape(t, r)
	for _, want := range []string{
		`infercast_frames_captured_total{camera="cam0"} 1`,
		`infercast_frames_encoded_total{camera="cam0"} 1`,
		`infercast_frames_dropped_total{camera="cam0",reason="inference"} 1`,
		`infercast_queue_depth{camera="cam0",stage="input"} 3`,
		`infercast_workers{camera="cam0"} 4`,
		`infercast_pipeline_up{camera="cam0"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestRecorderEncoderProgress(t *testing.T) {
	r := NewRecorder()

	if _, ok := r.EncoderProgressFor("cam0"); ok {
		t.Error("EncoderProgressFor before any publish should report absent")
	}

	p := EncoderProgress{Frame: 90, FPS: 30, BitrateKbps: 1200, OutputBytes: 4096, DupFrames: 1, DropFrames: 2, Speed: 1.0}
	r.SetEncoderProgress("cam0", p)

	got, ok := r.EncoderProgressFor("cam0")
	if !ok || got != p {
		t.Errorf("EncoderProgressFor() = %+v, %v, want %+v", got, ok, p)
	}

	body := scrape(t, r)
	for _, want := range []string{
		`infercast_encoder_frame_number{camera="cam0"} 90`,
		`infercast_encoder_fps{camera="cam0"} 30`,
		`infercast_encoder_bitrate_kbps{camera="cam0"} 1200`,
		`infercast_encoder_output_bytes{camera="cam0"} 4096`,
		`infercast_encoder_duplicate_frames{camera="cam0"} 1`,
		`infercast_encoder_dropped_frames{camera="cam0"} 2`,
		`infercast_encoder_speed{camera="cam0"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}

	r.ClearEncoderProgress("cam0")
	if _, ok := r.EncoderProgressFor("cam0"); ok {
		t.Error("EncoderProgressFor after clear should report absent")
	}
	if body := scrape(t, r); strings.Contains(body, `infercast_encoder_fps{camera="cam0"}`) {
		t.Error("cleared camera still exports encoder series")
	}
}

func TestNilRecorderIsInert(t *testing.T) {
	var r *Recorder
	r.FrameCaptured("cam0")
	r.FrameEncoded("cam0")
	r.FrameDropped("cam0", ReasonDrained)
	r.SetQueueDepth("cam0", StageOutput, 1)
	r.SetWorkers("cam0", 2)
	r.SetPipelineUp("cam0", false)
	r.SetEncoderProgress("cam0", EncoderProgress{FPS: 30})
	r.ClearEncoderProgress("cam0")
	if _, ok := r.EncoderProgressFor("cam0"); ok {
		t.Error("nil recorder should report no progress")
	}
}
