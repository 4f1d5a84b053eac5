package api

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/achene/infercast/internal/pipeline"
)

func newTestServer(t *testing.T, username, password string) *Server {
	t.Helper()
	return NewServer(&Options{
		AuthUsername: username,
		AuthPassword: password,
		Manager:      pipeline.NewManager(slog.New(slog.NewTextHandler(io.Discard, nil))),
	})
}

func doRequest(t *testing.T, s *Server, method, path, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	s.GetMux().ServeHTTP(rec, req)
	return rec
}

func basicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func TestHealthEndpointNoAuth(t *testing.T) {
	s := newTestServer(t, "admin", "secret")

	rec := doRequest(t, s, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal health response: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
}

func TestVersionEndpointNoAuth(t *testing.T) {
	s := newTestServer(t, "admin", "secret")

	rec := doRequest(t, s, http.MethodGet, "/api/version", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("version status = %d, want 200", rec.Code)
	}

	var body struct {
		Version  string `json:"version"`
		Platform string `json:"platform"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal version response: %v", err)
	}
	if body.Version == "" || body.Platform == "" {
		t.Errorf("version response incomplete: %+v", body)
	}
}

func TestPipelinesRequireAuth(t *testing.T) {
	s := newTestServer(t, "admin", "secret")

	rec := doRequest(t, s, http.MethodGet, "/api/pipelines", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header on 401")
	}

	rec = doRequest(t, s, http.MethodGet, "/api/pipelines", basicAuth("admin", "wrong"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d, want 401", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/pipelines", basicAuth("admin", "secret"))
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d, want 200", rec.Code)
	}

	var body struct {
		Pipelines []pipeline.Stats `json:"pipelines"`
		Count     int              `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal pipelines response: %v", err)
	}
	if body.Count != 0 || len(body.Pipelines) != 0 {
		t.Errorf("expected empty pipeline list, got %+v", body)
	}
}

func TestPipelinesNoAuthConfigured(t *testing.T) {
	s := newTestServer(t, "", "")

	rec := doRequest(t, s, http.MethodGet, "/api/pipelines", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 when auth is disabled", rec.Code)
	}
}

func TestGetPipelineNotFound(t *testing.T) {
	s := newTestServer(t, "", "")

	rec := doRequest(t, s, http.MethodGet, "/api/pipelines/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestLogsEndpoint(t *testing.T) {
	s := newTestServer(t, "", "")

	rec := doRequest(t, s, http.MethodGet, "/api/logs?limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("logs status = %d, want 200", rec.Code)
	}

	var body struct {
		Entries []any `json:"entries"`
		Count   int   `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal logs response: %v", err)
	}
	if body.Count != len(body.Entries) {
		t.Errorf("count %d does not match entries %d", body.Count, len(body.Entries))
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, "admin", "secret")

	rec := doRequest(t, s, http.MethodOptions, "/api/pipelines", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS allow-origin header on preflight")
	}
}
