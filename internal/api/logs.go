package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/achene/infercast/internal/api/models"
	"github.com/achene/infercast/internal/logging"
)

// registerLogRoutes registers the buffered log retrieval endpoint.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Logs",
		Description: "Return recent log entries from the in-memory ring buffer",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct {
		Module string `query:"module" example:"pipeline" doc:"Only return entries from this module"`
		Level  string `query:"level" example:"warn" doc:"Only return entries at this level"`
		Limit  int    `query:"limit" minimum:"0" example:"100" doc:"Return at most this many entries, newest kept"`
	}) (*models.LogListResponse, error) {
		entries := []models.LogEntryData{}

		buffer := logging.GetBuffer()
		if buffer != nil {
			for _, entry := range buffer.ReadAll() {
				if input.Module != "" && entry.Module != input.Module {
					continue
				}
				if input.Level != "" && entry.Level != input.Level {
					continue
				}
				entries = append(entries, models.LogEntryData{
					Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
					Level:      entry.Level,
					Module:     entry.Module,
					Message:    entry.Message,
					Attributes: entry.Attributes,
				})
			}
		}

		if input.Limit > 0 && len(entries) > input.Limit {
			entries = entries[len(entries)-input.Limit:]
		}

		return &models.LogListResponse{
			Body: models.LogListData{
				Entries: entries,
				Count:   len(entries),
			},
		}, nil
	})
}
