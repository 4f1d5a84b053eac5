package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/achene/infercast/internal/api/models"
	"github.com/achene/infercast/internal/pipeline"
)

// registerPipelineRoutes registers the pipeline status endpoints.
func (s *Server) registerPipelineRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-pipelines",
		Method:      http.MethodGet,
		Path:        "/api/pipelines",
		Summary:     "Pipelines",
		Description: "Snapshot frame accounting for every managed pipeline",
		Tags:        []string{"pipelines"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.PipelineListResponse, error) {
		var stats []pipeline.Stats
		running := 0
		if s.manager != nil {
			stats = s.manager.Stats()
			running = s.manager.Running()
		}
		if stats == nil {
			stats = []pipeline.Stats{}
		}

		return &models.PipelineListResponse{
			Body: models.PipelineListData{
				Pipelines: stats,
				Count:     len(stats),
				Running:   running,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-pipeline",
		Method:      http.MethodGet,
		Path:        "/api/pipelines/{camera_id}",
		Summary:     "Pipeline",
		Description: "Snapshot frame accounting for one camera's pipeline",
		Tags:        []string{"pipelines"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *struct {
		CameraID string `path:"camera_id" example:"cam0" doc:"Camera identifier"`
	}) (*struct{ Body pipeline.Stats }, error) {
		if s.manager != nil {
			for _, st := range s.manager.Stats() {
				if st.CameraID == input.CameraID {
					return &struct{ Body pipeline.Stats }{Body: st}, nil
				}
			}
		}
		return nil, huma.Error404NotFound("no pipeline for camera " + input.CameraID)
	})
}
