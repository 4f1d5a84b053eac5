package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/achene/infercast/internal/events"
)

// registerEventRoutes registers the native Huma SSE endpoint.
func (s *Server) registerEventRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time event stream for pipeline state changes, stage errors, and config reloads",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"pipeline-state-changed": events.PipelineStateChangedEvent{},
		"pipeline-error":         events.PipelineErrorEvent{},
		"capture-error":          events.CaptureErrorEvent{},
		"encoder-error":          events.EncoderErrorEvent{},
		"config-reloaded":        events.ConfigReloadedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		if s.bus == nil {
			return
		}

		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.PipelineStateChangedEvent](s.bus, eventCh),
			events.SubscribeToChannel[events.PipelineErrorEvent](s.bus, eventCh),
			events.SubscribeToChannel[events.CaptureErrorEvent](s.bus, eventCh),
			events.SubscribeToChannel[events.EncoderErrorEvent](s.bus, eventCh),
			events.SubscribeToChannel[events.ConfigReloadedEvent](s.bus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
