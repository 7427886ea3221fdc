package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/xpathnode/internal/api/models"
	"github.com/smazurov/xpathnode/internal/events"
)

// registerSSERoutes registers the capture event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time capture session events. The current status is sent first.",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"capture-status":    models.CaptureStatusData{},
		"capture-started":   events.CaptureStartedEvent{},
		"capture-stopped":   events.CaptureStoppedEvent{},
		"capture-failed":    events.CaptureFailedEvent{},
		"capture-exited":    events.CaptureExitedEvent{},
		"protected-process": events.ProtectedProcessEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 10)
		unsubscribe := events.SubscribeCaptureEvents(s.eventBus, eventCh)
		defer unsubscribe()

		// Subscribe before the snapshot so no transition falls between them
		st := s.session.Status(ctx)
		if err := send.Data(models.CaptureStatusData{
			Active:    st.Active,
			Running:   st.Running,
			Stopping:  st.Stopping,
			SessionID: st.SessionID,
			PID:       st.PID,
		}); err != nil {
			return
		}

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
