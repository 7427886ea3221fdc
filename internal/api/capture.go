package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/xpathnode/internal/api/models"
	"github.com/smazurov/xpathnode/internal/session"
)

// registerCaptureRoutes registers the capture session control endpoints.
// Start, stop and current URL report failures in the body with HTTP 200 so
// the UI can show the message as is.
func (s *Server) registerCaptureRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "start-capture",
		Method:      http.MethodPost,
		Path:        "/api/capture_xpath",
		Summary:     "Start Capture",
		Description: "Start the XPath capture process. Fails if a capture is already running or a required artifact is missing.",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, _ *struct{}) (*models.CaptureStartResponse, error) {
		res, err := s.session.Start(ctx)
		if err != nil {
			return &models.CaptureStartResponse{Body: models.CaptureStartData{
				Success: false,
				Error:   startErrorMessage(err),
			}}, nil
		}
		return &models.CaptureStartResponse{Body: models.CaptureStartData{
			Success:   true,
			Message:   "Capture started",
			Status:    "running",
			PID:       res.PID,
			SessionID: res.SessionID,
		}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-capture",
		Method:      http.MethodPost,
		Path:        "/api/stop_capture",
		Summary:     "Stop Capture",
		Description: "Stop the capture process and terminate the driver and browser processes it started.",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, _ *struct{}) (*models.CaptureStopResponse, error) {
		res, err := s.session.Stop(ctx)
		if err != nil {
			msg := err.Error()
			if errors.Is(err, session.ErrNoActiveSession) {
				msg = "No capture process running"
			}
			return &models.CaptureStopResponse{Body: models.CaptureStopData{
				Success: false,
				Error:   msg,
			}}, nil
		}
		return &models.CaptureStopResponse{Body: models.CaptureStopData{
			Success:    true,
			Message:    stopMessage(res.Terminated),
			Status:     "stopped",
			Terminated: res.Terminated,
			ForcedKill: res.ForcedKill,
		}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "capture-status",
		Method:      http.MethodGet,
		Path:        "/api/capture_status",
		Summary:     "Capture Status",
		Description: "Report whether a capture session is active and, when known, the page it is on",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, _ *struct{}) (*models.CaptureStatusResponse, error) {
		st := s.session.Status(ctx)
		body := models.CaptureStatusData{
			Active:     st.Active,
			Running:    st.Running,
			Stopping:   st.Stopping,
			CurrentURL: st.CurrentURL,
			SessionID:  st.SessionID,
			PID:        st.PID,
			OwnedPIDs:  st.OwnedPIDs,
		}
		if !st.StartedAt.IsZero() {
			body.StartedAt = st.StartedAt.Format(time.RFC3339Nano)
		}
		return &models.CaptureStatusResponse{Body: body}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "current-url",
		Method:      http.MethodGet,
		Path:        "/api/current_url",
		Summary:     "Current URL",
		Description: "Get the page the capture browser is on",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, _ *struct{}) (*models.CurrentURLResponse, error) {
		url, err := s.session.CurrentURL(ctx)
		if err != nil {
			msg := err.Error()
			if errors.Is(err, session.ErrNoActiveSession) {
				msg = "No active capture session"
			}
			return &models.CurrentURLResponse{Body: models.CurrentURLData{Error: msg}}, nil
		}
		return &models.CurrentURLResponse{Body: models.CurrentURLData{Success: true, URL: url}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-protected-process",
		Method:      http.MethodGet,
		Path:        "/api/protected_process",
		Summary:     "Get Protected Process",
		Description: "Get the browser process excluded from capture cleanup",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.ProtectedProcessResponse, error) {
		return &models.ProtectedProcessResponse{Body: s.protectedData()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-protected-process",
		Method:      http.MethodPut,
		Path:        "/api/protected_process",
		Summary:     "Set Protected Process",
		Description: "Exclude a process from capture cleanup. A pid of 0 clears the protection.",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 422},
	}, func(_ context.Context, input *models.ProtectedProcessRequest) (*models.ProtectedProcessResponse, error) {
		var openedAt time.Time
		if input.Body.PID != 0 {
			openedAt = time.Now()
		}
		s.session.SetProtected(input.Body.PID, openedAt)
		return &models.ProtectedProcessResponse{Body: s.protectedData()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "track-process",
		Method:      http.MethodPost,
		Path:        "/api/track_process",
		Summary:     "Track Process",
		Description: "Record a process as owned by the active capture session so stop terminates it",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 422},
	}, func(_ context.Context, input *models.TrackProcessRequest) (*models.TrackProcessResponse, error) {
		resp := &models.TrackProcessResponse{}
		if err := s.session.TrackProcess(input.Body.PID); err != nil {
			resp.Body.Error = err.Error()
			return resp, nil
		}
		resp.Body.Success = true
		return resp, nil
	})
}

func (s *Server) protectedData() models.ProtectedProcessData {
	pid, openedAt := s.session.Protected()
	data := models.ProtectedProcessData{PID: pid}
	if !openedAt.IsZero() {
		data.OpenedAt = openedAt.Format(time.RFC3339)
	}
	return data
}

func startErrorMessage(err error) string {
	if errors.Is(err, session.ErrAlreadyActive) {
		return "Capture already running"
	}
	return "Failed to start capture: " + err.Error()
}

func stopMessage(terminated []string) string {
	if len(terminated) == 0 {
		return "Capture stopped successfully"
	}
	return "Capture stopped successfully. Killed processes: " + strings.Join(terminated, ", ")
}
