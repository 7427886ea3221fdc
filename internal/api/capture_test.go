package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"

	"github.com/smazurov/xpathnode/internal/events"
	"github.com/smazurov/xpathnode/internal/locator"
	"github.com/smazurov/xpathnode/internal/process"
	"github.com/smazurov/xpathnode/internal/session"
)

// fakeSession is a scripted SessionController.
type fakeSession struct {
	mu          sync.Mutex
	startResult session.StartResult
	startErr    error
	stopResult  session.StopResult
	stopErr     error
	status      session.Status
	url         string
	urlErr      error
	protected   int
	protectedAt time.Time
	tracked     []int
}

func (f *fakeSession) Start(context.Context) (session.StartResult, error) {
	return f.startResult, f.startErr
}

func (f *fakeSession) Stop(context.Context) (session.StopResult, error) {
	return f.stopResult, f.stopErr
}

func (f *fakeSession) Status(context.Context) session.Status {
	return f.status
}

func (f *fakeSession) CurrentURL(context.Context) (string, error) {
	return f.url, f.urlErr
}

func (f *fakeSession) SetProtected(pid int, openedAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.protected, f.protectedAt = pid, openedAt
}

func (f *fakeSession) Protected() (int, time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.protected, f.protectedAt
}

func (f *fakeSession) TrackProcess(pid int) error {
	if !f.status.Active {
		return session.ErrNoActiveSession
	}
	f.tracked = append(f.tracked, pid)
	return nil
}

func newTestAPI(t *testing.T, fake *fakeSession) humatest.TestAPI {
	t.Helper()
	_, api := humatest.New(t)
	s := &Server{
		api:      api,
		session:  fake,
		eventBus: events.New(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	s.registerCaptureRoutes()
	return api
}

func decode(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestStartCapture(t *testing.T) {
	tests := []struct {
		name        string
		result      session.StartResult
		err         error
		wantSuccess bool
		wantText    string
	}{
		{
			name:        "started",
			result:      session.StartResult{SessionID: "abc", PID: 4242},
			wantSuccess: true,
			wantText:    "Capture started",
		},
		{
			name:     "already running",
			err:      session.ErrAlreadyActive,
			wantText: "Capture already running",
		},
		{
			name:     "missing driver",
			err:      &locator.ConfigurationError{Artifact: locator.ArtifactDriver, Path: "/opt/drivers/msedgedriver"},
			wantText: "Failed to start capture: Edge WebDriver not found at /opt/drivers/msedgedriver",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, &fakeSession{startResult: tt.result, startErr: tt.err})
			resp := api.Post("/api/capture_xpath")
			if resp.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", resp.Code)
			}
			body := decode(t, resp.Body)
			if body["success"] != tt.wantSuccess {
				t.Errorf("success = %v, want %v", body["success"], tt.wantSuccess)
			}
			text, _ := body["message"].(string)
			if !tt.wantSuccess {
				text, _ = body["error"].(string)
			}
			if text != tt.wantText {
				t.Errorf("text = %q, want %q", text, tt.wantText)
			}
			if tt.wantSuccess && (body["status"] != "running" || body["pid"] != float64(4242)) {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestStopCapture(t *testing.T) {
	api := newTestAPI(t, &fakeSession{stopResult: session.StopResult{
		Terminated: []string{"msedgedriver", "msedge"},
		ForcedKill: true,
	}})
	body := decode(t, api.Post("/api/stop_capture").Body)

	if body["success"] != true || body["status"] != "stopped" || body["forced_kill"] != true {
		t.Errorf("body = %v", body)
	}
	if msg := body["message"]; msg != "Capture stopped successfully. Killed processes: msedgedriver, msedge" {
		t.Errorf("message = %q", msg)
	}
}

func TestStopCaptureWithoutSession(t *testing.T) {
	api := newTestAPI(t, &fakeSession{stopErr: session.ErrNoActiveSession})
	resp := api.Post("/api/stop_capture")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	body := decode(t, resp.Body)
	if body["success"] != false || body["error"] != "No capture process running" {
		t.Errorf("body = %v", body)
	}
}

func TestCaptureStatus(t *testing.T) {
	t.Run("idle reports null url", func(t *testing.T) {
		api := newTestAPI(t, &fakeSession{})
		resp := api.Get("/api/capture_status")
		if !strings.Contains(resp.Body.String(), `"currentUrl":null`) {
			t.Errorf("body = %s, want currentUrl null", resp.Body.String())
		}
		body := decode(t, resp.Body)
		if body["active"] != false {
			t.Errorf("active = %v", body["active"])
		}
	})

	t.Run("active", func(t *testing.T) {
		url := "https://example.com/form"
		started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		api := newTestAPI(t, &fakeSession{status: session.Status{
			Active:     true,
			Running:    true,
			SessionID:  "abc",
			PID:        4242,
			StartedAt:  started,
			CurrentURL: &url,
		}})
		body := decode(t, api.Get("/api/capture_status").Body)
		if body["active"] != true || body["currentUrl"] != url || body["pid"] != float64(4242) {
			t.Errorf("body = %v", body)
		}
		if body["started_at"] != "2026-03-01T12:00:00Z" {
			t.Errorf("started_at = %v", body["started_at"])
		}
	})
}

func TestCurrentURL(t *testing.T) {
	api := newTestAPI(t, &fakeSession{urlErr: session.ErrNoActiveSession})
	body := decode(t, api.Get("/api/current_url").Body)
	if body["success"] != false || body["error"] != "No active capture session" {
		t.Errorf("body = %v", body)
	}

	api = newTestAPI(t, &fakeSession{url: "https://example.com"})
	body = decode(t, api.Get("/api/current_url").Body)
	if body["success"] != true || body["url"] != "https://example.com" {
		t.Errorf("body = %v", body)
	}
}

func TestProtectedProcess(t *testing.T) {
	fake := &fakeSession{}
	api := newTestAPI(t, fake)

	body := decode(t, api.Put("/api/protected_process", map[string]any{"pid": 1234}).Body)
	if body["pid"] != float64(1234) || body["opened_at"] == nil {
		t.Errorf("PUT body = %v", body)
	}
	if pid, _ := fake.Protected(); pid != 1234 {
		t.Errorf("protected = %d, want 1234", pid)
	}

	body = decode(t, api.Get("/api/protected_process").Body)
	if body["pid"] != float64(1234) {
		t.Errorf("GET body = %v", body)
	}

	if resp := api.Put("/api/protected_process", map[string]any{"pid": -5}); resp.Code != http.StatusUnprocessableEntity {
		t.Errorf("negative pid status = %d, want 422", resp.Code)
	}

	decode(t, api.Put("/api/protected_process", map[string]any{"pid": 0}).Body)
	if pid, at := fake.Protected(); pid != 0 || !at.IsZero() {
		t.Errorf("protected after clear = %d, %v", pid, at)
	}
}

func TestTrackProcess(t *testing.T) {
	fake := &fakeSession{}
	api := newTestAPI(t, fake)

	body := decode(t, api.Post("/api/track_process", map[string]any{"pid": 99}).Body)
	if body["success"] != false || !strings.Contains(body["error"].(string), "no capture process running") {
		t.Errorf("idle body = %v", body)
	}

	fake.status.Active = true
	body = decode(t, api.Post("/api/track_process", map[string]any{"pid": 99}).Body)
	if body["success"] != true || len(fake.tracked) != 1 {
		t.Errorf("active body = %v, tracked = %v", body, fake.tracked)
	}
}

func TestStartErrorMessageWrapsCause(t *testing.T) {
	err := &process.SpawnError{Cause: errors.New("exec format error")}
	if got := startErrorMessage(err); got != "Failed to start capture: spawn capture process: exec format error" {
		t.Errorf("startErrorMessage() = %q", got)
	}
}
