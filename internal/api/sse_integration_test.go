package api

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/xpathnode/internal/events"
	"github.com/smazurov/xpathnode/internal/session"
)

// readSSE connects to path and forwards every data line.
func readSSE(t *testing.T, server *Server, path string) <-chan string {
	t.Helper()
	ts := httptest.NewServer(server.mux)
	t.Cleanup(ts.Close)

	credentials := base64.StdEncoding.EncodeToString([]byte("test:test"))
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	resp, err := http.Get(fmt.Sprintf("%s%s%sauth=%s", ts.URL, path, sep, credentials))
	if err != nil {
		t.Fatalf("Failed to connect to SSE: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("Expected SSE content type, got %s", resp.Header.Get("Content-Type"))
	}

	messages := make(chan string, 10)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data:") {
				messages <- line
			}
		}
	}()
	return messages
}

func nextMessage(t *testing.T, messages <-chan string) string {
	t.Helper()
	select {
	case msg := <-messages:
		return msg
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for SSE message")
		return ""
	}
}

func TestSSECaptureEvents(t *testing.T) {
	bus := events.New()
	server := NewServer(&Options{
		AuthUsername: "test",
		AuthPassword: "test",
		Session:      &fakeSession{status: session.Status{Active: true, Running: true, PID: 4242}},
		EventBus:     bus,
	})

	messages := readSSE(t, server, "/api/events")

	if msg := nextMessage(t, messages); !strings.Contains(msg, `"pid":4242`) || !strings.Contains(msg, `"active":true`) {
		t.Errorf("Expected initial status snapshot, got: %s", msg)
	}

	bus.Publish(events.CaptureStoppedEvent{
		SessionID:  "abc",
		Terminated: []string{"msedgedriver"},
		Reason:     "requested",
	})
	if msg := nextMessage(t, messages); !strings.Contains(msg, "msedgedriver") || !strings.Contains(msg, "abc") {
		t.Errorf("Expected stopped event, got: %s", msg)
	}
}

func TestSSERequiresAuth(t *testing.T) {
	server := NewServer(&Options{
		AuthUsername: "test",
		AuthPassword: "test",
		Session:      &fakeSession{},
	})
	ts := httptest.NewServer(server.mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	health, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200 without auth", health.StatusCode)
	}
	var body struct {
		Status  string `json:"status"`
		Capture struct {
			Active bool `json:"active"`
		} `json:"capture"`
	}
	if err := json.NewDecoder(health.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Errorf("health body status = %q, want ok", body.Status)
	}
}

func TestSSELogStream(t *testing.T) {
	bus := events.New()
	server := NewServer(&Options{
		AuthUsername: "test",
		AuthPassword: "test",
		Session:      &fakeSession{},
		EventBus:     bus,
	})

	messages := readSSE(t, server, "/api/logs/stream")

	// The stream opens with logs-ready once the handler is subscribed
	if msg := nextMessage(t, messages); !strings.Contains(msg, `"replayed":0`) {
		t.Fatalf("first message = %s, want logs-ready with nothing replayed", msg)
	}
	bus.Publish(events.LogEntryEvent{Level: "info", Module: "capture", Message: "URL: https://example.com"})

	deadline := time.After(time.Second)
	for {
		select {
		case msg := <-messages:
			if strings.Contains(msg, "URL: https://example.com") {
				return
			}
		case <-deadline:
			t.Fatal("log entry not streamed")
		}
	}
}

func TestSSELogStreamModuleFilter(t *testing.T) {
	bus := events.New()
	server := NewServer(&Options{
		AuthUsername: "test",
		AuthPassword: "test",
		Session:      &fakeSession{},
		EventBus:     bus,
	})

	messages := readSSE(t, server, "/api/logs/stream?module=capture")

	if msg := nextMessage(t, messages); !strings.Contains(msg, `"module":"capture"`) {
		t.Fatalf("first message = %s, want logs-ready for module capture", msg)
	}
	bus.Publish(events.LogEntryEvent{Level: "info", Module: "session", Message: "Capture session started"})
	bus.Publish(events.LogEntryEvent{Level: "warn", Module: "capture", Message: "Traceback (most recent call last)"})

	msg := nextMessage(t, messages)
	if !strings.Contains(msg, "Traceback") {
		t.Errorf("first streamed entry = %s, want the capture entry", msg)
	}
}
