package events

// Event type constants for kelindar/event.
const (
	TypeCaptureStarted uint32 = iota + 1
	TypeCaptureStopped
	TypeCaptureFailed
	TypeCaptureExited
	TypeProtectedProcess
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// CaptureStartedEvent is published after the capture subprocess is spawned.
type CaptureStartedEvent struct {
	SessionID string `json:"session_id" example:"0b6f3c1e-8f7e-4a53-9a57-6c1b9c0e9d7a" doc:"Capture session identifier"`
	PID       int    `json:"pid" example:"4242" doc:"Capture subprocess PID"`
	StartedAt string `json:"started_at" example:"2025-01-27T10:30:00Z" doc:"Spawn instant"`
}

// Type returns the event type identifier for CaptureStartedEvent.
func (e CaptureStartedEvent) Type() uint32 { return TypeCaptureStarted }

// CaptureStoppedEvent is published when a session returns to idle through
// a stop or an emergency shutdown.
type CaptureStoppedEvent struct {
	SessionID  string   `json:"session_id" doc:"Capture session identifier"`
	Terminated []string `json:"terminated" doc:"Distinct names of terminated processes"`
	ForcedKill bool     `json:"forced_kill" doc:"Whether the subprocess had to be force-killed"`
	Reason     string   `json:"reason" example:"stop" doc:"Why the session ended: stop or emergency"`
	Timestamp  string   `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureStoppedEvent.
func (e CaptureStoppedEvent) Type() uint32 { return TypeCaptureStopped }

// CaptureFailedEvent is published when a start attempt fails.
type CaptureFailedEvent struct {
	Message   string `json:"message" example:"Failed to start capture" doc:"Summary"`
	Error     string `json:"error" example:"Edge WebDriver not found at /srv/app/drivers/msedgedriver" doc:"Cause"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureFailedEvent.
func (e CaptureFailedEvent) Type() uint32 { return TypeCaptureFailed }

// CaptureExitedEvent is published when the subprocess exits on its own while
// the session is still active.
type CaptureExitedEvent struct {
	SessionID string `json:"session_id" doc:"Capture session identifier"`
	PID       int    `json:"pid" doc:"Capture subprocess PID"`
	ExitCode  int    `json:"exit_code" doc:"Subprocess exit code"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureExitedEvent.
func (e CaptureExitedEvent) Type() uint32 { return TypeCaptureExited }

// ProtectedProcessEvent is published when the protected PID changes.
type ProtectedProcessEvent struct {
	PID       int    `json:"pid" doc:"Protected PID, 0 when cleared"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProtectedProcessEvent.
func (e ProtectedProcessEvent) Type() uint32 { return TypeProtectedProcess }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"session" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
