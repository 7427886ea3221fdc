package models

// Health check models
type HealthData struct {
	Status  string        `json:"status" example:"ok" doc:"Service status"`
	Message string        `json:"message" example:"API is healthy" doc:"Status message"`
	Capture CaptureCounts `json:"capture" doc:"Capture lifecycle counters since the service started"`
}

type CaptureCounts struct {
	Active         bool   `json:"active" doc:"Whether a capture session is active"`
	Starts         uint64 `json:"starts" doc:"Successful starts"`
	Stops          uint64 `json:"stops" doc:"Completed stops, including emergency shutdown"`
	ForcedKills    uint64 `json:"forced_kills" doc:"Stops that needed a forced kill"`
	LastStopReason string `json:"last_stop_reason,omitempty" example:"requested" doc:"Reason of the most recent stop"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2026-01-01T00:00:00Z" doc:"Build timestamp"`
	Modified  bool   `json:"modified" doc:"Built from a tree with uncommitted changes"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"OS and architecture"`
}

type VersionResponse struct {
	Body VersionData
}

// Capture control models. Start and stop always answer 200; failures are
// reported in the body with success=false.
type CaptureStartData struct {
	Success   bool   `json:"success" example:"true" doc:"Whether the capture started"`
	Message   string `json:"message,omitempty" example:"Capture started" doc:"Status message"`
	Status    string `json:"status,omitempty" example:"running" doc:"Session status after the call"`
	PID       int    `json:"pid,omitempty" example:"4242" doc:"Capture process ID"`
	SessionID string `json:"session_id,omitempty" doc:"Session identifier"`
	Error     string `json:"error,omitempty" example:"Capture already running" doc:"Failure reason"`
}

type CaptureStartResponse struct {
	Body CaptureStartData
}

type CaptureStopData struct {
	Success    bool     `json:"success" example:"true" doc:"Whether the capture stopped"`
	Message    string   `json:"message,omitempty" example:"Capture stopped successfully" doc:"Status message"`
	Status     string   `json:"status,omitempty" example:"stopped" doc:"Session status after the call"`
	Terminated []string `json:"terminated,omitempty" doc:"Names of terminated session processes"`
	ForcedKill bool     `json:"forced_kill,omitempty" doc:"Whether the capture process had to be killed"`
	Error      string   `json:"error,omitempty" example:"No capture process running" doc:"Failure reason"`
}

type CaptureStopResponse struct {
	Body CaptureStopData
}

type CaptureStatusData struct {
	Active     bool    `json:"active" doc:"Whether a capture session is active"`
	Running    bool    `json:"running" doc:"Whether the capture process is still running"`
	Stopping   bool    `json:"stopping,omitempty" doc:"Whether a stop is in progress"`
	CurrentURL *string `json:"currentUrl" doc:"Page the capture process is on, null when unknown"`
	SessionID  string  `json:"session_id,omitempty" doc:"Session identifier"`
	PID        int     `json:"pid,omitempty" doc:"Capture process ID"`
	StartedAt  string  `json:"started_at,omitempty" doc:"Session start time (RFC3339)"`
	OwnedPIDs  []int   `json:"owned_pids,omitempty" doc:"Processes tracked as owned by the session"`
}

type CaptureStatusResponse struct {
	Body CaptureStatusData
}

type CurrentURLData struct {
	Success bool   `json:"success" doc:"Whether a URL is available"`
	URL     string `json:"url,omitempty" example:"https://example.com" doc:"Current page URL"`
	Error   string `json:"error,omitempty" example:"No active capture session" doc:"Failure reason"`
}

type CurrentURLResponse struct {
	Body CurrentURLData
}

// Protected process models
type ProtectedProcessData struct {
	PID      int    `json:"pid" example:"1234" doc:"Protected process ID, 0 when none"`
	OpenedAt string `json:"opened_at,omitempty" doc:"When the protected browser was opened (RFC3339)"`
}

type ProtectedProcessRequest struct {
	Body struct {
		PID int `json:"pid" minimum:"0" example:"1234" doc:"Process ID to protect, 0 clears it"`
	}
}

type ProtectedProcessResponse struct {
	Body ProtectedProcessData
}

// Track process models
type TrackProcessRequest struct {
	Body struct {
		PID int `json:"pid" minimum:"1" example:"5678" doc:"Process ID owned by the capture session"`
	}
}

type TrackProcessResponse struct {
	Body struct {
		Success bool   `json:"success" doc:"Whether the process is now tracked"`
		Error   string `json:"error,omitempty" doc:"Failure reason"`
	}
}

// LogStreamReadyData ends the history replay of /api/logs/stream. It is
// always sent, so clients get the stream open even with nothing to replay.
type LogStreamReadyData struct {
	Replayed int    `json:"replayed" example:"42" doc:"Number of history entries sent before this event"`
	Module   string `json:"module,omitempty" example:"capture" doc:"Module filter in effect"`
}
