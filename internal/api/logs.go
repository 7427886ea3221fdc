package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/xpathnode/internal/api/models"
	"github.com/smazurov/xpathnode/internal/events"
	"github.com/smazurov/xpathnode/internal/logging"
)

// LogStreamInput narrows the replayed history and the live stream.
type LogStreamInput struct {
	Limit  int    `query:"limit" minimum:"0" doc:"Replay at most this many recent entries (0 = all kept)"`
	Module string `query:"module" doc:"Only entries from this module, e.g. capture for subprocess output"`
}

// registerLogRoutes registers the log streaming SSE endpoint.
func (s *Server) registerLogRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Kept history is replayed first, including capture process output, followed by a logs-ready event.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message":    events.LogEntryEvent{},
		"logs-ready": models.LogStreamReadyData{},
	}, func(ctx context.Context, input *LogStreamInput, send sse.Sender) {
		// Larger buffer than capture events, subprocess output can be bursty
		eventCh := make(chan any, 100)
		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.eventBus, eventCh)
		defer unsubscribe()

		replayed := 0
		if history := logging.GetHistory(); history != nil {
			for _, entry := range history.Tail(input.Limit, input.Module) {
				if err := send.Data(LogEntryToEvent(entry)); err != nil {
					return
				}
				replayed++
			}
		}
		// Also the first write when there is no history, which opens the stream
		if err := send.Data(models.LogStreamReadyData{Replayed: replayed, Module: input.Module}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if entry, ok := event.(events.LogEntryEvent); ok && input.Module != "" && entry.Module != input.Module {
					continue
				}
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

// LogEntryToEvent converts a buffered log entry to its wire event.
func LogEntryToEvent(entry logging.LogEntry) events.LogEntryEvent {
	return events.LogEntryEvent{
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}
