package logging

import (
	"context"
	"log/slog"
	"maps"
	"time"
)

// LogCallback is called when a new log entry is written.
// Used to publish log events without creating import cycles.
type LogCallback func(entry LogEntry)

// HistoryHandler is a slog.Handler that records into the package history
// and calls the registered callback for each log entry.
// History and callback are looked up per record so handlers created before
// Initialize start recording once it runs.
//
// A top-level "module" attribute becomes LogEntry.Module; every other
// attribute is flattened with dot-separated group names.
type HistoryHandler struct {
	level  slog.Leveler
	module string
	prefix string
	attrs  map[string]any
}

// NewHistoryHandler creates a history handler gated by the given level.
func NewHistoryHandler(level slog.Leveler) *HistoryHandler {
	return &HistoryHandler{level: level, module: "app"}
}

// Enabled implements slog.Handler.
func (h *HistoryHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *HistoryHandler) Handle(_ context.Context, r slog.Record) error {
	entry := LogEntry{
		Timestamp:  r.Time,
		Level:      levelToString(r.Level),
		Module:     h.module,
		Message:    r.Message,
		Attributes: make(map[string]any, len(h.attrs)+r.NumAttrs()),
	}
	maps.Copy(entry.Attributes, h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		if h.prefix == "" && a.Key == "module" {
			entry.Module = a.Value.String()
			return true
		}
		flattenAttr(entry.Attributes, h.prefix, a)
		return true
	})

	history, callback := currentSinks()
	if history != nil {
		history.Append(entry)
	}
	if callback != nil {
		callback(entry)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *HistoryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &HistoryHandler{
		level:  h.level,
		module: h.module,
		prefix: h.prefix,
		attrs:  maps.Clone(h.attrs),
	}
	if next.attrs == nil {
		next.attrs = make(map[string]any, len(attrs))
	}
	for _, a := range attrs {
		if h.prefix == "" && a.Key == "module" {
			next.module = a.Value.String()
			continue
		}
		flattenAttr(next.attrs, h.prefix, a)
	}
	return next
}

// WithGroup implements slog.Handler.
func (h *HistoryHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &HistoryHandler{
		level:  h.level,
		module: h.module,
		prefix: h.prefix + name + ".",
		attrs:  h.attrs,
	}
}

// flattenAttr stores a under prefix+key, descending into groups. Errors
// are stored as their message so entries serialize cleanly.
func flattenAttr(attrs map[string]any, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := prefix + a.Key
	switch a.Value.Kind() {
	case slog.KindGroup:
		for _, ga := range a.Value.Group() {
			flattenAttr(attrs, key+".", ga)
		}
	case slog.KindTime:
		attrs[key] = a.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		attrs[key] = a.Value.Duration().String()
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			attrs[key] = err.Error()
		} else {
			attrs[key] = a.Value.Any()
		}
	default:
		attrs[key] = a.Value.Any()
	}
}

// levelToString converts slog.Level to a lowercase string.
func levelToString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
