package logging

import (
	"sync"
	"time"
)

// LogEntry is one recorded log line. Capture process output is recorded
// under the "capture" module.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// History keeps the most recent log entries for replay to new stream
// subscribers. The oldest entry is dropped once capacity is reached.
type History struct {
	mu       sync.RWMutex
	entries  []LogEntry
	capacity int
}

// NewHistory returns a history holding at most capacity entries.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		entries:  make([]LogEntry, 0, capacity),
		capacity: capacity,
	}
}

// Append records an entry.
func (h *History) Append(entry LogEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) == h.capacity {
		// shift in place so the backing array never grows
		copy(h.entries, h.entries[1:])
		h.entries[len(h.entries)-1] = entry
		return
	}
	h.entries = append(h.entries, entry)
}

// Tail returns up to n of the newest entries, oldest first, keeping only
// those from module when module is non-empty. n <= 0 means all.
func (h *History) Tail(n int, module string) []LogEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []LogEntry
	for i := len(h.entries) - 1; i >= 0; i-- {
		if n > 0 && len(out) == n {
			break
		}
		if module != "" && h.entries[i].Module != module {
			continue
		}
		out = append(out, h.entries[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Len returns the number of recorded entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
