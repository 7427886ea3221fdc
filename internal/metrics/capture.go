// Package metrics provides Prometheus metrics for the capture session lifecycle.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Start results.
const (
	StartSuccess       = "success"
	StartAlreadyActive = "already_active"
	StartConfigError   = "config_error"
	StartSpawnError    = "spawn_error"
)

var (
	captureActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "xpathnode",
		Subsystem: "capture",
		Name:      "active",
		Help:      "Whether a capture session is active (1) or idle (0)",
	})

	captureStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xpathnode",
		Subsystem: "capture",
		Name:      "starts_total",
		Help:      "Capture start attempts by result",
	}, []string{"result"})

	captureStops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xpathnode",
		Subsystem: "capture",
		Name:      "stops_total",
		Help:      "Completed capture stops by reason and whether a forced kill was needed",
	}, []string{"reason", "forced"})

	captureStopDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "xpathnode",
		Subsystem: "capture",
		Name:      "stop_duration_seconds",
		Help:      "Time spent stopping a capture session",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	cleanupTerminated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xpathnode",
		Subsystem: "cleanup",
		Name:      "terminated_total",
		Help:      "Processes terminated by cleanup sweeps by selection reason",
	}, []string{"reason"})

	cleanupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "xpathnode",
		Subsystem: "cleanup",
		Name:      "failures_total",
		Help:      "Process terminations that failed during cleanup sweeps",
	})

	// Local cache for the health endpoint.
	summary   Summary
	summaryMu sync.RWMutex
)

// Summary holds current values for API responses.
type Summary struct {
	Active         bool
	Starts         uint64
	Stops          uint64
	ForcedKills    uint64
	LastStopReason string
}

// SetCaptureActive records whether a session is active.
func SetCaptureActive(active bool) {
	v := 0.0
	if active {
		v = 1
	}
	captureActive.Set(v)
	updateSummary(func(s *Summary) { s.Active = active })
}

// RecordStart counts a start attempt.
func RecordStart(result string) {
	captureStarts.WithLabelValues(result).Inc()
	if result == StartSuccess {
		updateSummary(func(s *Summary) { s.Starts++ })
	}
}

// RecordStop counts a completed stop.
func RecordStop(reason string, forced bool, elapsed time.Duration) {
	captureStops.WithLabelValues(reason, strconv.FormatBool(forced)).Inc()
	captureStopDuration.Observe(elapsed.Seconds())
	updateSummary(func(s *Summary) {
		s.Stops++
		if forced {
			s.ForcedKills++
		}
		s.LastStopReason = reason
	})
}

// RecordCleanup counts one sweep's terminations per selection reason and its failures.
func RecordCleanup(terminatedByReason map[string]int, failures int) {
	for reason, n := range terminatedByReason {
		cleanupTerminated.WithLabelValues(reason).Add(float64(n))
	}
	if failures > 0 {
		cleanupFailures.Add(float64(failures))
	}
}

// GetSummary returns a copy of the cached values.
func GetSummary() Summary {
	summaryMu.RLock()
	defer summaryMu.RUnlock()
	return summary
}

func updateSummary(update func(*Summary)) {
	summaryMu.Lock()
	defer summaryMu.Unlock()
	update(&summary)
}
