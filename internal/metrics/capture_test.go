package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestSummaryTracksLifecycle(t *testing.T) {
	before := GetSummary()

	SetCaptureActive(true)
	RecordStart(StartSuccess)
	RecordStart(StartAlreadyActive)

	if s := GetSummary(); !s.Active || s.Starts != before.Starts+1 {
		t.Errorf("after start: %+v", s)
	}

	RecordStop("stop", true, 120*time.Millisecond)
	SetCaptureActive(false)

	s := GetSummary()
	if s.Active {
		t.Error("expected inactive after stop")
	}
	if s.Stops != before.Stops+1 || s.ForcedKills != before.ForcedKills+1 {
		t.Errorf("after stop: %+v", s)
	}
	if s.LastStopReason != "stop" {
		t.Errorf("LastStopReason = %q, want stop", s.LastStopReason)
	}
}

func TestSummaryConcurrentAccess(_ *testing.T) {
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				SetCaptureActive(i%2 == 0)
				RecordCleanup(map[string]int{"driver": 1}, 1)
				_ = GetSummary()
			}
		}()
	}
	wg.Wait()
}
