package session

import (
	"context"
	"time"

	"github.com/smazurov/xpathnode/internal/cleanup"
	"github.com/smazurov/xpathnode/internal/events"
	"github.com/smazurov/xpathnode/internal/metrics"
)

// Stop reasons reported in events and metrics.
const (
	ReasonRequested = "requested"
	ReasonEmergency = "emergency"
)

// StopResult describes a completed stop. Failures are individual
// terminations that did not succeed; they do not fail the stop.
type StopResult struct {
	SessionID  string
	Terminated []string
	ForcedKill bool
	Failures   []cleanup.Outcome
}

// Stop ends the active session: it sweeps session-owned processes, then
// terminates the subprocess, escalating to a forced kill after the graceful
// timeout. It fails only with ErrNoActiveSession.
func (m *Manager) Stop(ctx context.Context) (StopResult, error) {
	m.transition.Lock()
	defer m.transition.Unlock()

	m.mu.Lock()
	if !m.session.active || m.terminating {
		m.mu.Unlock()
		return StopResult{}, ErrNoActiveSession
	}
	m.session.stopping = true
	m.mu.Unlock()

	res := m.shutdown(ctx, ReasonRequested, false)
	m.logger.Info("Capture session stopped",
		"session_id", res.SessionID,
		"terminated", res.Terminated,
		"forced_kill", res.ForcedKill,
		"failures", len(res.Failures))
	return res, nil
}

// EmergencyShutdown is the termination hook. It stops the active session
// ignoring individual failures and then ends the service with status 0. It
// waits at most the emergency grace period for an in-flight transition and
// proceeds without the lock afterwards. Only the first call has any effect.
func (m *Manager) EmergencyShutdown() {
	m.emergencyOnce.Do(func() {
		m.mu.Lock()
		m.terminating = true
		m.mu.Unlock()

		m.logger.Warn("Emergency shutdown, cleaning up capture session")

		locked := m.tryLockFor(m.opts.EmergencyGrace)
		if locked {
			defer m.transition.Unlock()
		} else {
			m.logger.Warn("Transition still in progress, proceeding without it",
				"grace", m.opts.EmergencyGrace)
		}

		m.mu.Lock()
		active := m.session.active
		m.session.stopping = active
		m.mu.Unlock()

		if active {
			ctx, cancel := context.WithTimeout(context.Background(), m.GracefulTimeout()+m.opts.EmergencyGrace)
			res := m.shutdown(ctx, ReasonEmergency, m.opts.EmergencyStaleDrivers)
			cancel()
			m.logger.Info("Emergency cleanup finished",
				"terminated", res.Terminated,
				"forced_kill", res.ForcedKill,
				"failures", len(res.Failures))
		}

		// A start still inside Launch sees terminating and kills its own
		// subprocess group; give it one more grace period to do so.
		if !locked && m.tryLockFor(m.opts.EmergencyGrace) {
			m.transition.Unlock()
		}

		m.opts.Exit(0)
	})
}

// tryLockFor polls the transition lock until it is acquired or d elapses.
func (m *Manager) tryLockFor(d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		if m.transition.TryLock() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// shutdown runs the sweep and the escalating subprocess stop, then resets
// the session to idle. The session must be marked stopping.
func (m *Manager) shutdown(ctx context.Context, reason string, staleDrivers bool) StopResult {
	begin := time.Now()

	m.mu.RLock()
	sess := m.session
	owned := ownedList(sess.owned)
	protected := m.protectedPID
	timeout := m.gracefulTimeout
	m.mu.RUnlock()

	req := cleanup.Request{
		Since:               sess.startedAt,
		ProtectedPID:        protected,
		OwnedPIDs:           owned,
		IncludeStaleDrivers: staleDrivers,
	}
	// An exited root's pid may already belong to someone else
	if sess.handle != nil && sess.handle.Running() {
		req.RootPID = sess.handle.PID()
	}

	var swept cleanup.Result
	if m.deps.Sweeper != nil {
		swept = m.deps.Sweeper.Sweep(ctx, req)
	}

	forced := false
	if sess.handle != nil && sess.handle.Running() {
		forced = sess.handle.Stop(timeout)
	}

	m.resetIdle()

	byReason := make(map[string]int)
	for _, v := range swept.Terminated {
		byReason[string(v.Reason)]++
	}
	metrics.RecordCleanup(byReason, len(swept.Failures))
	metrics.RecordStop(reason, forced, time.Since(begin))

	terminated := swept.Names
	if terminated == nil {
		terminated = []string{}
	}
	m.publish(events.CaptureStoppedEvent{
		SessionID:  sess.id,
		Terminated: terminated,
		ForcedKill: forced,
		Reason:     reason,
		Timestamp:  time.Now().Format(time.RFC3339),
	})

	return StopResult{
		SessionID:  sess.id,
		Terminated: terminated,
		ForcedKill: forced,
		Failures:   swept.Failures,
	}
}
