// Package session owns the single capture session: it serializes start and
// stop transitions, answers status queries from consistent snapshots, and
// runs the stop and emergency shutdown sequences.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/xpathnode/internal/cleanup"
	"github.com/smazurov/xpathnode/internal/events"
	"github.com/smazurov/xpathnode/internal/locator"
	"github.com/smazurov/xpathnode/internal/metrics"
	"github.com/smazurov/xpathnode/internal/process"
)

// Defaults for Options.
const (
	DefaultGracefulTimeout = 5 * time.Second
	DefaultEmergencyGrace  = 2 * time.Second
	DefaultProbeTimeout    = 500 * time.Millisecond
)

// Locator resolves launch artifacts.
type Locator interface {
	Locate() (locator.Artifacts, error)
}

// Launcher spawns the capture subprocess.
type Launcher interface {
	Launch(ctx context.Context, art locator.Artifacts) (*process.Handle, error)
}

// Sweeper terminates session-owned processes.
type Sweeper interface {
	Sweep(ctx context.Context, req cleanup.Request) cleanup.Result
}

// Deps are the collaborators of a Manager. Probe and Bus are optional.
type Deps struct {
	Locator  Locator
	Launcher Launcher
	Sweeper  Sweeper
	Probe    URLProbe
	Bus      *events.Bus
}

// Options tune a Manager.
type Options struct {
	// GracefulTimeout is the wait between terminate and forced kill.
	GracefulTimeout time.Duration
	// EmergencyGrace bounds how long emergency shutdown waits for an
	// in-flight transition.
	EmergencyGrace time.Duration
	// ProbeTimeout bounds the current URL probe in Status.
	ProbeTimeout time.Duration
	// EmergencyStaleDrivers makes emergency shutdown also kill driver
	// processes that predate the session.
	EmergencyStaleDrivers bool
	// Exit ends the service after emergency shutdown. Defaults to os.Exit.
	Exit func(code int)
}

// captureSession holds the per-session fields. It is replaced wholesale on
// every idle re-entry.
type captureSession struct {
	id        string
	handle    *process.Handle
	active    bool
	stopping  bool
	startedAt time.Time
	owned     map[int]struct{}
}

// Manager holds the single capture session.
type Manager struct {
	deps   Deps
	opts   Options
	logger *slog.Logger

	// transition serializes Start, Stop and EmergencyShutdown.
	transition sync.Mutex

	// mu guards the fields below. It is only held for short reads and writes,
	// never across a blocking step.
	mu              sync.RWMutex
	session         captureSession
	protectedPID    int
	protectedAt     time.Time
	gracefulTimeout time.Duration
	terminating     bool

	emergencyOnce sync.Once
}

// New creates an idle Manager.
func New(deps Deps, opts Options, logger *slog.Logger) *Manager {
	if opts.GracefulTimeout <= 0 {
		opts.GracefulTimeout = DefaultGracefulTimeout
	}
	if opts.EmergencyGrace <= 0 {
		opts.EmergencyGrace = DefaultEmergencyGrace
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	if opts.Exit == nil {
		opts.Exit = os.Exit
	}
	metrics.SetCaptureActive(false)
	return &Manager{
		deps:            deps,
		opts:            opts,
		logger:          logger,
		gracefulTimeout: opts.GracefulTimeout,
	}
}

// StartResult describes a freshly started session.
type StartResult struct {
	SessionID string
	PID       int
	StartedAt time.Time
}

// Start launches the capture subprocess. It fails with ErrAlreadyActive if
// a session is active, with a *locator.ConfigurationError if an artifact is
// missing, or with a *process.SpawnError if the OS refused the spawn. On
// failure the manager stays idle.
func (m *Manager) Start(ctx context.Context) (StartResult, error) {
	m.transition.Lock()
	defer m.transition.Unlock()

	m.mu.RLock()
	active, terminating := m.session.active, m.terminating
	m.mu.RUnlock()

	if terminating {
		return StartResult{}, ErrTerminating
	}
	if active {
		metrics.RecordStart(metrics.StartAlreadyActive)
		return StartResult{}, ErrAlreadyActive
	}

	art, err := m.deps.Locator.Locate()
	if err != nil {
		metrics.RecordStart(metrics.StartConfigError)
		return StartResult{}, m.startFailed(err)
	}

	handle, err := m.deps.Launcher.Launch(ctx, art)
	if err != nil {
		metrics.RecordStart(metrics.StartSpawnError)
		m.resetIdle()
		return StartResult{}, m.startFailed(err)
	}

	sess := captureSession{
		id:        uuid.NewString(),
		handle:    handle,
		active:    true,
		startedAt: handle.StartedAt(),
		owned:     make(map[int]struct{}),
	}
	m.mu.Lock()
	if m.terminating {
		// Emergency shutdown already took its snapshot and will not see this handle
		m.mu.Unlock()
		m.logger.Warn("Emergency shutdown began during start, killing capture process", "pid", handle.PID())
		if killErr := handle.Kill(); killErr != nil {
			m.logger.Error("Failed to kill capture process", "pid", handle.PID(), "error", killErr)
		}
		return StartResult{}, ErrTerminating
	}
	m.session = sess
	m.mu.Unlock()

	metrics.RecordStart(metrics.StartSuccess)
	metrics.SetCaptureActive(true)
	m.logger.Info("Capture session started",
		"session_id", sess.id,
		"pid", handle.PID(),
		"started_at", sess.startedAt)
	m.publish(events.CaptureStartedEvent{
		SessionID: sess.id,
		PID:       handle.PID(),
		StartedAt: sess.startedAt.Format(time.RFC3339Nano),
	})

	go m.watchExit(sess.id, handle)

	return StartResult{SessionID: sess.id, PID: handle.PID(), StartedAt: sess.startedAt}, nil
}

func (m *Manager) startFailed(err error) error {
	m.logger.Error("Failed to start capture", "error", err)
	m.publish(events.CaptureFailedEvent{
		Message:   "Failed to start capture",
		Error:     err.Error(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
	return err
}

// watchExit reports a subprocess that exits while its session is still
// active. The session stays active until it is stopped so the stop sweep
// still reaps the driver and browser it left behind.
func (m *Manager) watchExit(id string, handle *process.Handle) {
	<-handle.Done()

	m.mu.RLock()
	current := m.session.id == id && m.session.active && !m.session.stopping
	m.mu.RUnlock()
	if !current {
		return
	}

	info := handle.Info()
	m.logger.Warn("Capture process exited while session active",
		"session_id", id,
		"pid", info.PID,
		"exit_code", info.ExitCode)
	m.publish(events.CaptureExitedEvent{
		SessionID: id,
		PID:       info.PID,
		ExitCode:  info.ExitCode,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// Status is a consistent snapshot of the session.
type Status struct {
	Active    bool
	Stopping  bool
	SessionID string
	PID       int
	// Running is false once the subprocess exited, even if the session is
	// still active.
	Running    bool
	StartedAt  time.Time
	OwnedPIDs  []int
	CurrentURL *string

	ProtectedPID       int
	ProtectedStartedAt time.Time
}

// Status returns a snapshot of the session. It never fails; a probe error
// leaves CurrentURL nil.
func (m *Manager) Status(ctx context.Context) Status {
	st := m.snapshot()
	if !st.Active || m.deps.Probe == nil {
		return st
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
	defer cancel()
	if url, err := m.probe(probeCtx); err == nil {
		st.CurrentURL = &url
	} else {
		m.logger.Debug("Current URL unavailable", "error", err)
	}
	return st
}

// CurrentURL returns the page the subprocess is on. It fails with
// ErrNoActiveSession when idle.
func (m *Manager) CurrentURL(ctx context.Context) (string, error) {
	if !m.snapshot().Active {
		return "", ErrNoActiveSession
	}
	if m.deps.Probe == nil {
		return "", ErrNoURL
	}
	probeCtx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
	defer cancel()
	return m.probe(probeCtx)
}

// probe converts a panicking probe into an error.
func (m *Manager) probe(ctx context.Context) (url string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("url probe panicked: %v", r)
		}
	}()
	return m.deps.Probe.CurrentURL(ctx)
}

func (m *Manager) snapshot() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Status{
		Active:             m.session.active,
		Stopping:           m.session.stopping,
		SessionID:          m.session.id,
		StartedAt:          m.session.startedAt,
		OwnedPIDs:          ownedList(m.session.owned),
		ProtectedPID:       m.protectedPID,
		ProtectedStartedAt: m.protectedAt,
	}
	if h := m.session.handle; h != nil {
		st.PID = h.PID()
		st.Running = h.Running()
	}
	return st
}

// SetProtected marks pid as never to be terminated by a sweep. Zero clears
// it. The protection survives session changes.
func (m *Manager) SetProtected(pid int, openedAt time.Time) {
	m.mu.Lock()
	m.protectedPID = pid
	m.protectedAt = openedAt
	m.mu.Unlock()

	if pid == 0 {
		m.logger.Info("Protected process cleared")
	} else {
		m.logger.Info("Protected process set", "pid", pid, "opened_at", openedAt)
	}
	m.publish(events.ProtectedProcessEvent{PID: pid, Timestamp: time.Now().Format(time.RFC3339)})
}

// Protected returns the protected PID and when it was opened.
func (m *Manager) Protected() (int, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.protectedPID, m.protectedAt
}

// TrackProcess records pid as owned by the active session.
func (m *Manager) TrackProcess(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.session.active {
		return ErrNoActiveSession
	}
	m.session.owned[pid] = struct{}{}
	return nil
}

// SetGracefulTimeout changes the terminate-to-kill wait for later stops.
func (m *Manager) SetGracefulTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.gracefulTimeout = d
	m.mu.Unlock()
}

// GracefulTimeout returns the current terminate-to-kill wait.
func (m *Manager) GracefulTimeout() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gracefulTimeout
}

// resetIdle replaces every per-session field.
func (m *Manager) resetIdle() {
	m.mu.Lock()
	m.session = captureSession{}
	m.mu.Unlock()
	metrics.SetCaptureActive(false)
}

func (m *Manager) publish(ev events.Event) {
	if m.deps.Bus != nil {
		m.deps.Bus.Publish(ev)
	}
}

func ownedList(owned map[int]struct{}) []int {
	if len(owned) == 0 {
		return nil
	}
	out := make([]int, 0, len(owned))
	for pid := range owned {
		out = append(out, pid)
	}
	slices.Sort(out)
	return out
}

// IsStartRejection reports whether err is a rejection rather than a failure.
func IsStartRejection(err error) bool {
	return errors.Is(err, ErrAlreadyActive) || errors.Is(err, ErrTerminating)
}
