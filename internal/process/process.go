package process

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// OutputHandler receives output lines from the subprocess.
type OutputHandler interface {
	HandleLine(source, line string)
}

// Handle controls a running capture subprocess.
type Handle struct {
	cmd         *exec.Cmd
	pid         int
	startedAt   time.Time
	killTimeout time.Duration
	logger      *slog.Logger
	closers     []io.Closer // closed once Wait returns

	done     chan struct{}
	mu       sync.Mutex
	state    State
	exitCode int
}

func newHandle(cmd *exec.Cmd, startedAt time.Time, killTimeout time.Duration, logger *slog.Logger, closers []io.Closer) *Handle {
	h := &Handle{
		cmd:         cmd,
		pid:         cmd.Process.Pid,
		startedAt:   startedAt,
		killTimeout: killTimeout,
		logger:      logger,
		closers:     closers,
		done:        make(chan struct{}),
		state:       StateRunning,
	}
	go h.wait()
	return h
}

func (h *Handle) wait() {
	err := h.cmd.Wait()
	exitCode := exitCodeFromError(err)
	for _, c := range h.closers {
		_ = c.Close()
	}

	h.mu.Lock()
	h.state = StateExited
	h.exitCode = exitCode
	h.mu.Unlock()

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		h.logger.Error("Capture process wait failed", "pid", h.pid, "error", err)
	}
	h.logger.Info("Capture process exited", "pid", h.pid, "exit_code", exitCode)
	close(h.done)
}

// PID returns the operating system process ID.
func (h *Handle) PID() int { return h.pid }

// StartedAt returns the instant recorded immediately before the process was started.
func (h *Handle) StartedAt() time.Time { return h.startedAt }

// Done is closed when the process has exited and its output sinks are closed.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Running reports whether the process has not yet exited.
func (h *Handle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Info returns a snapshot of the handle state.
func (h *Handle) Info() Info {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Info{
		PID:       h.pid,
		State:     h.state,
		StartedAt: h.startedAt,
		ExitCode:  h.exitCode,
	}
}

// Terminate asks the process group to exit.
func (h *Handle) Terminate() error {
	if !h.Running() {
		return nil
	}
	h.markStopping()
	h.logger.Info("Sending terminate to capture process", "pid", h.pid)
	if err := terminate(h.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// Kill forcibly stops the process group.
func (h *Handle) Kill() error {
	if !h.Running() {
		return nil
	}
	h.markStopping()
	if err := kill(h.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// Stop terminates the process, waiting up to timeout before force-killing it.
// It reports whether the forced kill was needed.
func (h *Handle) Stop(timeout time.Duration) (forced bool) {
	if !h.Running() {
		return false
	}
	if err := h.Terminate(); err != nil {
		h.logger.Warn("Failed to send terminate", "pid", h.pid, "error", err)
	}

	select {
	case <-h.done:
		return false
	case <-time.After(timeout):
	}

	h.logger.Warn("Graceful shutdown timeout, forcing kill", "pid", h.pid, "timeout", timeout)
	if err := h.Kill(); err != nil {
		h.logger.Error("Failed to kill process", "pid", h.pid, "error", err)
	}
	// Secondary timeout so a stuck process never hangs the caller
	select {
	case <-h.done:
	case <-time.After(h.killTimeout):
		h.logger.Error("Process did not exit after kill signal", "pid", h.pid)
	}
	return true
}

func (h *Handle) markStopping() {
	h.mu.Lock()
	if h.state == StateRunning {
		h.state = StateStopping
	}
	h.mu.Unlock()
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// streamOutput hands each line read from reader to handler.
func streamOutput(reader io.Reader, source string, handler OutputHandler, logger *slog.Logger) {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		handler.HandleLine(source, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("Error reading output", "source", source, "error", err)
	}
}

// LogOutput writes subprocess lines to a logger, stderr at warn level.
type LogOutput struct {
	Logger *slog.Logger
}

// HandleLine implements OutputHandler.
func (o LogOutput) HandleLine(source, line string) {
	if source == "stderr" {
		o.Logger.Warn(line, "source", source)
		return
	}
	o.Logger.Info(line, "source", source)
}
