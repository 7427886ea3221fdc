package process

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/smazurov/xpathnode/internal/locator"
)

// Log file names inside the logs directory.
const (
	StdoutLogName = "capture_stdout.log"
	StderrLogName = "capture_stderr.log"
)

// DefaultKillTimeout bounds the wait after a forced kill.
const DefaultKillTimeout = 5 * time.Second

// waitDelay bounds how long Wait lingers on output pipes held open by
// grandchildren (browser, driver) after the subprocess itself exits.
const waitDelay = 2 * time.Second

// Options configures a Launcher.
type Options struct {
	BaseDir string // working directory of the subprocess
	LogsDir string

	Browser   string // value of --browser, "edge" if empty
	ExtraArgs string // appended to the command line, shell-style quoting

	// Env entries override or extend the built-in environment overlay.
	Env map[string]string

	KillTimeout time.Duration

	// Output, when set, also receives every line the subprocess prints.
	Output OutputHandler
}

// Launcher spawns capture subprocesses.
type Launcher struct {
	opts   Options
	logger *slog.Logger
}

// NewLauncher creates a Launcher.
func NewLauncher(opts Options, logger *slog.Logger) *Launcher {
	if opts.Browser == "" {
		opts.Browser = "edge"
	}
	if opts.KillTimeout <= 0 {
		opts.KillTimeout = DefaultKillTimeout
	}
	if opts.LogsDir == "" {
		opts.LogsDir = filepath.Join(opts.BaseDir, "logs")
	}
	return &Launcher{opts: opts, logger: logger}
}

// StdoutLogPath returns the file receiving subprocess stdout.
func (l *Launcher) StdoutLogPath() string {
	return filepath.Join(l.opts.LogsDir, StdoutLogName)
}

// StderrLogPath returns the file receiving subprocess stderr.
func (l *Launcher) StderrLogPath() string {
	return filepath.Join(l.opts.LogsDir, StderrLogName)
}

// Launch starts the capture subprocess. The log files are created (and
// truncated) before the spawn is attempted, so they exist even when it fails.
// ctx only gates the attempt; cancelling it later does not affect the process.
func (l *Launcher) Launch(ctx context.Context, art locator.Artifacts) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &SpawnError{Cause: err}
	}

	args, err := buildArgs(l.opts.BaseDir, art, l.opts.Browser, l.opts.ExtraArgs)
	if err != nil {
		return nil, &SpawnError{Cause: err}
	}

	if err := os.MkdirAll(l.opts.LogsDir, 0o755); err != nil {
		return nil, &SpawnError{Cause: fmt.Errorf("create logs dir: %w", err)}
	}
	stdout, err := os.Create(l.StdoutLogPath())
	if err != nil {
		return nil, &SpawnError{Cause: fmt.Errorf("open stdout log: %w", err)}
	}
	stderr, err := os.Create(l.StderrLogPath())
	if err != nil {
		stdout.Close()
		return nil, &SpawnError{Cause: fmt.Errorf("open stderr log: %w", err)}
	}

	cmd := exec.Command(art.Runtime, args...)
	cmd.Dir = l.opts.BaseDir
	cmd.Env = append(os.Environ(), l.environment()...)
	cmd.SysProcAttr = sysProcAttr()

	sinks := []io.Closer{stdout, stderr}
	if l.opts.Output == nil {
		cmd.Stdout = stdout
		cmd.Stderr = stderr
	} else {
		cmd.WaitDelay = waitDelay
		cmd.Stdout = l.tee(stdout, "stdout", &sinks)
		cmd.Stderr = l.tee(stderr, "stderr", &sinks)
	}

	startedAt := time.Now()
	if err := cmd.Start(); err != nil {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		closeAll(sinks)
		l.logger.Error("Failed to start capture process", "error", err, "runtime", art.Runtime)
		return nil, &SpawnError{Cause: err}
	}

	if l.opts.Output == nil {
		// The child holds its own descriptors now
		closeAll(sinks)
		sinks = nil
	}

	l.logger.Info("Capture process started",
		"pid", cmd.Process.Pid,
		"runtime", art.Runtime,
		"args", args,
		"dir", cmd.Dir)

	return newHandle(cmd, startedAt, l.opts.KillTimeout, l.logger, sinks), nil
}

// tee writes subprocess output to file and streams it line by line to the
// Output handler. The pipe writer is appended to sinks so it is closed after Wait.
func (l *Launcher) tee(file *os.File, source string, sinks *[]io.Closer) io.Writer {
	pr, pw := io.Pipe()
	*sinks = append(*sinks, pw)
	go streamOutput(pr, source, l.opts.Output, l.logger)
	return io.MultiWriter(file, pw)
}

func (l *Launcher) environment() []string {
	env := map[string]string{
		"PYTHONUNBUFFERED":       "1",
		"EDGE_LOG_FILE":          os.DevNull,
		"EDGE_SUPPRESS_WARNINGS": "1",
	}
	for k, v := range l.opts.Env {
		env[k] = v
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
