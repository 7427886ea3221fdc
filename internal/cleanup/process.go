package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnsupported is returned by listers that cannot enumerate processes on
// the current platform.
var ErrUnsupported = errors.New("process enumeration not supported on this platform")

// ErrStillRunning reports a process that survived its kill signal.
var ErrStillRunning = errors.New("process still running after kill")

// DefaultKillWait bounds how long SignalKiller waits for a killed process
// to disappear.
const DefaultKillWait = time.Second

// ProcessInfo describes one live OS process.
type ProcessInfo struct {
	PID       int
	PPID      int
	Name      string
	CreatedAt time.Time

	cmdline func() (string, error)
}

// NewProcessInfo builds a ProcessInfo whose command line is read lazily.
func NewProcessInfo(pid, ppid int, name string, createdAt time.Time, cmdline func() (string, error)) ProcessInfo {
	return ProcessInfo{PID: pid, PPID: ppid, Name: name, CreatedAt: createdAt, cmdline: cmdline}
}

// CommandLine returns the full command line, or "" if it cannot be read
// (the process exited, or access was denied).
func (p ProcessInfo) CommandLine() string {
	if p.cmdline == nil {
		return ""
	}
	line, err := p.cmdline()
	if err != nil {
		return ""
	}
	return line
}

// Lister enumerates live processes.
type Lister interface {
	List(ctx context.Context) ([]ProcessInfo, error)
}

// ListerFunc adapts a function to Lister.
type ListerFunc func(ctx context.Context) ([]ProcessInfo, error)

// List calls f(ctx).
func (f ListerFunc) List(ctx context.Context) ([]ProcessInfo, error) { return f(ctx) }

// Killer terminates a single process.
type Killer interface {
	Kill(pid int) error
}

// KillerFunc adapts a function to Killer.
type KillerFunc func(pid int) error

// Kill calls f(pid).
func (f KillerFunc) Kill(pid int) error { return f(pid) }

// waitGone polls until alive reports pid gone or wait elapses.
func waitGone(pid int, wait time.Duration, alive func(int) bool) error {
	deadline := time.Now().Add(wait)
	for alive(pid) {
		if time.Now().After(deadline) {
			return fmt.Errorf("pid %d: %w", pid, ErrStillRunning)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}
