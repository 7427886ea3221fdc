//go:build !windows

package cleanup

import (
	"errors"
	"syscall"
)

// SignalKiller sends SIGKILL and waits up to DefaultKillWait for the process
// to disappear. A process that is still there afterwards is reported with
// ErrStillRunning, so it is never counted as terminated.
func SignalKiller() Killer {
	return KillerFunc(func(pid int) error {
		if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
			return err
		}
		return waitGone(pid, DefaultKillWait, alive)
	})
}

// alive reports whether pid still exists and has not exited. A zombie has
// exited; it only waits for its parent to reap it.
func alive(pid int) bool {
	err := syscall.Kill(pid, 0)
	if err != nil && !errors.Is(err, syscall.EPERM) {
		return false
	}
	return !isZombie(pid)
}
