//go:build windows

package cleanup

import "os"

// SignalKiller terminates the target process.
func SignalKiller() Killer {
	return KillerFunc(func(pid int) error {
		proc, err := os.FindProcess(pid)
		if err != nil {
			return err
		}
		return proc.Kill()
	})
}
