//go:build windows

package process

import (
	"os"
	"syscall"
)

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// Windows has no SIGTERM; a graceful request is a TerminateProcess too.
func terminate(proc *os.Process) error {
	return proc.Kill()
}

func kill(proc *os.Process) error {
	return proc.Kill()
}
