//go:build !windows

package process

import (
	"errors"
	"os"
	"syscall"
)

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup signals the whole process group led by proc. If the group is
// already gone the leader is signalled directly.
func signalGroup(proc *os.Process, sig syscall.Signal) error {
	err := syscall.Kill(-proc.Pid, sig)
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ESRCH) {
		return proc.Signal(sig)
	}
	return err
}

func terminate(proc *os.Process) error {
	return signalGroup(proc, syscall.SIGTERM)
}

func kill(proc *os.Process) error {
	return signalGroup(proc, syscall.SIGKILL)
}
