package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the instance lock inside the logs directory.
const LockFileName = "supervisor.lock"

// InstanceLock keeps a second supervisor from managing the same project,
// which would break the single-session guarantee across processes.
type InstanceLock struct {
	lock *flock.Flock
}

// AcquireInstanceLock takes the lock at path without blocking. It returns
// ErrInstanceRunning if another process holds it.
func AcquireInstanceLock(path string) (*InstanceLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	fileLock := flock.New(path)
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock held: %s)", ErrInstanceRunning, path)
	}
	return &InstanceLock{lock: fileLock}, nil
}

// Path returns the lock file path.
func (l *InstanceLock) Path() string {
	return l.lock.Path()
}

// Release unlocks the file. The file itself is left in place.
func (l *InstanceLock) Release() error {
	return l.lock.Unlock()
}
