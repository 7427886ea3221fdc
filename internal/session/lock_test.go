package session

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestInstanceLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", LockFileName)

	first, err := AcquireInstanceLock(path)
	if err != nil {
		t.Fatalf("AcquireInstanceLock() error = %v", err)
	}
	if first.Path() != path {
		t.Errorf("Path() = %q, want %q", first.Path(), path)
	}

	if _, err := AcquireInstanceLock(path); !errors.Is(err, ErrInstanceRunning) {
		t.Fatalf("second AcquireInstanceLock() error = %v, want ErrInstanceRunning", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	again, err := AcquireInstanceLock(path)
	if err != nil {
		t.Fatalf("AcquireInstanceLock() after release error = %v", err)
	}
	_ = again.Release()
}
