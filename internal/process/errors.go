package process

import (
	"errors"
	"fmt"
)

// SpawnError means the subprocess could not be created.
type SpawnError struct {
	Cause error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn capture process: %v", e.Cause)
}

func (e *SpawnError) Unwrap() error {
	return e.Cause
}

// IsSpawnError reports whether err is, or wraps, a SpawnError.
func IsSpawnError(err error) bool {
	var spawnErr *SpawnError
	return errors.As(err, &spawnErr)
}
