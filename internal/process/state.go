package process

import "time"

// State represents the lifecycle state of a spawned subprocess.
type State string

// Subprocess states.
const (
	StateRunning  State = "running"  // Started, not yet asked to stop
	StateStopping State = "stopping" // Terminate or Kill sent
	StateExited   State = "exited"   // Wait returned
)

// Info is a point-in-time view of a Handle.
type Info struct {
	PID       int
	State     State
	StartedAt time.Time
	ExitCode  int // valid when State is StateExited
}
