package session

import "errors"

// Sentinel errors returned by Manager.
var (
	// ErrAlreadyActive rejects a start while a session is active.
	ErrAlreadyActive = errors.New("capture already running")
	// ErrNoActiveSession rejects operations that need an active session.
	ErrNoActiveSession = errors.New("no capture process running")
	// ErrTerminating rejects starts once emergency shutdown has begun.
	ErrTerminating = errors.New("supervisor is shutting down")
	// ErrNoURL means the subprocess has not reported a page URL yet.
	ErrNoURL = errors.New("no URL reported by capture process")
	// ErrInstanceRunning means another supervisor holds the instance lock.
	ErrInstanceRunning = errors.New("another supervisor instance is running")
)
