// Package domain holds the error taxonomy shared by the roster, recognition,
// attendance and camera packages. Operations wrap these sentinels with
// context, callers match them with errors.Is.
package domain

import "errors"

var (
	// ErrInvalidInput is returned when a caller passes an empty identity or an
	// unreadable image. The operation is aborted without a state change.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDataCorruption reports a malformed roster file. The store recovers by
	// using an empty roster.
	ErrDataCorruption = errors.New("roster data corrupted")

	// ErrEncodingFailure reports a reference photo that could not be decoded or
	// has no detectable face. Only that roster entry is skipped.
	ErrEncodingFailure = errors.New("face encoding failed")

	// ErrIOFailure reports a failed attendance export. The log stays in memory.
	ErrIOFailure = errors.New("export failed")

	// ErrDeviceUnavailable is returned when the camera cannot be opened.
	ErrDeviceUnavailable = errors.New("camera unavailable")

	// ErrSessionActive is returned by Start when a session is already running.
	ErrSessionActive = errors.New("session already active")

	// ErrSessionIdle is returned by Stop when no session is running.
	ErrSessionIdle = errors.New("no active session")
)
