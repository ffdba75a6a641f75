package shell

import "errors"

// Sentinel errors for session operations. They are wrapped with context and
// compared with errors.Is.
var (
	// ErrConnection is returned when the client could not be started or never
	// reached a prompt.
	ErrConnection = errors.New("connection failed")

	// ErrAuth is returned when the password prompt never clears.
	ErrAuth = errors.New("authentication failed")

	// ErrHostKeyUnknown is returned on first contact with a host whose key is
	// not yet trusted and the caller did not ask to accept it.
	ErrHostKeyUnknown = errors.New("host key unknown")

	// ErrTimeout is returned when the request deadline passes before the
	// completion marker is seen.
	ErrTimeout = errors.New("deadline exceeded before completion marker")

	// ErrLostConnection is returned when the client died mid-command more
	// often than the reconnect budget allows.
	ErrLostConnection = errors.New("connection lost")

	// ErrMarkerNotFound is returned when every listen attempt finished
	// without the completion marker appearing in the output.
	ErrMarkerNotFound = errors.New("completion marker not found")
)
