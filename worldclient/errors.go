package worldclient

import "errors"

// These are the sticky error kinds a requestSlot can resolve a pending
// ticket with. Callers compare with errors.Is.
var (
	ErrNotConnected    = errors.New("worldclient: not connected")
	ErrConnectionClosed = errors.New("worldclient: connection closed")
	ErrMuxClosing       = errors.New("worldclient: world model connection object is being destroyed")
)

// ErrHandshakeMismatch is returned by reconnect when the world model's
// echoed handshake bytes do not match.
var ErrHandshakeMismatch = errors.New("worldclient: handshake mismatch")

// ErrInvalidHandle is returned by Next when called on a StepResponse
// that has already observed a clean completion. A stream that ended in
// an error keeps returning that error instead.
var ErrInvalidHandle = errors.New("worldclient: next() called on a finished handle")
