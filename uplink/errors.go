package uplink

import "errors"

// ErrHandshakeMismatch is returned by reconnect when the world model's
// echoed handshake bytes do not match.
var ErrHandshakeMismatch = errors.New("uplink: handshake mismatch")

// ErrMaxRetriesExceeded is returned by sendAndReconnect when WithMaxRetries
// set a positive bound and it has been exhausted. With the default of 0,
// sendAndReconnect never returns this error -- it retries forever, matching
// the source's blocking-forever behaviour.
var ErrMaxRetriesExceeded = errors.New("uplink: max retries exceeded")
