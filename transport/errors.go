package transport

import "errors"

var (
	// ErrHandshakeMismatch is returned by Handshake when the peer's echoed
	// bytes do not match byte-for-byte what was sent.
	ErrHandshakeMismatch = errors.New("transport: handshake mismatch")

	// ErrFrameTooShort is returned by Receive when a frame's body is empty
	// and therefore cannot carry a message type tag.
	ErrFrameTooShort = errors.New("transport: frame body too short to carry a message type")
)

// Error wraps a lower-level I/O error encountered while dialing, sending,
// or receiving. Callers that need to distinguish transport failures from
// protocol failures should use errors.As against *Error.
type Error struct {
	Op  string // "dial", "send", "receive", "handshake"
	Err error
}

func (e *Error) Error() string {
	return "transport: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
