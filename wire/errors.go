package wire

import (
	"errors"
	"fmt"
)

// ErrTruncated is returned by a decoder when body does not contain
// enough bytes for the field being read. Callers typically wrap it in a
// ProtocolError along with the tag that was being decoded.
var ErrTruncated = errors.New("wire: truncated field")

// ProtocolError reports a malformed payload for a known message tag,
// as distinct from transport.ErrFrameTooShort (which is about the frame
// itself, not what's inside it).
type ProtocolError struct {
	Tag Tag
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("wire: malformed payload for tag 0x%02x: %s", byte(e.Tag), e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
