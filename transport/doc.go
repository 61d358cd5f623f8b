// Package transport implements the framed TCP layer shared by the three
// connection cores: endpoint dialing, length-prefixed message read/write,
// and the handshake byte-echo used by all three wire protocols.
//
// Framing is a big-endian uint32 length prefix followed by that many
// bytes; the first byte of the body is the message type tag. This mirrors
// a connPipe's own framing shape (a bufio.Reader/Writer pair around a
// net.Conn, length-prefix then body) but the prefix width and endianness
// follow the Owl/GRAIL wire protocol rather than the SP header used there.
package transport
