package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/grail-rtls/solverconn"
)

const defaultBufferSize = 16 * 1024

// Conn is a length-prefixed framed socket to one Owl/GRAIL peer. It wraps
// a net.Conn with a buffered reader/writer, the same shape as a connPipe
// wrapping a net.Conn for SP header framing, but the prefix here is a
// plain big-endian uint32 byte count with no fixed header beyond that.
//
// A single Conn is safe for concurrent Send calls (each call is atomic,
// serialized on an internal lock) and concurrent Send/Receive (only the
// write side is locked; the read side takes no lock), but concurrent Receive calls are not
// supported -- exactly one goroutine should own the read side, matching
// every core's single-receiver-goroutine design.
type Conn struct {
	conn net.Conn

	wlock  sync.Mutex
	writer *bufio.Writer

	reader *bufio.Reader
}

// Dial opens a blocking TCP connection to endpoint.
func Dial(ctx context.Context, endpoint solverconn.Endpoint) (*Conn, error) {
	return dial(ctx, endpoint, false)
}

// DialNonBlocking opens a TCP connection to endpoint using a short connect
// deadline derived from ctx, mirroring the source's use of SOCK_NONBLOCK
// for the Client Request Mux (which must be able to report "connected but
// still pending" rather than block the caller indefinitely on connect).
// Go's net package has no SOCK_NONBLOCK equivalent; DialContext with a
// caller-supplied deadline is the idiomatic substitute.
func DialNonBlocking(ctx context.Context, endpoint solverconn.Endpoint) (*Conn, error) {
	return dial(ctx, endpoint, true)
}

func dial(ctx context.Context, endpoint solverconn.Endpoint, nonBlocking bool) (*Conn, error) {
	d := &net.Dialer{}
	if nonBlocking {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	raw, err := d.DialContext(ctx, "tcp", endpoint.String())
	if err != nil {
		return nil, wrap("dial", err)
	}
	return NewConn(raw), nil
}

// NewConn wraps an already-connected net.Conn. Exported so a caller that
// has its own listener/accept path (not used by any core in this module,
// but useful for tests standing up a fake peer) can still get framing for
// free.
func NewConn(raw net.Conn) *Conn {
	return &Conn{
		conn:   raw,
		writer: bufio.NewWriterSize(raw, defaultBufferSize),
		reader: bufio.NewReaderSize(raw, defaultBufferSize),
	}
}

// Handshake sends msg and reads back exactly len(msg) bytes, comparing
// them byte-for-byte against msg. Unlike Send/Receive, the handshake
// bytes are written and read raw, with no length prefix: the framed
// protocol only begins once the handshake has succeeded, matching the
// source's use of the bare client socket for this one exchange before
// constructing its MessageReceiver.
//
// This is the single handshake primitive used by all three cores; how a
// mismatch is handled (fatal for the aggregator worker, retried by the
// uplink and the mux) is a policy decision left to the caller.
func (c *Conn) Handshake(msg []byte) error {
	c.wlock.Lock()
	_, err := c.writer.Write(msg)
	if err == nil {
		err = c.writer.Flush()
	}
	c.wlock.Unlock()
	if err != nil {
		return wrap("handshake", err)
	}

	echo := make([]byte, len(msg))
	if _, err := io.ReadFull(c.reader, echo); err != nil {
		return wrap("handshake", err)
	}
	for i := range msg {
		if msg[i] != echo[i] {
			return wrap("handshake", ErrHandshakeMismatch)
		}
	}
	return nil
}

// Send writes one length-prefixed frame. It is atomic with respect to
// other Send calls on the same Conn: the length prefix and body are never
// interleaved with another writer's frame.
func (c *Conn) Send(body []byte) error {
	c.wlock.Lock()
	defer c.wlock.Unlock()

	if err := binary.Write(c.writer, binary.BigEndian, uint32(len(body))); err != nil {
		return wrap("send", err)
	}
	if _, err := c.writer.Write(body); err != nil {
		return wrap("send", err)
	}
	return wrap("send", c.writer.Flush())
}

// Receive blocks for the next frame and returns its body (the tag is
// body[0] by convention, see package wire). It is cancelled promptly by
// cancel: an in-flight read is unblocked by forcing an already-elapsed
// read deadline on the underlying connection, the closest analogue of the
// source's non-blocking-socket cancel check between frames.
//
// Frames whose body would be empty are never returned as a nil-length
// slice and an error at once; Receive returns ErrFrameTooShort so the
// caller can log-and-ignore per spec rather than treating it as fatal.
func (c *Conn) Receive(cancel *CancelToken) ([]byte, error) {
	if cancel != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-cancel.Done():
				c.conn.SetReadDeadline(time.Unix(0, 0))
			case <-stop:
			}
		}()
	}

	var length uint32
	if err := binary.Read(c.reader, binary.BigEndian, &length); err != nil {
		if cancel != nil && cancel.IsCancelled() {
			c.conn.SetReadDeadline(time.Time{})
			return nil, nil
		}
		return nil, wrap("receive", err)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(c.reader, body); err != nil {
		return nil, wrap("receive", err)
	}
	if cancel != nil {
		c.conn.SetReadDeadline(time.Time{})
	}
	if length == 0 {
		return body, ErrFrameTooShort
	}
	return body, nil
}

// Close closes the underlying socket.
func (c *Conn) Close() error {
	return c.conn.Close()
}
