package worldclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/grail-rtls/solverconn"
	"github.com/grail-rtls/solverconn/internal/syncutil"
	"github.com/grail-rtls/solverconn/transport"
	"github.com/grail-rtls/solverconn/wire"
)

// Mux is a single connection to the world model's query-facing side. It
// allocates a strictly increasing Ticket for every outbound request and
// demultiplexes the inbound byte stream into independent
// Response/StepResponse handles.
type Mux struct {
	ep     solverconn.Endpoint
	codec  wire.ClientCodec
	logger *zap.Logger

	outMu     sync.Mutex
	conn      *transport.Conn
	connected atomic.Bool
	recvTok   *transport.CancelToken
	recvWG    *syncutil.DeadlineGroup

	promiseMu  sync.Mutex
	nextTicket uint32
	slots      map[uint32]*requestSlot

	aliasMu         sync.RWMutex
	knownAttributes map[uint32]string
	knownOrigins    map[uint32]string
}

// New constructs a Mux, attempts one connection, and starts its receive
// loop if that attempt succeeds. A failed initial connection is not
// fatal: the first request issued against the Mux will retry it.
func New(ep solverconn.Endpoint, codec wire.ClientCodec, opts ...Option) *Mux {
	m := &Mux{
		ep:              ep,
		codec:           codec,
		logger:          zap.NewNop(),
		slots:           make(map[uint32]*requestSlot),
		knownAttributes: make(map[uint32]string),
		knownOrigins:    make(map[uint32]string),
		recvWG:          syncutil.NewDeadlineGroup(),
	}
	for _, o := range opts {
		o(m)
	}
	m.outMu.Lock()
	if err := m.reconnectLocked(); err != nil {
		m.logger.Debug("initial connect failed, will retry on first request", zap.Error(err))
	}
	m.outMu.Unlock()
	return m
}

// Connected reports the cached connection flag.
func (m *Mux) Connected() bool {
	return m.connected.Load()
}

// CurrentSnapshot requests the present attributes for uri, restricted
// to attrs if non-empty.
func (m *Mux) CurrentSnapshot(uri string, attrs []string) *Response {
	return m.Snapshot(wire.Request{URI: uri, Attrs: attrs})
}

// Snapshot issues req as a snapshot request and returns a handle that
// yields exactly one WorldState.
func (m *Mux) Snapshot(req wire.Request) *Response {
	slot := m.issue(true)
	m.sendRequest(slot, func(ticket uint32) []byte { return m.codec.EncodeSnapshotRequest(req, ticket) })
	return &Response{ticket: slot.ticket, mux: m, slot: slot}
}

// Range issues req as a range request over [req.Start, req.End).
func (m *Mux) Range(req wire.Request) *Response {
	slot := m.issue(true)
	m.sendRequest(slot, func(ticket uint32) []byte { return m.codec.EncodeRangeRequest(req, ticket) })
	return &Response{ticket: slot.ticket, mux: m, slot: slot}
}

// Stream issues a streaming request for uri/attrs sampled every
// interval and returns a handle yielding a sequence of WorldStates.
func (m *Mux) Stream(uri string, attrs []string, interval int64) *StepResponse {
	req := wire.Request{URI: uri, Attrs: attrs, Interval: interval}
	slot := m.issue(false)
	m.sendRequest(slot, func(ticket uint32) []byte { return m.codec.EncodeStreamRequest(req, ticket) })
	return &StepResponse{ticket: slot.ticket, mux: m, slot: slot}
}

func (m *Mux) issue(single bool) *requestSlot {
	m.promiseMu.Lock()
	defer m.promiseMu.Unlock()
	ticket := m.nextTicket
	m.nextTicket++
	slot := newRequestSlot(ticket, single)
	m.slots[ticket] = slot
	return slot
}

// sendRequest encodes and sends one outbound request, reconnecting
// first if the socket is down. A failure at either step is recorded as
// a sticky error on the slot rather than returned to the caller, per
// the documented "record a sticky error and return the handle" policy.
func (m *Mux) sendRequest(slot *requestSlot, encode func(ticket uint32) []byte) {
	m.outMu.Lock()
	defer m.outMu.Unlock()

	if m.conn == nil {
		if err := m.reconnectLocked(); err != nil {
			slot.resolveError(fmt.Errorf("%w: %v", ErrNotConnected, err))
			return
		}
	}
	if err := m.conn.Send(encode(slot.ticket)); err != nil {
		m.conn.Close()
		m.conn = nil
		m.connected.Store(false)
		slot.resolveError(fmt.Errorf("%w: %v", ErrConnectionClosed, err))
	}
}

// markFinished removes ticket's RequestSlot, discarding any remaining
// buffered messages.
func (m *Mux) markFinished(ticket uint32) {
	m.promiseMu.Lock()
	defer m.promiseMu.Unlock()
	delete(m.slots, ticket)
}

func (m *Mux) slotFor(ticket uint32) *requestSlot {
	m.promiseMu.Lock()
	defer m.promiseMu.Unlock()
	return m.slots[ticket]
}

func (m *Mux) allTickets() []*requestSlot {
	m.promiseMu.Lock()
	defer m.promiseMu.Unlock()
	out := make([]*requestSlot, 0, len(m.slots))
	for _, s := range m.slots {
		out = append(out, s)
	}
	return out
}

// reconnectLocked must be called with outMu held. It joins any prior
// receive loop, reopens the socket, redoes the handshake, and restarts
// the receive loop. Pending tickets survive reconnect as RequestSlots,
// but whatever the server was doing for them is lost -- a known
// limitation carried from the source.
func (m *Mux) reconnectLocked() error {
	m.stopReceiverLocked()
	m.connected.Store(false)
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}

	conn, err := transport.DialNonBlocking(context.Background(), m.ep)
	if err != nil {
		return err
	}
	if err := conn.Handshake(m.codec.HandshakeMessage()); err != nil {
		conn.Close()
		if errors.Is(err, transport.ErrHandshakeMismatch) {
			return ErrHandshakeMismatch
		}
		return err
	}

	m.conn = conn
	m.connected.Store(true)
	m.startReceiverLocked(conn)
	return nil
}

func (m *Mux) startReceiverLocked(conn *transport.Conn) {
	m.recvTok = transport.NewCancelToken()
	tok := m.recvTok
	m.recvWG.Add(1)
	go func() {
		defer m.recvWG.Done()
		m.receiveLoop(conn, tok)
	}()
}

func (m *Mux) stopReceiverLocked() {
	if m.recvTok == nil {
		return
	}
	m.recvTok.Cancel()
	m.recvWG.Wait()
	m.recvTok = nil
}

// Close tears down the connection, stops the receive loop, and resolves
// every pending ticket with ErrMuxClosing.
func (m *Mux) Close() error {
	m.outMu.Lock()
	defer m.outMu.Unlock()
	m.failPendingLocked()
	m.stopReceiverLocked()
	return m.closeConnLocked()
}

// CloseTimeout is like Close but gives up waiting on the receive loop
// after d, reporting whether it actually exited in time. The connection
// is closed either way, which unblocks the receive loop's read even if
// it missed the deadline.
func (m *Mux) CloseTimeout(d time.Duration) (bool, error) {
	m.outMu.Lock()
	defer m.outMu.Unlock()
	m.failPendingLocked()
	joined := true
	if m.recvTok != nil {
		m.recvTok.Cancel()
		joined = m.recvWG.WaitRelTimeout(d)
		m.recvTok = nil
	}
	err := m.closeConnLocked()
	return joined, err
}

func (m *Mux) failPendingLocked() {
	for _, slot := range m.allTickets() {
		slot.resolveError(ErrMuxClosing)
	}
}

// clearDeadConn closes and forgets conn once the receive loop observes a
// transport error on it, so the next sendRequest sees m.conn == nil and
// takes the reconnectLocked branch instead of repeating a Send against a
// socket that has already failed. It uses TryLock for the same reason
// replyKeepAlive does (receiveloop.go): a reconnect or Close already in
// progress holds outMu while joining this very goroutine via
// stopReceiverLocked, and those paths already clear m.conn themselves,
// so losing the race here is harmless.
func (m *Mux) clearDeadConn(conn *transport.Conn) {
	if !m.outMu.TryLock() {
		return
	}
	defer m.outMu.Unlock()
	if m.conn != conn {
		return
	}
	m.conn.Close()
	m.conn = nil
	m.connected.Store(false)
}

func (m *Mux) closeConnLocked() error {
	if m.conn != nil {
		err := m.conn.Close()
		m.conn = nil
		m.connected.Store(false)
		return err
	}
	return nil
}
