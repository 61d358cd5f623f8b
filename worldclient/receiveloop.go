package worldclient

import (
	"errors"

	"go.uber.org/zap"

	"github.com/grail-rtls/solverconn/transport"
	"github.com/grail-rtls/solverconn/wire"
)

// receiveLoop is the Mux's single background goroutine: it owns conn's
// read side for its lifetime and dispatches every frame by tag. Any
// transport error clears m.conn (via clearDeadConn) and resolves every
// still-pending ticket with ErrConnectionClosed before exiting, so the
// next sendRequest observes a nil conn and drives the next reconnect
// instead of repeating a Send against the same dead socket forever.
func (m *Mux) receiveLoop(conn *transport.Conn, tok *transport.CancelToken) {
	for {
		body, err := conn.Receive(tok)
		if err != nil {
			if errors.Is(err, transport.ErrFrameTooShort) {
				m.logger.Debug("ignoring empty frame", zap.Error(err))
				continue
			}
			m.clearDeadConn(conn)
			m.failAllPending(err)
			return
		}
		if tok.IsCancelled() {
			return
		}
		if len(body) < 1 {
			continue
		}

		switch wire.Tag(body[0]) {
		case wire.TagAttributeAlias:
			m.handleAliasList(body[1:], m.codec.DecodeAttributeAlias, m.knownAttributes)
		case wire.TagOriginAlias:
			m.handleAliasList(body[1:], m.codec.DecodeOriginAlias, m.knownOrigins)
		case wire.TagDataResponse:
			m.handleDataResponse(body[1:])
		case wire.TagRequestComplete:
			m.handleRequestComplete(body[1:])
		case wire.TagKeepAlive:
			m.replyKeepAlive(conn)
		}
	}
}

func (m *Mux) handleAliasList(body []byte, decode func([]byte) ([]wire.AliasType, error), into map[uint32]string) {
	aliases, err := decode(body)
	if err != nil {
		m.logger.Debug("malformed alias list", zap.Error(err))
		return
	}
	m.aliasMu.Lock()
	defer m.aliasMu.Unlock()
	for _, a := range aliases {
		into[a.Alias] = a.Name
	}
}

func (m *Mux) resolveAttributes(wireAttrs []wire.AliasedAttribute) []Attribute {
	m.aliasMu.RLock()
	defer m.aliasMu.RUnlock()
	out := make([]Attribute, 0, len(wireAttrs))
	for _, a := range wireAttrs {
		out = append(out, Attribute{
			TypeName: m.knownAttributes[a.TypeAlias],
			Created:  a.Created,
			Expires:  a.Expires,
			Origin:   m.knownOrigins[a.OriginAlias],
			Data:     a.Data,
		})
	}
	return out
}

func (m *Mux) handleDataResponse(body []byte) {
	data, ticket, err := m.codec.DecodeDataResponse(body)
	if err != nil {
		m.logger.Debug("malformed data_response", zap.Error(err))
		return
	}
	slot := m.slotFor(ticket)
	if slot == nil {
		return
	}
	attrs := m.resolveAttributes(data.Attributes)
	if slot.single {
		slot.mergeSingle(data.ObjectURI, attrs)
		return
	}
	slot.emitStreamStep(data.ObjectURI, attrs)
}

func (m *Mux) handleRequestComplete(body []byte) {
	ticket, err := m.codec.DecodeRequestComplete(body)
	if err != nil {
		m.logger.Debug("malformed request_complete", zap.Error(err))
		return
	}
	slot := m.slotFor(ticket)
	if slot == nil {
		return
	}
	if slot.single {
		slot.completeSingle()
		return
	}
	slot.completeStream()
}

// replyKeepAlive uses TryLock rather than Lock: a reconnect in progress
// holds outMu while it joins this very goroutine (stopReceiverLocked),
// so a blocking Lock here would deadlock against that join. Skipping
// the reply when the lock is contended is safe -- the connection is
// either about to be replaced or another writer just used it.
func (m *Mux) replyKeepAlive(conn *transport.Conn) {
	if !m.outMu.TryLock() {
		return
	}
	defer m.outMu.Unlock()
	if m.conn != conn {
		return
	}
	if err := conn.Send(m.codec.EncodeKeepAlive()); err != nil {
		m.logger.Debug("keep-alive reply failed", zap.Error(err))
	}
}

func (m *Mux) failAllPending(cause error) {
	for _, slot := range m.allTickets() {
		slot.resolveError(ErrConnectionClosed)
	}
	m.logger.Debug("receive loop exiting on transport error", zap.Error(cause))
}
