package uplink

import (
	"errors"

	"go.uber.org/zap"

	"github.com/grail-rtls/solverconn/transport"
	"github.com/grail-rtls/solverconn/wire"
)

// runTracker reads frames off conn until it breaks or tok is
// cancelled, handling the three message types the world model sends
// unsolicited to the uplink side: start/stop_on_demand and keep_alive.
// It exits silently on any transport error; the next sendAndReconnect
// call observes the dead connection and restarts a fresh tracker via
// reconnect.
func (u *Uplink) runTracker(conn *transport.Conn, tok *transport.CancelToken) {
	for {
		body, err := conn.Receive(tok)
		if err != nil {
			if errors.Is(err, transport.ErrFrameTooShort) {
				u.logger.Debug("ignoring empty frame", zap.Error(err))
				continue
			}
			return
		}
		if tok.IsCancelled() {
			return
		}
		if len(body) < 1 {
			continue
		}

		switch wire.Tag(body[0]) {
		case wire.TagStartOnDemand:
			u.handleStartOnDemand(body[1:])
		case wire.TagStopOnDemand:
			u.handleStopOnDemand(body[1:])
		case wire.TagKeepAlive:
			// A direct, non-recursive send on this tracker's own conn: going
			// through sendAndReconnect here would try to retake sendMu, which
			// reconnectLocked already holds while joining this very goroutine
			// if the connection is being torn down concurrently. TryLock skips
			// the reply rather than deadlocking; the connection is about to be
			// replaced anyway in that case.
			if u.sendMu.TryLock() {
				if err := conn.Send(u.codec.EncodeKeepAlive()); err != nil {
					u.logger.Debug("keep-alive reply failed", zap.Error(err))
				}
				u.sendMu.Unlock()
			}
		}
	}
}

func (u *Uplink) handleStartOnDemand(body []byte) {
	reqs, err := u.codec.DecodeStartOnDemand(body)
	if err != nil {
		u.logger.Debug("malformed start_on_demand", zap.Error(err))
		return
	}
	u.transMu.Lock()
	defer u.transMu.Unlock()
	for _, r := range reqs {
		for _, pattern := range r.Patterns {
			u.gate.add(r.Alias, pattern)
		}
	}
}

func (u *Uplink) handleStopOnDemand(body []byte) {
	reqs, err := u.codec.DecodeStopOnDemand(body)
	if err != nil {
		u.logger.Debug("malformed stop_on_demand", zap.Error(err))
		return
	}
	u.transMu.Lock()
	defer u.transMu.Unlock()
	for _, r := range reqs {
		for _, pattern := range r.Patterns {
			u.gate.remove(r.Alias, pattern)
		}
	}
}
