package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/grail-rtls/solverconn"
	"github.com/grail-rtls/solverconn/transport"
	"github.com/grail-rtls/solverconn/wire"
)

const reconnectDelay = time.Second

// worker owns one long-lived subscription to one aggregator endpoint.
// It tracks its own frontier into the fan-in's shared subscription list
// instead of relying on a shared replay signal -- see fanin.go's
// subscriptionsFrom, and wake/mergeCancel below for how a new
// subscription interrupts an idle receive.
//
// A worker is never reused across a Disconnect/restart cycle: FanIn
// builds a fresh worker (and a fresh, uncancelled token) per endpoint
// every time it starts running, so there is no cancelled-token state to
// reset here.
type worker struct {
	fanIn *FanIn
	ep    solverconn.Endpoint
	tok   *transport.CancelToken

	mu     sync.Mutex
	wakeCh chan struct{}
	sent   int
}

func newWorker(f *FanIn, ep solverconn.Endpoint) *worker {
	return &worker{
		fanIn:  f,
		ep:     ep,
		tok:    transport.NewCancelToken(),
		wakeCh: make(chan struct{}, 1),
	}
}

func (w *worker) cancel() {
	w.tok.Cancel()
}

// wake nudges the worker to re-check the subscription frontier; it is
// non-blocking and coalesces multiple wakes into one.
func (w *worker) wake() {
	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

// run is the per-worker state machine: Connecting -> Handshaking ->
// Streaming -> Failed -> Connecting, exiting only when the worker's
// cancel token fires or the handshake is rejected. Its return value is
// collected by FanIn.Disconnect and combined across every worker with
// multierr, so a caller tearing down a FanIn with several misbehaving
// endpoints sees all of them, not just the first.
func (w *worker) run() error {
	logger := w.fanIn.logger.With(zap.String("endpoint", w.ep.String()))
	tok := w.tok
	for {
		if tok.IsCancelled() {
			return nil
		}

		conn, err := transport.Dial(context.Background(), w.ep)
		if err != nil {
			logger.Debug("dial failed, retrying", zap.Error(err))
			if !w.sleepOrCancel(tok, reconnectDelay) {
				return nil
			}
			continue
		}

		if err := conn.Handshake(w.fanIn.codec.HandshakeMessage()); err != nil {
			conn.Close()
			if !errors.Is(err, transport.ErrHandshakeMismatch) {
				logger.Debug("handshake failed, retrying", zap.Error(err))
				if !w.sleepOrCancel(tok, reconnectDelay) {
					return nil
				}
				continue
			}
			logger.Info("handshake mismatch, worker exiting", zap.Error(ErrHandshakeMismatch))
			return fmt.Errorf("%s: %w", w.ep, ErrHandshakeMismatch)
		}

		// A fresh connection carries no subscriptions yet, so the
		// frontier restarts at index 0 and the whole list is replayed.
		w.mu.Lock()
		w.sent = 0
		w.mu.Unlock()

		if !w.streamUntilBroken(conn, tok, logger) {
			conn.Close()
			return nil
		}
		conn.Close()

		if tok.IsCancelled() {
			return nil
		}
		if !w.sleepOrCancel(tok, reconnectDelay) {
			return nil
		}
	}
}

// streamUntilBroken sends every not-yet-sent subscription, then loops
// receiving frames until the connection breaks or the token is
// cancelled. It returns false if the caller should stop the worker
// entirely (cancelled), true if it should reconnect and retry.
//
// Each receive is force-interrupted by either tok or a wake() the same
// way: mergeCancel builds a one-shot token covering both, so a
// subscription added to a quiet connection is sent promptly instead of
// waiting for the next frame (or the connection breaking) to notice it
// -- mirroring the source's single interrupt check shared by
// add_subscriptions and close_connection
// (solver_aggregator_connection.cpp's getNextMessage).
func (w *worker) streamUntilBroken(conn *transport.Conn, tok *transport.CancelToken, logger *zap.Logger) bool {
	w.sendPending(conn)

	for {
		if tok.IsCancelled() {
			return false
		}

		readTok, stopMerge := mergeCancel(tok, w.wakeCh)
		body, err := conn.Receive(readTok)
		stopMerge()

		if err != nil {
			if errors.Is(err, transport.ErrFrameTooShort) {
				logger.Debug("ignoring empty frame", zap.Error(err))
				continue
			}
			logger.Debug("transport error, reconnecting", zap.Error(err))
			return true
		}
		if tok.IsCancelled() {
			return false
		}
		if body == nil {
			// Forced out by wake(), not by data or a real cancellation:
			// re-send whatever subscriptions are now pending and go
			// back to waiting.
			w.sendPending(conn)
			continue
		}
		if len(body) < 1 {
			continue
		}

		switch wire.Tag(body[0]) {
		case wire.TagSubscriptionResponse:
			if _, err := w.fanIn.codec.DecodeSubscriptionResponse(body[1:]); err != nil {
				logger.Debug("malformed subscription_response", zap.Error(err))
			}
		case wire.TagServerSample:
			sample, err := w.fanIn.codec.DecodeSample(body[1:])
			if err != nil {
				logger.Debug("malformed server_sample", zap.Error(err))
				continue
			}
			if sample.Valid {
				w.fanIn.deliver(sample)
			}
		}
	}
}

// sendPending sends every subscription beyond the worker's frontier and
// advances it. Missing the race window entirely (another wake arrives
// mid-send) is fine: the next wake will simply re-check the frontier.
func (w *worker) sendPending(conn *transport.Conn) {
	w.mu.Lock()
	from := w.sent
	w.mu.Unlock()

	pending := w.fanIn.subscriptionsFrom(from)
	for _, sub := range pending {
		if err := conn.Send(w.fanIn.codec.EncodeSubscribe(sub)); err != nil {
			return
		}
	}

	w.mu.Lock()
	w.sent = from + len(pending)
	w.mu.Unlock()
}

// mergeCancel returns a fresh token that becomes cancelled as soon as
// either tok is cancelled or extra fires, so a single blocking call can
// be interrupted by either signal. The caller must call stop once it is
// done waiting (whether or not the token fired) to release the
// background goroutine; the returned token is single-use like any
// CancelToken, so a caller that loops must call mergeCancel again for
// the next iteration.
func mergeCancel(tok *transport.CancelToken, extra <-chan struct{}) (merged *transport.CancelToken, stop func()) {
	merged = transport.NewCancelToken()
	stopCh := make(chan struct{})
	go func() {
		select {
		case <-tok.Done():
			merged.Cancel()
		case <-extra:
			merged.Cancel()
		case <-stopCh:
		}
	}()
	return merged, func() { close(stopCh) }
}

func (w *worker) sleepOrCancel(tok *transport.CancelToken, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-tok.Done():
		return false
	}
}
