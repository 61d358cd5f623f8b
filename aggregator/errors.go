package aggregator

import "errors"

// ErrHandshakeMismatch is logged and the worker exits when its
// handshake echo does not match. It surfaces from Disconnect and
// DisconnectTimeout (combined across every worker via multierr) once
// the caller joins the worker that hit it.
var ErrHandshakeMismatch = errors.New("aggregator: handshake mismatch, worker exiting")
