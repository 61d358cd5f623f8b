package transport

import (
	"sync/atomic"
)

// CancelToken is a single cancellation predicate shared by a long-lived
// loop and the transport read it blocks on. The source read one
// interrupt_type field both as an enum (to distinguish a fatal close from
// a non-fatal "add subscriptions" wakeup) and, via a cast, as a bool (to
// satisfy the non-blocking socket library's cancel check). CancelToken
// replaces that dual reading with one atomic int32 and a single
// IsCancelled predicate; the aggregator worker distinguishes "new
// subscriptions" from "close" on top of it with a separate wake channel,
// merged with its token for each receive (see aggregator's mergeCancel).
type CancelToken struct {
	flag int32
	done chan struct{}
}

// NewCancelToken returns a token in the not-cancelled state.
func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel flips the token. It is safe to call more than once.
func (t *CancelToken) Cancel() {
	if atomic.CompareAndSwapInt32(&t.flag, 0, 1) {
		close(t.done)
	}
}

// IsCancelled reports whether Cancel has been called.
func (t *CancelToken) IsCancelled() bool {
	return atomic.LoadInt32(&t.flag) != 0
}

// Done returns a channel that is closed when Cancel is called, so a
// blocking read loop can select on it between frames.
func (t *CancelToken) Done() <-chan struct{} {
	return t.done
}
