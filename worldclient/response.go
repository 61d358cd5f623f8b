package worldclient

import (
	"context"
	"sync"
)

// Response is the handle returned by CurrentSnapshot, Snapshot, and
// Range: it yields exactly one WorldState. Callers must call Close when
// done with it (Go has no destructors to do this implicitly).
type Response struct {
	ticket uint32
	mux    *Mux
	slot   *requestSlot

	mu       sync.Mutex
	resolved bool
	state    WorldState
	err      error
	closed   bool
}

// Get blocks until the request resolves (or ctx is done) and returns
// its WorldState. Subsequent calls return the same cached result
// without touching the channel again. A nil ctx blocks indefinitely,
// matching the source's "no per-request timeout" default.
func (r *Response) Get(ctx context.Context) (WorldState, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.Lock()
	if r.resolved {
		state, err := r.state, r.err
		r.mu.Unlock()
		return state, err
	}
	r.mu.Unlock()

	msg, err := r.slot.recv(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.resolved = true
	r.state, r.err = msg.state, msg.err
	r.mu.Unlock()
	return msg.state, msg.err
}

// Ready reports whether Get would return immediately without blocking.
func (r *Response) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved {
		return true
	}
	if msg, ok := r.slot.pop(); ok {
		r.resolved = true
		r.state, r.err = msg.state, msg.err
		return true
	}
	return false
}

// IsError reports whether the already-observed resolution was an
// error. Call Ready or Get first; before resolution it returns false.
func (r *Response) IsError() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolved && r.err != nil
}

// GetError returns the error observed by the last Ready/Get call, or
// nil if none.
func (r *Response) GetError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close releases the ticket's RequestSlot. Safe to call more than once.
func (r *Response) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()
	r.mux.markFinished(r.ticket)
}

// StepResponse is the handle returned by Stream: it yields a sequence
// of WorldStates terminated by an empty WorldState (if the server sent
// request_complete) or an error (if the connection failed first).
type StepResponse struct {
	ticket uint32
	mux    *Mux
	slot   *requestSlot

	mu      sync.Mutex
	done    bool
	err     error
	peeked  *resultMsg
	closed  bool
}

// Next blocks for the next step (or ctx is done). After the stream
// errors, every subsequent call returns immediately with the same
// terminal error; after a clean completion (reported via IsComplete),
// every subsequent call returns ErrInvalidHandle.
func (s *StepResponse) Next(ctx context.Context) (WorldState, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.peeked != nil {
		msg := *s.peeked
		s.peeked = nil
		s.mu.Unlock()
		return s.apply(msg)
	}
	if s.done {
		err := s.err
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return nil, ErrInvalidHandle
	}
	s.mu.Unlock()

	msg, err := s.slot.recv(ctx)
	if err != nil {
		return nil, err
	}
	return s.apply(msg)
}

func (s *StepResponse) apply(msg resultMsg) (WorldState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.err != nil {
		s.done, s.err = true, msg.err
		return nil, msg.err
	}
	if msg.done {
		s.done = true
	}
	return msg.state, nil
}

// HasNext reports whether a future Next call can still produce a step
// (as opposed to having already completed or errored).
func (s *StepResponse) HasNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.done || s.peeked != nil
}

// Ready reports whether Next would return immediately without
// blocking.
func (s *StepResponse) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peeked != nil || s.done {
		return true
	}
	if msg, ok := s.slot.pop(); ok {
		s.peeked = &msg
		return true
	}
	return false
}

// IsError reports whether the stream ended in error.
func (s *StepResponse) IsError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err != nil
}

// GetError returns the stream's terminal error, or nil.
func (s *StepResponse) GetError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// IsComplete reports whether the stream ended cleanly (request_complete
// observed, no error).
func (s *StepResponse) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done && s.err == nil
}

// Close releases the ticket's RequestSlot. Safe to call more than once.
func (s *StepResponse) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.mux.markFinished(s.ticket)
}
