package worldclient

import (
	"context"
	"sync"
)

// resultMsg is the one message shape the receive loop ever produces for
// a ticket: either a resolved WorldState (with done indicating whether
// more will follow) or a sticky error that ends the ticket for good.
type resultMsg struct {
	state WorldState
	err   error
	done  bool
}

// requestSlot is the per-ticket state shared between the Mux's receive
// loop (sole producer) and the owning Response/StepResponse (sole
// consumer). Pending messages sit in an unbounded queue rather than a
// fixed-capacity channel: the Mux has exactly one receive loop shared
// by every ticket, so a bounded per-ticket buffer would let one slow
// stream consumer block that single goroutine and starve every other
// ticket the moment its buffer filled up. ready signals "queue became
// non-empty" to a blocked consumer; it carries no payload of its own.
type requestSlot struct {
	ticket uint32
	single bool

	mu    sync.Mutex
	queue []resultMsg
	ready chan struct{}

	accumulator WorldState
}

func newRequestSlot(ticket uint32, single bool) *requestSlot {
	s := &requestSlot{ticket: ticket, single: single, ready: make(chan struct{}, 1)}
	if single {
		s.accumulator = WorldState{}
	}
	return s
}

// push appends msg to the queue and wakes a blocked consumer. It never
// blocks regardless of how far behind the consumer has fallen.
func (s *requestSlot) push(msg resultMsg) {
	s.mu.Lock()
	s.queue = append(s.queue, msg)
	s.mu.Unlock()
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// pop removes and returns the head of the queue, if any.
func (s *requestSlot) pop() (resultMsg, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return resultMsg{}, false
	}
	msg := s.queue[0]
	s.queue = s.queue[1:]
	return msg, true
}

// recv blocks until a message is queued or ctx is done.
func (s *requestSlot) recv(ctx context.Context) (resultMsg, error) {
	for {
		if msg, ok := s.pop(); ok {
			return msg, nil
		}
		select {
		case <-s.ready:
		case <-ctx.Done():
			return resultMsg{}, ctx.Err()
		}
	}
}

// resolveError queues a sticky error ending the ticket for good.
func (s *requestSlot) resolveError(err error) {
	s.push(resultMsg{err: err, done: true})
}

// mergeSingle folds one URI's attributes into the accumulator for a
// single-response ticket; called by the receive loop for every
// data_response before the matching request_complete arrives.
func (s *requestSlot) mergeSingle(uri string, attrs []Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accumulator[uri] = attrs
}

// completeSingle resolves the one promise cell with the accumulated
// WorldState and discards the accumulator.
func (s *requestSlot) completeSingle() {
	s.mu.Lock()
	state := s.accumulator
	s.accumulator = nil
	s.mu.Unlock()
	s.push(resultMsg{state: state, done: true})
}

// emitStreamStep queues exactly one URI's attributes for a streaming
// ticket.
func (s *requestSlot) emitStreamStep(uri string, attrs []Attribute) {
	s.push(resultMsg{state: WorldState{uri: attrs}, done: false})
}

// completeStream queues an empty WorldState, signalling end of stream.
func (s *requestSlot) completeStream() {
	s.push(resultMsg{state: WorldState{}, done: true})
}
