// Package syncutil provides small synchronization primitives not found
// in the standard library, used internally by the connection cores for
// bounded goroutine-lifecycle joins.
package syncutil

import (
	"sync"
	"time"
)

// condTimed is a sync.Cond with a timeout-capable Wait.
type condTimed struct {
	sync.Cond
}

// waitRelTimeout is like Wait, but returns false if when elapses before
// the condition is signalled rather than blocking forever.
func (c *condTimed) waitRelTimeout(when time.Duration) bool {
	timer := time.AfterFunc(when, func() {
		c.L.Lock()
		c.Broadcast()
		c.L.Unlock()
	})
	c.Wait()
	return timer.Stop()
}

// DeadlineGroup is a sync.WaitGroup that can also be waited on with a
// deadline: FanIn.Disconnect and Mux.Close join worker/receive-loop
// goroutines that are already guaranteed to exit promptly via a
// transport.CancelToken, but callers that want a hard upper bound on
// shutdown (e.g. a process-level shutdown timeout) can use
// WaitRelTimeout instead of Wait.
type DeadlineGroup struct {
	mu    sync.Mutex
	cv    condTimed
	count int
}

// NewDeadlineGroup returns a ready-to-use DeadlineGroup.
func NewDeadlineGroup() *DeadlineGroup {
	g := &DeadlineGroup{}
	g.cv.L = &g.mu
	return g
}

// Add registers n more goroutines to wait for. Call it before starting
// them, mirroring sync.WaitGroup.
func (g *DeadlineGroup) Add(n int) {
	g.mu.Lock()
	g.count += n
	g.mu.Unlock()
}

// Done marks one goroutine finished. It panics if the count would drop
// below zero, the same contract as sync.WaitGroup.
func (g *DeadlineGroup) Done() {
	g.mu.Lock()
	g.count--
	if g.count < 0 {
		g.mu.Unlock()
		panic("syncutil: DeadlineGroup count dropped below zero")
	}
	if g.count == 0 {
		g.cv.Broadcast()
	}
	g.mu.Unlock()
}

// Wait blocks until every outstanding Add has a matching Done.
func (g *DeadlineGroup) Wait() {
	g.mu.Lock()
	for g.count != 0 {
		g.cv.Wait()
	}
	g.mu.Unlock()
}

// WaitRelTimeout is like Wait but gives up after d, returning false if
// the count was still nonzero when it did.
func (g *DeadlineGroup) WaitRelTimeout(d time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.count != 0 {
		if !g.cv.waitRelTimeout(d) {
			break
		}
	}
	return g.count == 0
}
