package aggregator

import (
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/grail-rtls/solverconn"
	"github.com/grail-rtls/solverconn/internal/syncutil"
	"github.com/grail-rtls/solverconn/wire"
)

// Callback receives each valid sample decoded from any endpoint. It is
// invoked under FanIn's callback lock, so it may safely touch shared
// state without its own synchronization, but it must not block for long
// or call back into FanIn.
type Callback func(wire.Sample)

// FanIn maintains one long-lived subscription per configured aggregator
// endpoint and delivers decoded samples into a single Callback. No
// connection is opened until the first AddRules call.
type FanIn struct {
	codec     wire.AggregatorCodec
	callback  Callback
	logger    *zap.Logger
	endpoints []solverconn.Endpoint

	subMu sync.RWMutex
	subs  []wire.Subscription

	cbMu sync.Mutex

	workersMu sync.Mutex
	workers   []*worker
	running   bool
	wg        *syncutil.DeadlineGroup

	errMu   sync.Mutex
	runErrs error
}

// New constructs a FanIn over the given endpoints. callback is invoked
// for every valid sample from any endpoint; codec supplies the wire
// encoding. No goroutines are started until AddRules.
func New(servers []solverconn.Endpoint, codec wire.AggregatorCodec, callback Callback, opts ...Option) *FanIn {
	f := &FanIn{
		codec:     codec,
		callback:  callback,
		logger:    zap.NewNop(),
		endpoints: append([]solverconn.Endpoint(nil), servers...),
		wg:        syncutil.NewDeadlineGroup(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// AddRules appends sub to the shared subscription list. If no workers
// are currently running, it builds one fresh worker per configured
// endpoint and starts them. Otherwise each running worker is woken so
// it can send every subscription past its own frontier.
func (f *FanIn) AddRules(sub wire.Subscription) {
	f.subMu.Lock()
	f.subs = append(f.subs, sub)
	f.subMu.Unlock()

	f.workersMu.Lock()
	defer f.workersMu.Unlock()
	if !f.running {
		f.running = true
		f.workers = f.buildWorkersLocked()
		f.spawnWorkersLocked()
		return
	}
	for _, w := range f.workers {
		w.wake()
	}
}

// UpdateRules replaces the subscription list with the single rule sub,
// disconnecting every worker, discarding them, and starting fresh ones
// against the new list.
func (f *FanIn) UpdateRules(sub wire.Subscription) {
	f.Disconnect()

	f.subMu.Lock()
	f.subs = []wire.Subscription{sub}
	f.subMu.Unlock()

	f.workersMu.Lock()
	f.running = true
	f.workers = f.buildWorkersLocked()
	f.spawnWorkersLocked()
	f.workersMu.Unlock()
}

// buildWorkersLocked must be called with workersMu held. It constructs
// one fresh worker per configured endpoint, each starting from an
// uncancelled token -- a worker is never reused across a
// Disconnect/restart cycle, so there is no stale cancellation state to
// reset.
func (f *FanIn) buildWorkersLocked() []*worker {
	out := make([]*worker, len(f.endpoints))
	for i, ep := range f.endpoints {
		out[i] = newWorker(f, ep)
	}
	return out
}

// spawnWorkersLocked must be called with workersMu held.
func (f *FanIn) spawnWorkersLocked() {
	for _, w := range f.workers {
		f.wg.Add(1)
		go func(w *worker) {
			defer f.wg.Done()
			if err := w.run(); err != nil {
				f.errMu.Lock()
				f.runErrs = multierr.Append(f.runErrs, err)
				f.errMu.Unlock()
			}
		}(w)
	}
}

// Disconnect cancels every running worker, joins them, clears the
// worker list (so a later AddRules builds fresh workers rather than
// respawning already-cancelled ones), and returns every worker's
// terminal error combined with multierr (nil if every worker exited
// cleanly). It is a no-op if no workers have been started.
func (f *FanIn) Disconnect() error {
	if f.stopWorkers() {
		f.wg.Wait()
	}
	f.workersMu.Lock()
	f.workers = nil
	f.workersMu.Unlock()
	return f.takeRunErrs()
}

// DisconnectTimeout is like Disconnect but gives up waiting after d,
// reporting whether every worker actually exited in time. Workers are
// still cancelled and the worker list is still cleared either way; a
// false joined return only means the caller moved on before the join
// finished, so the combined error may be missing a worker that had not
// yet reported in.
func (f *FanIn) DisconnectTimeout(d time.Duration) (joined bool, err error) {
	running := f.stopWorkers()
	joined = true
	if running {
		joined = f.wg.WaitRelTimeout(d)
	}
	f.workersMu.Lock()
	f.workers = nil
	f.workersMu.Unlock()
	return joined, f.takeRunErrs()
}

func (f *FanIn) takeRunErrs() error {
	f.errMu.Lock()
	defer f.errMu.Unlock()
	err := f.runErrs
	f.runErrs = nil
	return err
}

func (f *FanIn) stopWorkers() bool {
	f.workersMu.Lock()
	defer f.workersMu.Unlock()
	for _, w := range f.workers {
		w.cancel()
	}
	running := f.running
	f.running = false
	return running
}

// subscriptionsFrom returns a snapshot of subs[from:] under the
// subscription lock, letting each worker compute its own missing
// suffix instead of relying on a shared replay signal.
func (f *FanIn) subscriptionsFrom(from int) []wire.Subscription {
	f.subMu.RLock()
	defer f.subMu.RUnlock()
	if from >= len(f.subs) {
		return nil
	}
	out := make([]wire.Subscription, len(f.subs)-from)
	copy(out, f.subs[from:])
	return out
}

func (f *FanIn) deliver(s wire.Sample) {
	f.cbMu.Lock()
	defer f.cbMu.Unlock()
	f.callback(s)
}
