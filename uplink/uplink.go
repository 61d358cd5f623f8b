package uplink

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/grail-rtls/solverconn"
	"github.com/grail-rtls/solverconn/internal/syncutil"
	"github.com/grail-rtls/solverconn/transport"
	"github.com/grail-rtls/solverconn/wire"
)

const (
	firstRetryDelay     = time.Second
	subsequentRetryDelay = 8 * time.Second
)

// TypeSpec names one attribute type a solver intends to publish and
// whether the world model should gate it on-demand.
type TypeSpec struct {
	Name     string
	OnDemand bool
}

// Uplink is a single connection to the world model's uplink-facing
// side. It assigns aliases to every registered type in registration
// order (starting at 1), keeps that connection alive across failures,
// and serialises every outbound write so a caller's send can never be
// lost -- sendAndReconnect retries forever by default.
type Uplink struct {
	ep     solverconn.Endpoint
	origin string
	codec  wire.UplinkCodec
	logger *zap.Logger

	maxRetries int

	aliasMu   sync.Mutex
	aliases   []wire.AliasType
	byName    map[string]uint32
	nextAlias uint32

	sendMu    sync.Mutex
	conn      *transport.Conn
	connected atomic.Bool

	transMu sync.Mutex
	gate    *onDemandGate

	trackerTok *transport.CancelToken
	trackerWG  *syncutil.DeadlineGroup
}

// New constructs an Uplink, assigns aliases to types in order, and
// makes one connection attempt. If that attempt fails, New still
// returns a usable Uplink: the first call that sends data drives the
// retry-forever reconnect loop documented on sendAndReconnect.
func New(ep solverconn.Endpoint, types []TypeSpec, origin string, codec wire.UplinkCodec, opts ...Option) *Uplink {
	u := &Uplink{
		ep:        ep,
		origin:    origin,
		codec:     codec,
		logger:    zap.NewNop(),
		byName:    make(map[string]uint32),
		nextAlias: 1,
		gate:      newOnDemandGate(),
		trackerWG: syncutil.NewDeadlineGroup(),
	}
	for _, o := range opts {
		o(u)
	}
	u.assignAliases(types)
	if err := u.reconnect(); err != nil {
		u.logger.Debug("initial connect failed, will retry on first send", zap.Error(err))
	}
	return u
}

func (u *Uplink) assignAliases(types []TypeSpec) []wire.AliasType {
	u.aliasMu.Lock()
	defer u.aliasMu.Unlock()
	added := make([]wire.AliasType, 0, len(types))
	for _, t := range types {
		if _, ok := u.byName[t.Name]; ok {
			continue
		}
		at := wire.AliasType{Alias: u.nextAlias, Name: t.Name, OnDemand: t.OnDemand}
		u.nextAlias++
		u.byName[t.Name] = at.Alias
		u.aliases = append(u.aliases, at)
		added = append(added, at)
	}
	return added
}

// AddTypes appends aliases for new_types (in registration order) and
// announces only the new entries to the world model.
func (u *Uplink) AddTypes(types []TypeSpec) error {
	added := u.assignAliases(types)
	if len(added) == 0 {
		return nil
	}
	return u.sendAndReconnect(u.codec.EncodeTypeAnnounce(added, u.origin))
}

// SendData builds a SolutionData list from updates, applying on-demand
// gating, and sends it in a single frame -- even if the resulting list
// is empty, which doubles as an application-level keep-alive.
func (u *Uplink) SendData(updates []AttrUpdate, createURIs bool) error {
	data := make([]wire.SolutionData, 0, len(updates))
	for _, up := range updates {
		alias, onDemand, ok := u.lookupAlias(up.TypeName)
		if !ok {
			continue
		}
		if onDemand {
			u.transMu.Lock()
			permitted := u.gate.permits(alias, up.Target)
			u.transMu.Unlock()
			if !permitted {
				continue
			}
		}
		data = append(data, wire.SolutionData{
			Alias:  alias,
			Time:   up.Time,
			Target: up.Target,
			Data:   up.Data,
		})
	}
	return u.sendAndReconnect(u.codec.EncodeSolution(createURIs, data))
}

func (u *Uplink) lookupAlias(name string) (alias uint32, onDemand bool, ok bool) {
	u.aliasMu.Lock()
	defer u.aliasMu.Unlock()
	a, ok := u.byName[name]
	if !ok {
		return 0, false, false
	}
	for _, t := range u.aliases {
		if t.Alias == a {
			return a, t.OnDemand, true
		}
	}
	return a, false, true
}

// CreateURI, ExpireURI, DeleteURI, ExpireAttribute, and DeleteAttribute
// are single-message wrappers around sendAndReconnect.

func (u *Uplink) CreateURI(uri string, created int64) error {
	return u.sendAndReconnect(u.codec.EncodeCreateURI(uri, created, u.origin))
}

func (u *Uplink) ExpireURI(uri string, expires int64) error {
	return u.sendAndReconnect(u.codec.EncodeExpireURI(uri, expires, u.origin))
}

func (u *Uplink) DeleteURI(uri string) error {
	return u.sendAndReconnect(u.codec.EncodeDeleteURI(uri, u.origin))
}

func (u *Uplink) ExpireAttribute(uri, name string, expires int64) error {
	return u.sendAndReconnect(u.codec.EncodeExpireAttribute(uri, name, u.origin, expires))
}

func (u *Uplink) DeleteAttribute(uri, name string) error {
	return u.sendAndReconnect(u.codec.EncodeDeleteAttribute(uri, name, u.origin))
}

// Connected reports the cached connection flag: true once handshake
// has completed, reset to false at the top of every reconnect attempt.
func (u *Uplink) Connected() bool {
	return u.connected.Load()
}

// Close tears down the connection and stops the on-demand tracker.
// An Uplink is not usable after Close.
func (u *Uplink) Close() error {
	u.sendMu.Lock()
	defer u.sendMu.Unlock()
	u.stopTracker()
	return u.closeConnLocked()
}

// CloseTimeout is like Close but gives up waiting on the tracker
// goroutine after d, reporting whether it actually exited in time. The
// connection is closed either way, which unblocks the tracker's read
// even if it missed the deadline.
func (u *Uplink) CloseTimeout(d time.Duration) (bool, error) {
	u.sendMu.Lock()
	defer u.sendMu.Unlock()
	joined := true
	if u.trackerTok != nil {
		u.trackerTok.Cancel()
		joined = u.trackerWG.WaitRelTimeout(d)
		u.trackerTok = nil
	}
	err := u.closeConnLocked()
	return joined, err
}

func (u *Uplink) closeConnLocked() error {
	if u.conn != nil {
		err := u.conn.Close()
		u.conn = nil
		u.connected.Store(false)
		return err
	}
	return nil
}

// sendAndReconnect is the only write path after construction: it
// attempts to send body and, on any transport error or a currently
// disconnected socket, sleeps (1s first, then 8s on each subsequent
// retry), reconnects, and tries again. It retries forever unless
// WithMaxRetries set a positive bound, matching the documented
// "writes must not be lost" contract by default.
func (u *Uplink) sendAndReconnect(body []byte) error {
	u.sendMu.Lock()
	defer u.sendMu.Unlock()

	delay := firstRetryDelay
	retries := 0
	for {
		if u.conn != nil {
			if err := u.conn.Send(body); err == nil {
				return nil
			}
		}

		if u.maxRetries > 0 && retries >= u.maxRetries {
			return ErrMaxRetriesExceeded
		}
		retries++

		time.Sleep(delay)
		delay = subsequentRetryDelay

		if err := u.reconnectLocked(); err != nil {
			u.logger.Debug("reconnect failed, retrying", zap.Error(err))
		}
	}
}

// reconnect performs the full connection procedure under the send
// mutex: it is exported internally as the initial-connect path used by
// New, and wraps reconnectLocked with the lock sendAndReconnect already
// holds when it calls the locked variant directly.
func (u *Uplink) reconnect() error {
	u.sendMu.Lock()
	defer u.sendMu.Unlock()
	return u.reconnectLocked()
}

func (u *Uplink) reconnectLocked() error {
	u.connected.Store(false)
	u.stopTracker()

	if u.conn != nil {
		u.conn.Close()
		u.conn = nil
	}

	conn, err := transport.Dial(context.Background(), u.ep)
	if err != nil {
		return err
	}

	if err := conn.Handshake(u.codec.HandshakeMessage()); err != nil {
		conn.Close()
		if errors.Is(err, transport.ErrHandshakeMismatch) {
			return ErrHandshakeMismatch
		}
		return err
	}

	u.aliasMu.Lock()
	types := make([]wire.AliasType, len(u.aliases))
	copy(types, u.aliases)
	u.aliasMu.Unlock()

	if err := conn.Send(u.codec.EncodeTypeAnnounce(types, u.origin)); err != nil {
		conn.Close()
		return err
	}

	u.conn = conn
	u.connected.Store(true)
	u.startTracker(conn)
	return nil
}

func (u *Uplink) startTracker(conn *transport.Conn) {
	u.trackerTok = transport.NewCancelToken()
	tok := u.trackerTok
	u.trackerWG.Add(1)
	go func() {
		defer u.trackerWG.Done()
		u.runTracker(conn, tok)
	}()
}

func (u *Uplink) stopTracker() {
	if u.trackerTok == nil {
		return
	}
	u.trackerTok.Cancel()
	u.trackerWG.Wait()
	u.trackerTok = nil
}

// AttrUpdate is one attribute write a caller asks SendData to publish.
type AttrUpdate struct {
	TypeName string
	Time     int64
	Target   string
	Data     []byte
}
