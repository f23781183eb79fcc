// Package rudpcore implements the connection-management core of a
// reliable UDP transport: it multiplexes many logical, authenticated
// peer-to-peer connections over a single UDP socket, drives bootstrap and
// teardown, and dispatches inbound datagrams to the right connection.
package rudpcore

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/rudpcore/connection"
	"github.com/opd-ai/rudpcore/executor"
	"github.com/opd-ai/rudpcore/logging"
	"github.com/opd-ai/rudpcore/manager"
	"github.com/opd-ai/rudpcore/mux"
	"github.com/opd-ai/rudpcore/node"
	"github.com/opd-ai/rudpcore/socket"
)

// Transport owns one multiplexer and one connection manager. It is the
// only component that talks to the embedding application.
type Transport struct {
	selfID        node.ID
	selfPublicKey node.PublicKey

	ex        *executor.Executor
	callbacks *callbackSet

	socketFactory manager.SocketFactory

	mu  sync.Mutex // guards mgr/m below during Bootstrap/Close
	mgr *manager.Manager
	m   *mux.Multiplexer

	closed     atomic.Bool
	dispatchWG sync.WaitGroup
}

// transportHandle is the Go substitute for a weak back-reference: every
// executor-posted closure that touches Transport state closes over one of
// these instead of the Transport directly, and checks isLive before
// dereferencing further. Close flips closed exactly once, which causes
// every outstanding handle to observe the shutdown and drop its work
// silently, matching the "weak reference no longer live" behavior
// mandated for async completion handlers.
type transportHandle struct {
	t      *Transport
	closed *atomic.Bool
}

func (h *transportHandle) isLive() bool {
	return h != nil && !h.closed.Load()
}

func (t *Transport) handle() *transportHandle {
	return &transportHandle{t: t, closed: &t.closed}
}

// NewTransport constructs a Transport for selfID/selfPublicKey. If
// socketFactory is nil, a batteries-included stub reliability engine is
// used (see defaultSocket); embedders with a real RUDP socket
// implementation supply their own factory.
func NewTransport(selfID node.ID, selfPublicKey node.PublicKey, callbacks Callbacks, socketFactory manager.SocketFactory) *Transport {
	t := &Transport{
		selfID:        selfID,
		selfPublicKey: selfPublicKey,
		ex:            executor.New(),
		callbacks:     newCallbackSet(callbacks),
	}
	if socketFactory == nil {
		socketFactory = t.defaultSocketFactory
	}
	t.socketFactory = socketFactory
	return t
}

func (t *Transport) defaultSocketFactory(peer node.Endpoint, peerID node.ID, peerPublicKey node.PublicKey) socket.Socket {
	t.mu.Lock()
	m := t.m
	t.mu.Unlock()
	return newDefaultSocket(t.selfID, t.selfPublicKey, peer, peerID, peerPublicKey, m, t.deliverMessage)
}

func (t *Transport) deliverMessage(peer node.ID, data []byte) {
	cb := t.callbacks.snapshot()
	if cb.OnMessage != nil {
		cb.OnMessage(peer, data)
	}
}

// Connect races an outbound connect against the peer's external and
// local endpoints per spec.md's §4.F "Connect (outbound)": if both are
// valid and differ, the external attempt starts first and the local
// attempt only follows once the external attempt completes and the
// multiplexer is still open; if only one is valid, it alone is used.
func (t *Transport) Connect(peerID node.ID, endpoints node.EndpointPair, peerPublicKey node.PublicKey, attemptTimeout, lifespan time.Duration, onComplete connection.CompletionFunc) {
	log := logging.NewLogger("rudpcore", "Connect").WithField("peer", peerID.String())

	t.mu.Lock()
	mgr := t.mgr
	m := t.m
	t.mu.Unlock()

	if mgr == nil || m == nil || !m.IsOpen() {
		log.Warn("connect attempted on a closed or unopened transport")
		if onComplete != nil {
			onComplete(ErrFailedToConnect, nil)
		}
		return
	}

	handle := t.handle()
	extValid := endpoints.External.IsValid(false)
	localValid := endpoints.Local.IsValid(false)

	wrapped := func(err error, conn connection.Connection) {
		if !handle.isLive() {
			return
		}
		t.onConnectAttemptComplete(err, conn)
		if onComplete != nil {
			onComplete(err, conn)
		}
	}

	switch {
	case extValid && localValid && !endpoints.External.Equal(endpoints.Local):
		mgr.Connect(handle.isLive, peerID, endpoints.External, peerPublicKey, attemptTimeout, lifespan, func(err error, conn connection.Connection) {
			wrapped(err, conn)
			if handle.isLive() && m.IsOpen() {
				mgr.Connect(handle.isLive, peerID, endpoints.Local, peerPublicKey, attemptTimeout, lifespan, wrapped)
			}
		})
	case extValid:
		mgr.Connect(handle.isLive, peerID, endpoints.External, peerPublicKey, attemptTimeout, lifespan, wrapped)
	case localValid:
		mgr.Connect(handle.isLive, peerID, endpoints.Local, peerPublicKey, attemptTimeout, lifespan, wrapped)
	default:
		log.Warn("connect attempted with no valid endpoint")
		if onComplete != nil {
			onComplete(ErrFailedToConnect, nil)
		}
	}
}

// defaultOnClose is registered by the connection manager as every
// connection's close-completion handler (see manager.New's onClose
// parameter). It is what makes a connection's Close() actually erase it
// from the registry and raise on_connection_lost; spec.md's
// "default_on_close(error, conn): call remove_connection(conn, timed_out
// = (error == timed_out))".
func (t *Transport) defaultOnClose(err error, conn connection.Connection) {
	t.removeConnection(conn, errors.Is(err, ErrTimedOut))
}

func (t *Transport) onConnectAttemptComplete(err error, conn connection.Connection) {
	if err != nil || conn == nil {
		return
	}
	t.addConnection(conn)
}

// addConnection implements the Transport-level admission wrapper around
// the connection manager's AddConnection: temporary connections skip
// registry admission entirely, invalid admissions are logged and closed,
// and duplicate admissions are logged and silently ignored.
func (t *Transport) addConnection(conn connection.Connection) {
	log := logging.NewLogger("rudpcore", "addConnection").WithField("peer", conn.PeerID().String())

	t.mu.Lock()
	mgr := t.mgr
	t.mu.Unlock()
	if mgr == nil {
		return
	}

	isTemporary := conn.State() == connection.Temporary

	if !isTemporary {
		_, err := mgr.AddConnection(conn)
		switch err {
		case nil:
			// fall through to the added callback below.
		case manager.ErrInvalidConnection:
			log.Error("invalid connection admitted, closing")
			conn.Close()
			return
		case manager.ErrConnectionAlreadyExists:
			log.Debug("duplicate admission suppressed")
			return
		default:
			log.WithError(err, "add_connection").Error("unexpected error admitting connection")
			return
		}
	}

	cb := t.callbacks.snapshot()
	if cb.OnConnectionAdded != nil {
		cb.OnConnectionAdded(conn.PeerID(), t, isTemporary, conn)
	}
}

// removeConnection implements the Transport-level teardown wrapper:
// duplicates were never announced and are dropped silently; everything
// else fires the connection-lost callback.
func (t *Transport) removeConnection(conn connection.Connection, timedOut bool) {
	if conn.State() == connection.Duplicate {
		return
	}

	t.mu.Lock()
	mgr := t.mgr
	t.mu.Unlock()
	if mgr != nil {
		mgr.RemoveConnection(conn)
	}

	isTemporary := conn.State() == connection.Temporary
	cb := t.callbacks.snapshot()
	if cb.OnConnectionLost != nil {
		cb.OnConnectionLost(conn.PeerID(), t, isTemporary, timedOut)
	}
}

// Send looks up peerID's connection and schedules sending data. It
// returns false if no such connection exists.
func (t *Transport) Send(peerID node.ID, data []byte, sentCB func(error)) bool {
	t.mu.Lock()
	mgr := t.mgr
	t.mu.Unlock()
	if mgr == nil {
		return false
	}
	return mgr.Send(peerID, data, sentCB)
}

// Ping starts a transient probe to ep; it never enters the registry.
func (t *Transport) Ping(peerID node.ID, ep node.Endpoint, peerPublicKey node.PublicKey, onComplete connection.CompletionFunc) {
	t.mu.Lock()
	mgr := t.mgr
	t.mu.Unlock()
	if mgr == nil {
		return
	}
	mgr.Ping(peerID, ep, peerPublicKey, onComplete)
}

// CloseConnection schedules the connection for peerID to close.
func (t *Transport) CloseConnection(peerID node.ID) bool {
	t.mu.Lock()
	mgr := t.mgr
	t.mu.Unlock()
	if mgr == nil {
		return false
	}
	return mgr.CloseConnection(peerID)
}

// GetConnection returns a snapshot lookup of the connection for peerID.
func (t *Transport) GetConnection(peerID node.ID) (connection.Connection, bool) {
	t.mu.Lock()
	mgr := t.mgr
	t.mu.Unlock()
	if mgr == nil {
		return nil, false
	}
	return mgr.GetConnection(peerID)
}

// MakeConnectionPermanent calls MakePermanent(validated) on peerID's
// connection. It reports true whenever the peer is registered, whether or
// not the connection was promoted (see manager.MakeConnectionPermanent).
func (t *Transport) MakeConnectionPermanent(peerID node.ID, validated bool) (node.Endpoint, bool) {
	t.mu.Lock()
	mgr := t.mgr
	t.mu.Unlock()
	if mgr == nil {
		return node.Endpoint{}, false
	}
	return mgr.MakeConnectionPermanent(peerID, validated)
}

// NormalConnectionsCount returns the number of registered connections.
func (t *Transport) NormalConnectionsCount() int {
	t.mu.Lock()
	mgr := t.mgr
	t.mu.Unlock()
	if mgr == nil {
		return 0
	}
	return mgr.NormalConnectionsCount()
}

// Close clears the application callbacks under the callback lock, then
// schedules connection-manager close and multiplexer close on the
// executor in that order. Idempotent.
func (t *Transport) Close() {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}

	t.callbacks.clear()

	t.mu.Lock()
	mgr := t.mgr
	m := t.m
	t.mu.Unlock()

	t.ex.Post(func() {
		if mgr != nil {
			mgr.CloseAllConnections(func(f func()) { t.ex.Post(f) })
		}
		if m != nil {
			m.Close()
		}
	})

	t.dispatchWG.Wait()
	t.ex.Close()
}
