// Package manager implements the connection manager: the public façade
// that owns the socket registry, connection registry, and demultiplexer
// policy, and exposes connect/ping/send/close/introspection to the owning
// Transport.
package manager

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/opd-ai/rudpcore/connection"
	"github.com/opd-ai/rudpcore/demux"
	"github.com/opd-ai/rudpcore/limits"
	"github.com/opd-ai/rudpcore/logging"
	"github.com/opd-ai/rudpcore/node"
	"github.com/opd-ai/rudpcore/packet"
	"github.com/opd-ai/rudpcore/socket"
)

// Errors returned by AddConnection; Transport branches on these.
var (
	ErrInvalidConnection      = errors.New("invalid connection: not in a normal state")
	ErrConnectionAlreadyExists = errors.New("connection already exists for this peer")
)

// SocketFactory constructs a new Socket bound to peer, given its
// endpoint and public key. Socket construction (the reliability engine)
// is external to this module.
type SocketFactory func(peer node.Endpoint, peerID node.ID, peerPublicKey node.PublicKey) socket.Socket

// Poster schedules a task to run on the owning Transport's executor.
type Poster func(task func())

// Manager is the connection manager façade described by the connection
// management core: it owns the socket registry, the connection registry,
// and the demultiplexer policy, and exposes the public contract other
// components call into.
type Manager struct {
	selfID     node.ID
	post       Poster
	sockets    *socket.Registry
	conns      *connection.Registry
	newSocket  SocketFactory
	onClose    connection.CompletionFunc
	bestGuessExternal node.Endpoint
}

// New creates a Manager for selfID. post must schedule its argument onto
// the owning Transport's executor; newSocket constructs the external
// reliability engine for a new connection attempt. onClose, if non-nil, is
// registered on every connection this Manager creates (via Connect and
// Ping) as its close-completion handler — this is what lets a connection's
// eventual Close() cascade back up to the owning Transport's
// remove_connection, matching the "default_on_close" wiring spec.md's
// Transport section describes. Without it, closing a connection would
// never erase it from the registry or raise on_connection_lost.
func New(selfID node.ID, post Poster, newSocket SocketFactory, onClose connection.CompletionFunc) *Manager {
	return &Manager{
		selfID:    selfID,
		post:      post,
		sockets:   socket.NewRegistry(),
		conns:     connection.NewRegistry(),
		newSocket: newSocket,
		onClose:   onClose,
	}
}

// LiveCheck reports whether the caller's weak reference to the owning
// Transport is still valid. Transport.Connect passes its own handle
// check in; this indirection keeps Manager free of any dependency on
// Transport's type.
type LiveCheck func() bool

// Connect materializes a new Connection in the Pending state and begins
// connecting. If live reports false, the call is silently dropped — the
// Transport that would have owned the resulting callback no longer
// exists. Connections created this way enter the registry only once they
// transition to a normal state and AddConnection is invoked by the
// connection's own completion callback (supplied by the caller as
// onComplete).
func (m *Manager) Connect(live LiveCheck, peerID node.ID, ep node.Endpoint, peerPublicKey node.PublicKey, attemptTimeout, lifespan time.Duration, onComplete connection.CompletionFunc) {
	log := logging.NewLogger("manager", "Connect").WithField("peer", peerID.String())

	if live != nil && !live() {
		log.Debug("transport no longer live, dropping connect")
		return
	}

	sock := m.newSocket(ep, peerID, peerPublicKey)
	conn := connection.New(peerID, peerPublicKey, sock)
	conn.SetOnClose(m.onClose)
	log.WithField("attempt_id", uuid.NewString()).Debug("starting connect attempt")
	conn.StartConnecting(attemptTimeout, lifespan, onComplete)
}

// AddConnection admits conn to the registry iff its state is normal.
// Admitting a second connection for an already-present peer id is a
// programming error and is asserted against by the registry itself;
// AddConnection's own job is to translate "already admitted" into
// ErrConnectionAlreadyExists for the caller instead of letting the
// registry's assertion fire, since a raced connect is an expected
// runtime event, not a bug.
func (m *Manager) AddConnection(conn connection.Connection) (bool, error) {
	if conn.State() == connection.Pending {
		panic("manager: AddConnection called with a Pending connection")
	}

	if !conn.State().IsNormal() {
		return false, ErrInvalidConnection
	}

	if _, exists := m.conns.Find(conn.PeerID()); exists {
		return false, ErrConnectionAlreadyExists
	}

	if err := m.conns.Add(conn); err != nil {
		return false, ErrInvalidConnection
	}
	return true, nil
}

// CloseConnection finds the connection for peerID and schedules its close
// on the executor. It returns false without effect if no such connection
// exists.
func (m *Manager) CloseConnection(peerID node.ID) bool {
	log := logging.NewLogger("manager", "CloseConnection").WithField("peer", peerID.String())

	conn, ok := m.conns.Find(peerID)
	if !ok {
		log.Warn("close requested for unknown peer")
		return false
	}
	m.post(func() { conn.Close() })
	return true
}

// RemoveConnection erases conn from the registry. conn must be in (or
// have just left) a normal state.
func (m *Manager) RemoveConnection(conn connection.Connection) {
	m.conns.Remove(conn)
}

// GetConnection returns a snapshot lookup of the connection registered
// for peerID.
func (m *Manager) GetConnection(peerID node.ID) (connection.Connection, bool) {
	return m.conns.Find(peerID)
}

// Ping constructs a transient connection to ep and starts a ping. It
// never enters the registry.
func (m *Manager) Ping(peerID node.ID, ep node.Endpoint, peerPublicKey node.PublicKey, onComplete connection.CompletionFunc) {
	sock := m.newSocket(ep, peerID, peerPublicKey)
	conn := connection.New(peerID, peerPublicKey, sock)
	conn.SetOnClose(m.onClose)
	conn.Ping(onComplete)
}

// Send looks up peerID and, if found, schedules StartSending on the
// executor. It returns false if no connection exists for peerID.
func (m *Manager) Send(peerID node.ID, data []byte, sentCB func(error)) bool {
	conn, ok := m.conns.Find(peerID)
	if !ok {
		return false
	}
	m.post(func() {
		err := conn.StartSending(data)
		if sentCB != nil {
			sentCB(err)
		}
	})
	return true
}

// MakeConnectionPermanent transitions the connection for peerID via
// MakePermanent(validated) and reports whether peerID was connected at
// all — not whether the transition itself took effect. This mirrors
// connection_manager.cc's MakeConnectionPermanent, which calls
// MakePermanent(validated) unconditionally and returns true as long as
// the connection was found, regardless of what validated resolves to
// internally. The returned endpoint is gated solely on private-network
// status, also independent of validated.
func (m *Manager) MakeConnectionPermanent(peerID node.ID, validated bool) (node.Endpoint, bool) {
	conn, ok := m.conns.Find(peerID)
	if !ok {
		return node.Endpoint{}, false
	}
	conn.MakePermanent(validated)

	peerEp := conn.PeerEndpoint()
	if peerEp.IsPrivate() {
		return node.Endpoint{}, true
	}
	return peerEp, true
}

// ThisEndpoint returns this socket's local endpoint as observed by
// peerID, or the zero Endpoint if unknown.
func (m *Manager) ThisEndpoint(peerID node.ID) node.Endpoint {
	conn, ok := m.conns.Find(peerID)
	if !ok {
		return node.Endpoint{}
	}
	return conn.ThisEndpoint()
}

// RemoteNatDetectionEndpoint returns the endpoint peerID advertised for
// NAT-type detection.
func (m *Manager) RemoteNatDetectionEndpoint(peerID node.ID) node.Endpoint {
	conn, ok := m.conns.Find(peerID)
	if !ok {
		return node.Endpoint{}
	}
	return conn.RemoteNATDetectionEndpoint()
}

// SetBestGuessExternalEndpoint records ep as the Manager's best-guess
// external endpoint. The value is only stored on the Manager: it is not
// passed on to the multiplexer, and no Manager method reads it back.
func (m *Manager) SetBestGuessExternalEndpoint(ep node.Endpoint) {
	m.bestGuessExternal = ep
}

// AddSocket allocates a socket id for sock.
func (m *Manager) AddSocket(sock socket.Socket) uint32 {
	return m.sockets.Insert(sock)
}

// RemoveSocket releases the socket id.
func (m *Manager) RemoveSocket(id uint32) {
	m.sockets.Remove(id)
}

// CloseAllConnections schedules Close for every registered connection via
// post. It does not itself mutate registry membership; removal happens
// asynchronously through each connection's own close callback.
func (m *Manager) CloseAllConnections(post Poster) {
	m.conns.CloseAll(post)
}

// NormalConnectionsCount returns the number of registered connections.
func (m *Manager) NormalConnectionsCount() int {
	return m.conns.Count()
}

// GetSocket is the dispatch entry point: given a raw datagram and its
// source endpoint, choose the target socket per the demultiplexer policy.
func (m *Manager) GetSocket(datagram []byte, source node.Endpoint) (socket.Socket, bool) {
	return demux.Dispatch(m.sockets, datagram, source, m.HandlePingFrom)
}

// HandlePingFrom implements the demultiplexer's fallback when a
// non-Normal handshake arrives from a source endpoint with no matching
// socket.
func (m *Manager) HandlePingFrom(pkt packet.HandshakePacket, source node.Endpoint) {
	log := logging.NewLogger("manager", "HandlePingFrom").WithField("peer", pkt.NodeID.String())

	if pkt.NodeID.Equal(m.selfID) {
		log.Warn("dropping loopback ping (node id matches self)")
		return
	}
	if !source.IsValid(false) {
		log.Debug("dropping ping from invalid source endpoint")
		return
	}

	if existing, ok := m.conns.Find(pkt.NodeID); ok {
		if pkt.ConnectionReason != packet.BootstrapAndDrop {
			log.Debug("recycling existing connection for repeat bootstrap")
			m.post(func() { existing.Close() })
			return
		}
	}

	lifespan := limits.BootstrapConnectionLifespan
	if pkt.ConnectionReason == packet.BootstrapAndDrop {
		lifespan = 0
	}

	m.Connect(nil, pkt.NodeID, source, pkt.PublicKey, limits.BootstrapConnectTimeout, lifespan, nil)
}
