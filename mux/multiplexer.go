// Package mux owns the single UDP socket a Transport multiplexes all of
// its connections over, and the ambient NAT-type state the bootstrap
// driver populates.
package mux

import (
	"net"
	"sync/atomic"

	"github.com/opd-ai/rudpcore/logging"
	"github.com/opd-ai/rudpcore/node"
)

// maxDatagramSize bounds a single UDP read, matching the largest
// datagram any RUDP socket implementation is expected to emit.
const maxDatagramSize = 65507

// Multiplexer owns one UDP socket. It is intentionally thin: framing,
// retransmission and all per-connection reliability live in the sockets
// the connection manager drives, not here. Reads are synchronous from the
// caller's perspective; Transport's dispatch loop supplies the
// asynchronous, self-rearming behavior spec.md describes by running
// ReceiveNext in its own goroutine.
type Multiplexer struct {
	conn   net.PacketConn
	closed atomic.Bool
	local  node.Endpoint

	bestGuessExternal atomic.Value // node.Endpoint
	nat               *NATState
}

// Open binds a UDP socket at localAddr ("ip:port", or ":0" for an
// ephemeral port).
func Open(localAddr string) (*Multiplexer, error) {
	log := logging.NewLogger("mux", "Open").WithField("local_addr", localAddr)

	conn, err := net.ListenPacket("udp", localAddr)
	if err != nil {
		log.WithError(err, "listen_packet").Error("failed to open multiplexer")
		return nil, err
	}

	local, parseErr := node.ParseEndpoint(conn.LocalAddr().String())
	if parseErr != nil {
		// A bound UDP socket always has a parseable local address; this
		// would indicate a net package invariant violation, not a runtime
		// condition callers need to handle.
		local = node.Endpoint{}
	}

	m := &Multiplexer{conn: conn, local: local, nat: NewNATState()}
	log.Info("multiplexer opened")
	return m, nil
}

// LocalEndpoint returns the endpoint this multiplexer is bound to.
func (m *Multiplexer) LocalEndpoint() node.Endpoint {
	return m.local
}

// IsOpen reports whether Close has not yet been called.
func (m *Multiplexer) IsOpen() bool {
	return !m.closed.Load()
}

// NATState returns the ambient NAT-type holder associated with this
// multiplexer.
func (m *Multiplexer) NATState() *NATState {
	return m.nat
}

// SetBestGuessExternalEndpoint records the transport's best guess at its
// own externally-visible endpoint, normally derived from a peer's
// handshake.
func (m *Multiplexer) SetBestGuessExternalEndpoint(ep node.Endpoint) {
	m.bestGuessExternal.Store(ep)
}

// BestGuessExternalEndpoint returns the last endpoint set by
// SetBestGuessExternalEndpoint, or the zero Endpoint if none was ever set.
func (m *Multiplexer) BestGuessExternalEndpoint() node.Endpoint {
	v, ok := m.bestGuessExternal.Load().(node.Endpoint)
	if !ok {
		return node.Endpoint{}
	}
	return v
}

// SendTo writes data to the given peer endpoint.
func (m *Multiplexer) SendTo(ep node.Endpoint, data []byte) error {
	addr := net.UDPAddrFromAddrPort(ep.AddrPort())
	_, err := m.conn.WriteTo(data, addr)
	return err
}

// ReceiveNext blocks for the next inbound datagram. It returns an error
// once the multiplexer is closed; callers should treat that as the sole
// termination condition for any read loop built on top of it.
func (m *Multiplexer) ReceiveNext() (datagram []byte, source node.Endpoint, err error) {
	buf := make([]byte, maxDatagramSize)
	n, addr, err := m.conn.ReadFrom(buf)
	if err != nil {
		return nil, node.Endpoint{}, err
	}

	ep, parseErr := node.ParseEndpoint(addr.String())
	if parseErr != nil {
		return nil, node.Endpoint{}, parseErr
	}
	return buf[:n], ep, nil
}

// Close shuts the UDP socket down. It is idempotent.
func (m *Multiplexer) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	return m.conn.Close()
}
