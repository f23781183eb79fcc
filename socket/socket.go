// Package socket implements the registry that maps locally-minted 32-bit
// socket ids to opaque per-connection reliability engines. The registry is
// accessed only from the owning Transport's executor and therefore needs
// no internal locking of its own.
package socket

import "github.com/opd-ai/rudpcore/node"

// Socket is the opaque per-connection reliability engine the
// connection-management core schedules work onto but does not implement.
type Socket interface {
	// PeerEndpoint returns the endpoint this socket currently believes its
	// peer is reachable at.
	PeerEndpoint() node.Endpoint

	// IsConnected reports whether the underlying reliability engine has
	// completed its handshake.
	IsConnected() bool

	// UpdatePeerEndpoint repairs the socket's notion of its peer's address,
	// used when a symmetric NAT changes the peer's observed source port.
	UpdatePeerEndpoint(ep node.Endpoint)

	// ThisEndpoint returns this socket's local endpoint as observed by the
	// peer (the "this_endpoint" the connection manager exposes per peer).
	ThisEndpoint() node.Endpoint

	// RemoteNATDetectionEndpoint returns the endpoint the peer advertised
	// for NAT-type detection pings.
	RemoteNATDetectionEndpoint() node.Endpoint

	// Start begins the socket's reliability engine.
	Start() error

	// Stop tears the socket down.
	Stop()

	// Send hands an outbound application payload to the socket, which is
	// responsible for whatever framing, ordering, or retransmission it
	// implements before the bytes reach the wire.
	Send(payload []byte) error

	// Deliver hands a decoded application payload to the socket, which is
	// responsible for whatever reassembly or ordering it implements before
	// the bytes reach the application.
	Deliver(payload []byte)
}
