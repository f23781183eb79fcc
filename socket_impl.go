package rudpcore

import (
	"sync"

	"github.com/opd-ai/rudpcore/logging"
	"github.com/opd-ai/rudpcore/mux"
	"github.com/opd-ai/rudpcore/node"
	"github.com/opd-ai/rudpcore/packet"
)

// defaultSocket is the batteries-included Socket implementation used when
// an embedder does not supply its own reliability engine. It deliberately
// does none of the sliding-window / retransmit work spec.md places out of
// scope: it treats a started socket as immediately connected and forwards
// raw payloads to the application unmodified. Embedders needing real
// reliability semantics supply their own manager.SocketFactory.
type defaultSocket struct {
	mu sync.Mutex

	selfID        node.ID
	selfPublicKey node.PublicKey

	peer          node.Endpoint
	peerID        node.ID
	peerPublicKey node.PublicKey
	connected     bool

	thisEndpoint               node.Endpoint
	remoteNATDetectionEndpoint node.Endpoint

	m         *mux.Multiplexer
	onMessage func(peer node.ID, data []byte)
}

func newDefaultSocket(selfID node.ID, selfPublicKey node.PublicKey, peer node.Endpoint, peerID node.ID, peerPublicKey node.PublicKey, m *mux.Multiplexer, onMessage func(node.ID, []byte)) *defaultSocket {
	return &defaultSocket{
		selfID:        selfID,
		selfPublicKey: selfPublicKey,
		peer:          peer,
		peerID:        peerID,
		peerPublicKey: peerPublicKey,
		m:             m,
		onMessage:     onMessage,
	}
}

func (s *defaultSocket) PeerEndpoint() node.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

func (s *defaultSocket) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *defaultSocket) UpdatePeerEndpoint(ep node.Endpoint) {
	s.mu.Lock()
	s.peer = ep
	s.mu.Unlock()
}

func (s *defaultSocket) ThisEndpoint() node.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thisEndpoint
}

func (s *defaultSocket) RemoteNATDetectionEndpoint() node.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteNATDetectionEndpoint
}

// Start sends a handshake announcing this node to the peer and marks the
// socket connected. A real reliability engine would wait for the peer's
// handshake reply before doing so; this stub accepts the simplification
// documented on defaultSocket.
func (s *defaultSocket) Start() error {
	log := logging.NewLogger("rudpcore", "defaultSocket.Start").WithField("peer", s.peerID.String())

	s.mu.Lock()
	s.connected = true
	peer := s.peer
	s.mu.Unlock()

	if s.m == nil {
		return nil
	}

	h := packet.HandshakePacket{
		NodeID:           s.selfID,
		PublicKey:        s.selfPublicKey,
		ConnectionReason: packet.Normal,
	}
	if err := s.m.SendTo(peer, packet.EncodeHandshake(h)); err != nil {
		log.WithError(err, "send_handshake").Warn("failed to send handshake")
		return err
	}
	return nil
}

func (s *defaultSocket) Stop() {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
}

// Send writes payload directly to the peer's endpoint. A real reliability
// engine would frame this with its own sequencing/ack machinery; this stub
// forwards the bytes unmodified, the same simplification documented on
// Start.
func (s *defaultSocket) Send(payload []byte) error {
	s.mu.Lock()
	peer := s.peer
	m := s.m
	s.mu.Unlock()

	if m == nil {
		return nil
	}
	return m.SendTo(peer, payload)
}

// Deliver hands a decoded application payload to the socket for
// processing. In this stub, that means immediate upward delivery.
func (s *defaultSocket) Deliver(payload []byte) {
	if s.onMessage != nil {
		s.onMessage(s.peerID, payload)
	}
}
