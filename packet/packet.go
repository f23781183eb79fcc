// Package packet decodes the one wire detail the connection-management
// core is allowed to know: the destination socket id header, and, when
// that id is zero, the handshake body routed to it.
package packet

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/rudpcore/node"
)

// headerSize is the length of the destination-socket-id header.
const headerSize = 4

// ConnectionReason describes why a peer sent a handshake.
type ConnectionReason byte

const (
	// Normal is an ordinary connect handshake.
	Normal ConnectionReason = iota
	// Ping is a one-shot liveness probe; the responder never registers it.
	Ping
	// BootstrapAndDrop asks the recipient to acknowledge and then close,
	// used by bootstrap candidates who only want to confirm reachability.
	BootstrapAndDrop
)

func (r ConnectionReason) String() string {
	switch r {
	case Normal:
		return "Normal"
	case Ping:
		return "Ping"
	case BootstrapAndDrop:
		return "BootstrapAndDrop"
	default:
		return fmt.Sprintf("ConnectionReason(%d)", byte(r))
	}
}

// handshakeBodySize is node id (32) + public key (32) + reason (1).
const handshakeBodySize = node.IDSize + node.PublicKeySize + 1

// HandshakePacket is the decoded body of a handshake addressed to socket
// id 0.
type HandshakePacket struct {
	NodeID           node.ID
	PublicKey        node.PublicKey
	ConnectionReason ConnectionReason
}

// EncodeForSocket prepends the destination socket id header to payload.
func EncodeForSocket(id uint32, payload []byte) []byte {
	out := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(out, id)
	copy(out[headerSize:], payload)
	return out
}

// EncodeHandshake builds a complete datagram (header + handshake body)
// addressed to socket id 0.
func EncodeHandshake(h HandshakePacket) []byte {
	body := make([]byte, handshakeBodySize)
	copy(body[0:node.IDSize], h.NodeID[:])
	copy(body[node.IDSize:node.IDSize+node.PublicKeySize], h.PublicKey[:])
	body[handshakeBodySize-1] = byte(h.ConnectionReason)
	return EncodeForSocket(0, body)
}

func decodeHandshakeBody(body []byte) (HandshakePacket, bool) {
	if len(body) < handshakeBodySize {
		return HandshakePacket{}, false
	}
	var h HandshakePacket
	copy(h.NodeID[:], body[0:node.IDSize])
	copy(h.PublicKey[:], body[node.IDSize:node.IDSize+node.PublicKeySize])
	h.ConnectionReason = ConnectionReason(body[handshakeBodySize-1])
	return h, true
}
