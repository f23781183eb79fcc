package packet

import (
	"encoding/binary"

	"github.com/opd-ai/rudpcore/logging"
)

// Kind discriminates the outcome of Inspect.
type Kind int

const (
	// KindNotRudp means the datagram did not decode as an RUDP packet.
	KindNotRudp Kind = iota
	// KindForSocket means the datagram is addressed to an existing socket.
	KindForSocket
	// KindHandshake means the datagram is an unrouted handshake (socket id 0).
	KindHandshake
)

// Inspected is the result of inspecting a raw datagram: exactly one of
// NotRudp, ForSocket(id), or Handshake(packet), selected by Kind.
type Inspected struct {
	Kind      Kind
	SocketID  uint32
	Handshake HandshakePacket
}

// Inspect decodes datagram into an Inspected value. It touches no state and
// never logs above warn severity — malformed handshakes are an expected,
// high-volume occurrence on an open UDP port, not an operational error.
func Inspect(datagram []byte) Inspected {
	log := logging.NewLogger("packet", "Inspect")

	if len(datagram) < headerSize {
		log.Verbose("datagram shorter than header, not rudp")
		return Inspected{Kind: KindNotRudp}
	}

	id := binary.BigEndian.Uint32(datagram[:headerSize])
	if id != 0 {
		return Inspected{Kind: KindForSocket, SocketID: id}
	}

	h, ok := decodeHandshakeBody(datagram[headerSize:])
	if !ok {
		log.Warn("socket id 0 but handshake body truncated")
		return Inspected{Kind: KindNotRudp}
	}
	return Inspected{Kind: KindHandshake, Handshake: h}
}
