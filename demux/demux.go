// Package demux implements the dispatch policy that routes an inbound
// datagram to the correct socket, including symmetric-NAT endpoint repair
// and ping-from-stranger handling. It is grounded directly on the
// connection manager's own socket-selection logic: the exact-endpoint
// match is always tried before the address-only repair match, so a peer
// seen on a known port always wins over one seen behind symmetric NAT on
// a new port.
package demux

import (
	"github.com/opd-ai/rudpcore/logging"
	"github.com/opd-ai/rudpcore/node"
	"github.com/opd-ai/rudpcore/packet"
	"github.com/opd-ai/rudpcore/socket"
)

// PingFromStrangerFunc is invoked when a non-Normal handshake (ping,
// bootstrap-and-drop) arrives from a source endpoint with no matching
// socket. It is the connection manager's handle_ping_from.
type PingFromStrangerFunc func(pkt packet.HandshakePacket, source node.Endpoint)

// Dispatch decides which socket, if any, should receive datagram, which
// arrived from source. registry is consulted but never itself mutated by
// this function (socket admission/removal is the manager's job);
// UpdatePeerEndpoint on a matched socket is the one exception, since
// endpoint repair is defined as part of routing itself.
func Dispatch(registry *socket.Registry, datagram []byte, source node.Endpoint, onPingFromStranger PingFromStrangerFunc) (socket.Socket, bool) {
	log := logging.NewLogger("demux", "Dispatch")

	if registry.Len() == 0 {
		return nil, false
	}

	inspected := packet.Inspect(datagram)

	switch inspected.Kind {
	case packet.KindNotRudp:
		log.Verbose("dropping non-rudp datagram")
		return nil, false

	case packet.KindForSocket:
		s, ok := registry.Lookup(inspected.SocketID)
		if !ok {
			log.WithField("socket_id", inspected.SocketID).Info("datagram addressed to unknown socket id")
			return nil, false
		}
		return s, true

	case packet.KindHandshake:
		return dispatchHandshake(registry, inspected.Handshake, source, onPingFromStranger, log)

	default:
		return nil, false
	}
}

func dispatchHandshake(registry *socket.Registry, pkt packet.HandshakePacket, source node.Endpoint, onPingFromStranger PingFromStrangerFunc, log *logging.Helper) (socket.Socket, bool) {
	if pkt.ConnectionReason == packet.Normal {
		if s, ok := registry.FindByPeerEndpoint(source); ok {
			return s, true
		}
		s, ok := registry.FindRepairCandidate(source)
		if !ok {
			return nil, false
		}
		// Repair must happen before the socket is handed back to the caller:
		// this is the symmetric-NAT port-repair path.
		s.UpdatePeerEndpoint(source)
		return s, true
	}

	// Non-normal reason: ping or bootstrap-and-drop.
	if s, ok := registry.FindByPeerEndpoint(source); ok {
		return s, true
	}
	if onPingFromStranger != nil {
		onPingFromStranger(pkt, source)
	} else {
		log.Warn("no handler registered for ping-from-stranger")
	}
	return nil, false
}
