package socket

import (
	"math/rand/v2"

	"github.com/opd-ai/rudpcore/logging"
	"github.com/opd-ai/rudpcore/node"
)

// Registry is a bidirectional map between locally-minted socket ids and
// opaque Socket objects. Id 0 is reserved to mean "handshake not yet
// routed" and is never allocated by Insert.
type Registry struct {
	sockets map[uint32]Socket
}

// NewRegistry creates an empty socket registry.
func NewRegistry() *Registry {
	return &Registry{sockets: make(map[uint32]Socket)}
}

// Insert allocates a fresh nonzero id not currently present, stores s under
// it, and returns the id.
func (r *Registry) Insert(s Socket) uint32 {
	log := logging.NewLogger("socket", "Insert")

	for {
		id := rand.Uint32()
		if id == 0 {
			continue
		}
		if _, exists := r.sockets[id]; exists {
			continue
		}
		r.sockets[id] = s
		log.WithField("socket_id", id).Debug("allocated socket id")
		return id
	}
}

// Remove erases the socket at id. It is a no-op for id 0.
func (r *Registry) Remove(id uint32) {
	if id == 0 {
		return
	}
	delete(r.sockets, id)
}

// Lookup returns the socket registered at id, if any.
func (r *Registry) Lookup(id uint32) (Socket, bool) {
	s, ok := r.sockets[id]
	return s, ok
}

// FindByPeerEndpoint returns a socket whose current peer endpoint exactly
// matches ep.
func (r *Registry) FindByPeerEndpoint(ep node.Endpoint) (Socket, bool) {
	for _, s := range r.sockets {
		if s.PeerEndpoint().Equal(ep) {
			return s, true
		}
	}
	return nil, false
}

// FindRepairCandidate returns any socket whose peer endpoint shares ep's
// address (ignoring port), whose current peer endpoint is not on a private
// network, and which is not yet connected. Used only for symmetric-NAT
// port repair in the demultiplexer policy.
func (r *Registry) FindRepairCandidate(ep node.Endpoint) (Socket, bool) {
	for _, s := range r.sockets {
		peer := s.PeerEndpoint()
		if peer.Addr() != ep.Addr() {
			continue
		}
		if peer.IsPrivate() {
			continue
		}
		if s.IsConnected() {
			continue
		}
		return s, true
	}
	return nil, false
}

// Len reports the number of registered sockets.
func (r *Registry) Len() int {
	return len(r.sockets)
}
