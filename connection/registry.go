package connection

import (
	"fmt"
	"sync"

	"github.com/opd-ai/rudpcore/logging"
	"github.com/opd-ai/rudpcore/node"
)

// ErrNotNormal is returned by Add when conn's state is not one of the
// three registry-eligible states.
var ErrNotNormal = fmt.Errorf("connection state is not normal")

// Registry is the set of live connections, logically keyed by peer node
// id. Its mutex guards membership only — it must never be held across a
// call into a Connection; the canonical pattern is: lock, locate, copy the
// handle, unlock, then operate on the copied handle.
type Registry struct {
	mu      sync.Mutex
	members map[node.ID]Connection
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{members: make(map[node.ID]Connection)}
}

// Add admits conn if its state is normal. Inserting a second connection
// for a peer id already present is a programming error: callers are
// expected to have called Find first.
func (r *Registry) Add(conn Connection) error {
	if !conn.State().IsNormal() {
		return ErrNotNormal
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[conn.PeerID()]; exists {
		panic(fmt.Sprintf("connection registry: duplicate admission for peer %v", conn.PeerID()))
	}
	r.members[conn.PeerID()] = conn
	return nil
}

// Remove erases conn. It must only be called for a connection whose state
// is (or was, immediately prior to this call) normal.
func (r *Registry) Remove(conn Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, conn.PeerID())
}

// Find returns the registered connection for peerID, if any. Members are
// held in a map keyed by peer id, so this is a direct lookup, not a scan.
func (r *Registry) Find(peerID node.ID) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.members[peerID]
	return c, ok
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// CloseAll schedules Close for every member via post. It does not itself
// mutate membership; removal happens asynchronously through each
// connection's own close callback.
func (r *Registry) CloseAll(post func(func())) {
	log := logging.NewLogger("connection", "CloseAll")

	r.mu.Lock()
	handles := make([]Connection, 0, len(r.members))
	for _, c := range r.members {
		handles = append(handles, c)
	}
	r.mu.Unlock()

	log.WithField("count", len(handles)).Debug("closing all connections")
	for _, c := range handles {
		c := c
		post(func() { c.Close() })
	}
}
