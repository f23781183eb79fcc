package rudpcore

import (
	"sync"

	"github.com/opd-ai/rudpcore/connection"
	"github.com/opd-ai/rudpcore/node"
)

// OnMessageFunc delivers an application payload from peer. Delivery is
// best-effort and happens in executor order per peer.
type OnMessageFunc func(peer node.ID, data []byte)

// OnConnectionAddedFunc fires exactly once per non-duplicate admission,
// including temporaries.
type OnConnectionAddedFunc func(peer node.ID, t *Transport, isTemporary bool, conn connection.Connection)

// OnConnectionLostFunc fires exactly once per non-duplicate removal.
type OnConnectionLostFunc func(peer node.ID, t *Transport, isTemporary bool, timedOut bool)

// OnNATDetectionRequestedFunc is raised by the NAT-detection path; it
// must never be nil on a constructed Transport.
type OnNATDetectionRequestedFunc func(local, peer node.Endpoint)

// Callbacks is the transport-level upward callback set an embedder
// supplies at construction time.
type Callbacks struct {
	OnMessage               OnMessageFunc
	OnConnectionAdded       OnConnectionAddedFunc
	OnConnectionLost        OnConnectionLostFunc
	OnNATDetectionRequested OnNATDetectionRequestedFunc
}

// callbackSet guards the callback set so that Close can null the three
// application callbacks (OnMessage, OnConnectionAdded, OnConnectionLost)
// while another goroutine is mid-dispatch; OnNATDetectionRequested is
// replaced by a no-op rather than nulled. Callbacks are
// snapshotted under the lock and invoked outside of it, so that upcalls
// can never reenter and deadlock against Close.
type callbackSet struct {
	mu sync.Mutex
	cb Callbacks
}

func newCallbackSet(cb Callbacks) *callbackSet {
	if cb.OnNATDetectionRequested == nil {
		cb.OnNATDetectionRequested = func(local, peer node.Endpoint) {}
	}
	return &callbackSet{cb: cb}
}

func (c *callbackSet) snapshot() Callbacks {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cb
}

func (c *callbackSet) clear() {
	c.mu.Lock()
	c.cb = Callbacks{OnNATDetectionRequested: func(local, peer node.Endpoint) {}}
	c.mu.Unlock()
}
