package connection

import (
	"sync"
	"time"

	"github.com/opd-ai/rudpcore/logging"
	"github.com/opd-ai/rudpcore/node"
	"github.com/opd-ai/rudpcore/socket"
)

// CompletionFunc is invoked once a connect or ping attempt settles.
type CompletionFunc func(err error, c Connection)

// Connection is the per-peer object the connection-management core
// schedules work onto. It is declared as an interface because, per the
// domain's ownership model, the connection-management core treats it as an
// external collaborator it drives but does not itself define the
// reliability internals of; Conn below is this module's concrete
// implementation.
type Connection interface {
	PeerID() node.ID
	PeerEndpoint() node.Endpoint
	PeerPublicKey() node.PublicKey
	ThisEndpoint() node.Endpoint
	RemoteNATDetectionEndpoint() node.Endpoint
	State() State

	StartConnecting(timeout, lifespan time.Duration, onComplete CompletionFunc)
	Ping(onComplete CompletionFunc)
	StartSending(data []byte) error
	MakePermanent(validated bool) bool
	Close()
	SetOnClose(fn CompletionFunc)
	ExpiresFromNow() time.Duration
	IsConnected() bool
	UpdatePeerEndpoint(ep node.Endpoint)
}

// Conn is the concrete Connection implementation. All state transitions
// are expected to run on the owning Transport's executor; Conn itself
// only guards its own fields with a mutex so that read-only accessors
// (State, PeerEndpoint, ExpiresFromNow) remain safe to call from any
// goroutine, matching the "public entry points callable from arbitrary
// threads" requirement placed on the layers above it.
type Conn struct {
	mu sync.Mutex

	peerID        node.ID
	peerPublicKey node.PublicKey
	sock          socket.Socket

	state     State
	expiresAt time.Time // zero value means no expiry

	onClose CompletionFunc
}

// New creates a Connection in the Pending state wrapping sock.
func New(peerID node.ID, peerPublicKey node.PublicKey, sock socket.Socket) *Conn {
	return &Conn{
		peerID:        peerID,
		peerPublicKey: peerPublicKey,
		sock:          sock,
		state:         Pending,
	}
}

func (c *Conn) PeerID() node.ID { return c.peerID }

func (c *Conn) PeerEndpoint() node.Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock.PeerEndpoint()
}

func (c *Conn) PeerPublicKey() node.PublicKey { return c.peerPublicKey }

// ThisEndpoint returns this socket's local endpoint as observed by the
// peer, or the zero Endpoint if unknown.
func (c *Conn) ThisEndpoint() node.Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock.ThisEndpoint()
}

// RemoteNATDetectionEndpoint returns the endpoint the peer advertised for
// NAT-type detection pings.
func (c *Conn) RemoteNATDetectionEndpoint() node.Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock.RemoteNATDetectionEndpoint()
}

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// CompleteHandshake transitions the connection out of its provisional
// Bootstrapping state into the state the just-completed handshake
// resolved to: Unvalidated, Permanent, Temporary, or Duplicate. It is
// called by the external reliability engine once a handshake concludes,
// not by any public manager entry point.
func (c *Conn) CompleteHandshake(resolved State) {
	c.mu.Lock()
	c.state = resolved
	c.mu.Unlock()
}

// StartConnecting begins the socket's reliability engine and arms an
// expiry deadline. It transitions to Bootstrapping as a provisional state;
// callers that need a different post-handshake state call the relevant
// transition explicitly once the handshake resolves.
func (c *Conn) StartConnecting(timeout, lifespan time.Duration, onComplete CompletionFunc) {
	log := logging.NewLogger("connection", "StartConnecting")

	c.mu.Lock()
	c.state = Bootstrapping
	if lifespan > 0 {
		c.expiresAt = time.Now().Add(lifespan)
	}
	c.mu.Unlock()

	err := c.sock.Start()
	if err != nil {
		log.WithError(err, "socket_start").Warn("socket failed to start")
	}
	if onComplete != nil {
		onComplete(err, c)
	}
}

// Ping starts a transient, one-shot probe. A Connection used only for
// Ping never transitions out of Temporary and never enters the registry.
func (c *Conn) Ping(onComplete CompletionFunc) {
	c.setState(Temporary)
	err := c.sock.Start()
	if onComplete != nil {
		onComplete(err, c)
	}
}

// StartSending hands data to the socket's reliability engine.
func (c *Conn) StartSending(data []byte) error {
	c.mu.Lock()
	sock := c.sock
	c.mu.Unlock()
	return sock.Send(data)
}

// MakePermanent transitions an Unvalidated connection to Permanent iff
// validated is true. It returns false (and leaves the state unchanged) if
// the connection was not Unvalidated, or if validated is false — this
// bool reports whether the internal transition happened, which is a
// separate question from whether manager.MakeConnectionPermanent reports
// success to its own caller (see that function's doc comment).
func (c *Conn) MakePermanent(validated bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !validated || c.state != Unvalidated {
		return false
	}
	c.state = Permanent
	c.expiresAt = time.Time{}
	return true
}

// Close tears the connection down and invokes any registered close
// completion handler.
func (c *Conn) Close() {
	c.mu.Lock()
	sock := c.sock
	onClose := c.onClose
	c.mu.Unlock()

	sock.Stop()
	if onClose != nil {
		onClose(nil, c)
	}
}

// SetOnClose registers the handler invoked by Close. It is set once by the
// connection manager immediately after construction, before the
// connection is exposed to any other goroutine.
func (c *Conn) SetOnClose(fn CompletionFunc) {
	c.mu.Lock()
	c.onClose = fn
	c.mu.Unlock()
}

// ExpiresFromNow returns the remaining time until the connection's
// lifespan elapses, or InfiniteLifespan (zero) if it never expires.
func (c *Conn) ExpiresFromNow() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expiresAt.IsZero() {
		return 0
	}
	d := time.Until(c.expiresAt)
	if d < 0 {
		return 0
	}
	return d
}

// IsConnected reports whether the underlying socket has completed its
// handshake.
func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock.IsConnected()
}

// UpdatePeerEndpoint repairs the socket's notion of the peer's address.
func (c *Conn) UpdatePeerEndpoint(ep node.Endpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sock.UpdatePeerEndpoint(ep)
}
