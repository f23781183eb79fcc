package rudpcore

import (
	"time"

	"github.com/opd-ai/rudpcore/connection"
	"github.com/opd-ai/rudpcore/limits"
	"github.com/opd-ai/rudpcore/logging"
	"github.com/opd-ai/rudpcore/manager"
	"github.com/opd-ai/rudpcore/mux"
	"github.com/opd-ai/rudpcore/node"
	"github.com/opd-ai/rudpcore/packet"
)

// BootstrapCompleteFunc reports the outcome of Bootstrap: nil error and
// the winning contact on success, or ErrNotConnectable with a zero
// Contact once every candidate has been exhausted.
type BootstrapCompleteFunc func(err error, chosen node.Contact)

// Bootstrap opens the multiplexer at localAddr, constructs the
// connection manager, starts the dispatch loop, and then tries each
// candidate in order until one connects (see tryBootstrapping). It
// returns immediately; cb reports the eventual outcome.
func (t *Transport) Bootstrap(localAddr string, candidates []node.Contact, bootstrapOffExisting bool, candidateTimeout time.Duration, cb BootstrapCompleteFunc) {
	log := logging.NewLogger("rudpcore", "Bootstrap").WithField("local_addr", localAddr)

	m, err := mux.Open(localAddr)
	if err != nil {
		log.WithError(err, "open_multiplexer").Error("bootstrap failed to open multiplexer")
		if cb != nil {
			t.ex.Post(func() { cb(ErrFailedToOpen, node.Contact{}) })
		}
		return
	}

	mgr := manager.New(t.selfID, t.ex.Post, t.socketFactory, t.defaultOnClose)

	t.mu.Lock()
	t.m = m
	t.mgr = mgr
	t.mu.Unlock()

	t.startDispatch()

	go t.tryBootstrapping(candidates, bootstrapOffExisting, candidateTimeout, cb)
}

// tryBootstrapping is the iterator-driven async loop that replaces the
// source's recursive chained handlers: it tries one candidate at a time,
// in order, and returns on the first success. An assertion guards against
// bootstrapping to one's own identity.
func (t *Transport) tryBootstrapping(candidates []node.Contact, bootstrapOffExisting bool, candidateTimeout time.Duration, cb BootstrapCompleteFunc) {
	log := logging.NewLogger("rudpcore", "tryBootstrapping")

	t.mu.Lock()
	m := t.m
	t.mu.Unlock()

	if bootstrapOffExisting && m.NATState().Get() == mux.NATSymmetric {
		log.Debug("skipping bootstrap attempt, local NAT is symmetric and an existing connection is usable")
		if cb != nil {
			cb(nil, node.Contact{})
		}
		return
	}

	handle := t.handle()

	for _, candidate := range candidates {
		if !handle.isLive() {
			log.Debug("transport closed mid-bootstrap, abandoning remaining candidates")
			return
		}
		if candidate.ID.Equal(t.selfID) {
			panic("rudpcore: bootstrap candidate must not be this node's own identity")
		}

		log.WithField("candidate", candidate.ID.String()).Debug("attempting bootstrap candidate")
		if t.connectToBootstrapEndpoint(candidate, candidateTimeout) {
			t.detectNATType(candidate)
			if cb != nil {
				cb(nil, candidate)
			}
			return
		}
	}

	log.Warn("bootstrap exhausted all candidates")
	if cb != nil {
		cb(ErrNotConnectable, node.Contact{})
	}
}

// connectToBootstrapEndpoint attempts a single candidate and blocks
// (from the perspective of the tryBootstrapping goroutine, not the
// caller of Bootstrap) until it succeeds, fails, or candidateTimeout
// elapses.
func (t *Transport) connectToBootstrapEndpoint(candidate node.Contact, candidateTimeout time.Duration) bool {
	result := make(chan bool, 1)

	t.Connect(candidate.ID, candidate.Endpoints, candidate.PublicKey, candidateTimeout, limits.BootstrapConnectionLifespan, func(err error, conn connection.Connection) {
		select {
		case result <- err == nil:
		default:
		}
	})

	select {
	case ok := <-result:
		return ok
	case <-time.After(candidateTimeout):
		return false
	}
}

// detectNATType pings the candidate's remote NAT-detection endpoint,
// raising OnNATDetectionRequested beforehand. A failed ping sets the
// local NAT type to Symmetric.
func (t *Transport) detectNATType(candidate node.Contact) {
	t.mu.Lock()
	m := t.m
	t.mu.Unlock()
	if m == nil {
		return
	}

	cb := t.callbacks.snapshot()
	if cb.OnNATDetectionRequested != nil {
		cb.OnNATDetectionRequested(m.LocalEndpoint(), candidate.Endpoints.External)
	}

	target := candidate.Endpoints.External
	if conn, ok := t.GetConnection(candidate.ID); ok {
		if remote := conn.RemoteNATDetectionEndpoint(); remote.IsValid(false) {
			target = remote
		}
	}

	result := make(chan bool, 1)
	t.Ping(candidate.ID, target, candidate.PublicKey, func(err error, _ connection.Connection) {
		select {
		case result <- err == nil:
		default:
		}
	})

	select {
	case ok := <-result:
		if !ok {
			m.NATState().Set(mux.NATSymmetric)
		}
	case <-time.After(limits.RendezvousConnectTimeout):
		m.NATState().Set(mux.NATSymmetric)
	}
}

// startDispatch asks the multiplexer for datagrams in a loop, posting
// each onto the executor wrapped in the transport handle. Closing the
// multiplexer is the sole termination condition, matching spec.md's
// dispatch-loop contract.
func (t *Transport) startDispatch() {
	log := logging.NewLogger("rudpcore", "startDispatch")

	t.mu.Lock()
	m := t.m
	t.mu.Unlock()

	handle := t.handle()
	t.dispatchWG.Add(1)
	go func() {
		defer t.dispatchWG.Done()
		log.Debug("dispatch loop started")
		for {
			datagram, source, err := m.ReceiveNext()
			if err != nil {
				if !m.IsOpen() {
					log.Debug("multiplexer closed, dispatch loop exiting")
					return
				}
				continue
			}

			t.ex.Post(func() {
				if !handle.isLive() {
					return
				}
				t.handleDatagram(datagram, source)
			})
		}
	}()
}

func (t *Transport) handleDatagram(datagram []byte, source node.Endpoint) {
	t.mu.Lock()
	mgr := t.mgr
	t.mu.Unlock()
	if mgr == nil {
		return
	}

	sock, ok := mgr.GetSocket(datagram, source)
	if !ok {
		return
	}

	inspected := packet.Inspect(datagram)
	if inspected.Kind == packet.KindForSocket {
		sock.Deliver(datagram[4:])
	}
}
