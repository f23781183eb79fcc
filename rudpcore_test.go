package rudpcore

import (
	"net/netip"
	"testing"
	"time"

	"github.com/opd-ai/rudpcore/connection"
	"github.com/opd-ai/rudpcore/crypto"
	"github.com/opd-ai/rudpcore/node"
)

func mustPublicKey(t *testing.T) node.PublicKey {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return node.PublicKey(kp.Public)
}

func mustEndpoint(t *testing.T, s string) node.Endpoint {
	t.Helper()
	ep, err := node.ParseEndpoint(s)
	if err != nil {
		t.Fatalf("ParseEndpoint(%q): %v", s, err)
	}
	return ep
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestBootstrapHappyPath(t *testing.T) {
	added := make(chan struct{}, 1)
	cb := Callbacks{
		OnConnectionAdded: func(peer node.ID, tr *Transport, isTemporary bool, conn connection.Connection) {
			select {
			case added <- struct{}{}:
			default:
			}
		},
	}

	local := NewTransport(node.ID{1}, mustPublicKey(t), cb, nil)
	defer local.Close()

	peerEp := mustEndpoint(t, "127.0.0.1:40101")
	candidate := node.Contact{
		ID:        node.ID{2},
		Endpoints: node.EndpointPair{External: peerEp},
		PublicKey: mustPublicKey(t),
	}

	done := make(chan struct{}, 1)
	var gotErr error
	var gotContact node.Contact
	local.Bootstrap("127.0.0.1:0", []node.Contact{candidate}, false, time.Second, func(err error, chosen node.Contact) {
		gotErr = err
		gotContact = chosen
		close(done)
	})

	waitFor(t, done, "bootstrap completion")
	if gotErr != nil {
		t.Fatalf("unexpected bootstrap error: %v", gotErr)
	}
	if !gotContact.ID.Equal(candidate.ID) {
		t.Errorf("expected chosen contact %v, got %v", candidate.ID, gotContact.ID)
	}

	waitFor(t, added, "on_connection_added")
	if local.NormalConnectionsCount() != 1 {
		t.Errorf("NormalConnectionsCount() = %d, want 1", local.NormalConnectionsCount())
	}
}

func TestCloseConnectionFiresOnConnectionLostAndIsIdempotent(t *testing.T) {
	added := make(chan struct{}, 1)
	lost := make(chan bool, 1)
	cb := Callbacks{
		OnConnectionAdded: func(peer node.ID, tr *Transport, isTemporary bool, conn connection.Connection) {
			select {
			case added <- struct{}{}:
			default:
			}
		},
		OnConnectionLost: func(peer node.ID, tr *Transport, isTemporary bool, timedOut bool) {
			select {
			case lost <- timedOut:
			default:
			}
		},
	}

	local := NewTransport(node.ID{1}, mustPublicKey(t), cb, nil)
	defer local.Close()

	candidate := node.Contact{
		ID:        node.ID{2},
		Endpoints: node.EndpointPair{External: mustEndpoint(t, "127.0.0.1:40102")},
		PublicKey: mustPublicKey(t),
	}

	done := make(chan struct{}, 1)
	local.Bootstrap("127.0.0.1:0", []node.Contact{candidate}, false, time.Second, func(err error, chosen node.Contact) {
		close(done)
	})
	waitFor(t, done, "bootstrap completion")
	waitFor(t, added, "on_connection_added")

	if !local.CloseConnection(candidate.ID) {
		t.Fatal("expected CloseConnection to return true the first time")
	}

	select {
	case timedOut := <-lost:
		if timedOut {
			t.Error("expected timed_out=false for an explicit close")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for on_connection_lost")
	}

	if local.NormalConnectionsCount() != 0 {
		t.Errorf("NormalConnectionsCount() = %d, want 0 after close", local.NormalConnectionsCount())
	}

	if local.CloseConnection(candidate.ID) {
		t.Error("expected the second CloseConnection for the same peer to return false")
	}
}

func TestBootstrapExhaustionWithUnreachableCandidates(t *testing.T) {
	done := make(chan struct{}, 1)
	var gotErr error

	local := NewTransport(node.ID{1}, node.PublicKey{1}, Callbacks{}, nil)
	defer local.Close()

	// Endpoints with no valid address/port never produce a successful
	// connect, exercising the same "exhausted every candidate" path a
	// genuinely unreachable peer would.
	unreachable := []node.Contact{
		{ID: node.ID{3}, Endpoints: node.EndpointPair{}},
		{ID: node.ID{4}, Endpoints: node.EndpointPair{}},
		{ID: node.ID{5}, Endpoints: node.EndpointPair{}},
	}

	local.Bootstrap("127.0.0.1:0", unreachable, false, 200*time.Millisecond, func(err error, chosen node.Contact) {
		gotErr = err
		close(done)
	})

	waitFor(t, done, "bootstrap completion")
	if gotErr != ErrNotConnectable {
		t.Errorf("gotErr = %v, want ErrNotConnectable", gotErr)
	}
	if local.NormalConnectionsCount() != 0 {
		t.Errorf("NormalConnectionsCount() = %d, want 0", local.NormalConnectionsCount())
	}
}

func TestBootstrapFailsToOpenOnBadAddress(t *testing.T) {
	done := make(chan struct{}, 1)
	var gotErr error

	local := NewTransport(node.ID{1}, node.PublicKey{1}, Callbacks{}, nil)
	defer local.Close()

	local.Bootstrap("not-a-valid-address", nil, false, time.Second, func(err error, chosen node.Contact) {
		gotErr = err
		close(done)
	})

	waitFor(t, done, "bootstrap completion")
	if gotErr != ErrFailedToOpen {
		t.Errorf("gotErr = %v, want ErrFailedToOpen", gotErr)
	}
}

func TestCloseIsIdempotentAndSendFailsAfterClose(t *testing.T) {
	local := NewTransport(node.ID{1}, node.PublicKey{1}, Callbacks{}, nil)

	done := make(chan struct{}, 1)
	local.Bootstrap("127.0.0.1:0", nil, false, 100*time.Millisecond, func(err error, chosen node.Contact) {
		close(done)
	})
	waitFor(t, done, "bootstrap completion")

	local.Close()
	local.Close() // idempotent

	if local.Send(node.ID{9}, []byte("x"), nil) {
		t.Error("expected Send to fail after Close")
	}
}

func TestSendUnknownPeerReturnsFalse(t *testing.T) {
	local := NewTransport(node.ID{1}, node.PublicKey{1}, Callbacks{}, nil)
	defer local.Close()

	done := make(chan struct{}, 1)
	local.Bootstrap("127.0.0.1:0", nil, false, 100*time.Millisecond, func(err error, chosen node.Contact) {
		close(done)
	})
	waitFor(t, done, "bootstrap completion")

	if local.Send(node.ID{9}, []byte("x"), nil) {
		t.Error("expected Send to fail for an unregistered peer")
	}
}

func TestEndpointPairParsesLoopback(t *testing.T) {
	ep := mustEndpoint(t, "127.0.0.1:1234")
	if ep.AddrPort().Addr() != netip.MustParseAddr("127.0.0.1") {
		t.Error("unexpected address parsed")
	}
}
