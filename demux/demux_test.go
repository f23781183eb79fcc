package demux

import (
	"testing"

	"github.com/opd-ai/rudpcore/node"
	"github.com/opd-ai/rudpcore/packet"
	"github.com/opd-ai/rudpcore/socket"
)

type fakeSocket struct {
	peer      node.Endpoint
	connected bool
}

func (f *fakeSocket) PeerEndpoint() node.Endpoint             { return f.peer }
func (f *fakeSocket) IsConnected() bool                       { return f.connected }
func (f *fakeSocket) UpdatePeerEndpoint(ep node.Endpoint)      { f.peer = ep }
func (f *fakeSocket) ThisEndpoint() node.Endpoint              { return node.Endpoint{} }
func (f *fakeSocket) RemoteNATDetectionEndpoint() node.Endpoint { return node.Endpoint{} }
func (f *fakeSocket) Start() error                             { return nil }
func (f *fakeSocket) Stop()                                    {}
func (f *fakeSocket) Send(payload []byte) error                { return nil }
func (f *fakeSocket) Deliver(payload []byte)                    {}

func ep(t *testing.T, s string) node.Endpoint {
	t.Helper()
	e, err := node.ParseEndpoint(s)
	if err != nil {
		t.Fatalf("ParseEndpoint(%q): %v", s, err)
	}
	return e
}

func TestDispatchEmptyRegistry(t *testing.T) {
	r := socket.NewRegistry()
	_, ok := Dispatch(r, packet.EncodeForSocket(5, nil), ep(t, "1.2.3.4:1"), nil)
	if ok {
		t.Error("expected no match on empty registry")
	}
}

func TestDispatchNotRudp(t *testing.T) {
	r := socket.NewRegistry()
	r.Insert(&fakeSocket{peer: ep(t, "1.2.3.4:1")})
	_, ok := Dispatch(r, []byte{1}, ep(t, "1.2.3.4:1"), nil)
	if ok {
		t.Error("expected no match for undecodable datagram")
	}
}

func TestDispatchForSocket(t *testing.T) {
	r := socket.NewRegistry()
	target := &fakeSocket{peer: ep(t, "1.2.3.4:1")}
	id := r.Insert(target)

	got, ok := Dispatch(r, packet.EncodeForSocket(id, []byte("x")), ep(t, "9.9.9.9:1"), nil)
	if !ok || got != socket.Socket(target) {
		t.Fatal("expected dispatch to the addressed socket id")
	}
}

func TestDispatchForUnknownSocketID(t *testing.T) {
	r := socket.NewRegistry()
	r.Insert(&fakeSocket{peer: ep(t, "1.2.3.4:1")})

	_, ok := Dispatch(r, packet.EncodeForSocket(999999, nil), ep(t, "1.2.3.4:1"), nil)
	if ok {
		t.Error("expected no match for unregistered socket id")
	}
}

func TestDispatchNormalHandshakeExactMatch(t *testing.T) {
	r := socket.NewRegistry()
	source := ep(t, "1.2.3.4:5000")
	exact := &fakeSocket{peer: source}
	r.Insert(exact)

	h := packet.HandshakePacket{NodeID: node.ID{1}, ConnectionReason: packet.Normal}
	got, ok := Dispatch(r, packet.EncodeHandshake(h), source, nil)
	if !ok || got != socket.Socket(exact) {
		t.Fatal("expected exact-endpoint match")
	}
}

func TestDispatchNormalHandshakeRepairCandidate(t *testing.T) {
	r := socket.NewRegistry()
	candidate := &fakeSocket{peer: ep(t, "1.2.3.4:5000")}
	r.Insert(candidate)

	newSource := ep(t, "1.2.3.4:5999")
	h := packet.HandshakePacket{NodeID: node.ID{1}, ConnectionReason: packet.Normal}
	got, ok := Dispatch(r, packet.EncodeHandshake(h), newSource, nil)
	if !ok || got != socket.Socket(candidate) {
		t.Fatal("expected repair-candidate match")
	}
	if !candidate.peer.Equal(newSource) {
		t.Error("expected repair candidate's peer endpoint to be updated before use")
	}
}

func TestDispatchExactBeatsRepairCandidate(t *testing.T) {
	r := socket.NewRegistry()
	source := ep(t, "1.2.3.4:5999")
	exact := &fakeSocket{peer: source}
	repairable := &fakeSocket{peer: ep(t, "1.2.3.4:5000")}
	r.Insert(exact)
	r.Insert(repairable)

	h := packet.HandshakePacket{NodeID: node.ID{1}, ConnectionReason: packet.Normal}
	got, ok := Dispatch(r, packet.EncodeHandshake(h), source, nil)
	if !ok || got != socket.Socket(exact) {
		t.Fatal("expected exact match to win over repair candidate")
	}
}

func TestDispatchNonNormalReplyMatch(t *testing.T) {
	r := socket.NewRegistry()
	source := ep(t, "1.2.3.4:5000")
	s := &fakeSocket{peer: source}
	r.Insert(s)

	h := packet.HandshakePacket{NodeID: node.ID{1}, ConnectionReason: packet.Ping}
	got, ok := Dispatch(r, packet.EncodeHandshake(h), source, nil)
	if !ok || got != socket.Socket(s) {
		t.Fatal("expected ping reply to match by exact endpoint")
	}
}

func TestDispatchPingFromStrangerInvokesCallback(t *testing.T) {
	r := socket.NewRegistry()
	r.Insert(&fakeSocket{peer: ep(t, "9.9.9.9:1")})

	var gotPkt packet.HandshakePacket
	var gotSource node.Endpoint
	var called bool

	h := packet.HandshakePacket{NodeID: node.ID{7}, ConnectionReason: packet.BootstrapAndDrop}
	strangerEp := ep(t, "1.2.3.4:9000")

	_, ok := Dispatch(r, packet.EncodeHandshake(h), strangerEp, func(pkt packet.HandshakePacket, source node.Endpoint) {
		called = true
		gotPkt = pkt
		gotSource = source
	})

	if ok {
		t.Error("expected no socket match for a stranger ping")
	}
	if !called {
		t.Fatal("expected onPingFromStranger to be invoked")
	}
	if gotPkt.NodeID != h.NodeID {
		t.Error("expected the handshake packet to be forwarded")
	}
	if !gotSource.Equal(strangerEp) {
		t.Error("expected the source endpoint to be forwarded")
	}
}
