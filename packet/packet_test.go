package packet

import (
	"testing"

	"github.com/opd-ai/rudpcore/node"
)

func TestInspectShortDatagram(t *testing.T) {
	got := Inspect([]byte{1, 2})
	if got.Kind != KindNotRudp {
		t.Errorf("Kind = %v, want KindNotRudp", got.Kind)
	}
}

func TestInspectForSocket(t *testing.T) {
	datagram := EncodeForSocket(42, []byte("payload"))
	got := Inspect(datagram)
	if got.Kind != KindForSocket {
		t.Fatalf("Kind = %v, want KindForSocket", got.Kind)
	}
	if got.SocketID != 42 {
		t.Errorf("SocketID = %d, want 42", got.SocketID)
	}
}

func TestInspectHandshakeRoundTrip(t *testing.T) {
	h := HandshakePacket{
		NodeID:           node.ID{1, 2, 3},
		PublicKey:        node.PublicKey{4, 5, 6},
		ConnectionReason: BootstrapAndDrop,
	}
	datagram := EncodeHandshake(h)

	got := Inspect(datagram)
	if got.Kind != KindHandshake {
		t.Fatalf("Kind = %v, want KindHandshake", got.Kind)
	}
	if got.Handshake.NodeID != h.NodeID {
		t.Errorf("NodeID mismatch: got %v, want %v", got.Handshake.NodeID, h.NodeID)
	}
	if got.Handshake.PublicKey != h.PublicKey {
		t.Errorf("PublicKey mismatch")
	}
	if got.Handshake.ConnectionReason != BootstrapAndDrop {
		t.Errorf("ConnectionReason = %v, want BootstrapAndDrop", got.Handshake.ConnectionReason)
	}
}

func TestInspectTruncatedHandshake(t *testing.T) {
	datagram := EncodeForSocket(0, []byte{1, 2, 3})
	got := Inspect(datagram)
	if got.Kind != KindNotRudp {
		t.Errorf("Kind = %v, want KindNotRudp for truncated handshake", got.Kind)
	}
}

func TestConnectionReasonString(t *testing.T) {
	tests := []struct {
		reason ConnectionReason
		want   string
	}{
		{Normal, "Normal"},
		{Ping, "Ping"},
		{BootstrapAndDrop, "BootstrapAndDrop"},
	}
	for _, tt := range tests {
		if got := tt.reason.String(); got != tt.want {
			t.Errorf("String() = %v, want %v", got, tt.want)
		}
	}
}
