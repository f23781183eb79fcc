package mux

import "sync/atomic"

// NATType classifies the local NAT's behavior as observed during
// bootstrap NAT detection. Reused verbatim from the wider pack's own NAT
// classification, since it already matches this domain exactly.
type NATType int32

const (
	NATUnknown NATType = iota
	NATNone
	NATSymmetric
	NATRestricted
	NATPortRestricted
	NATCone
)

func (t NATType) String() string {
	switch t {
	case NATNone:
		return "None"
	case NATSymmetric:
		return "Symmetric"
	case NATRestricted:
		return "Restricted"
	case NATPortRestricted:
		return "PortRestricted"
	case NATCone:
		return "Cone"
	default:
		return "Unknown"
	}
}

// NATState is the small injectable {get, set} object the ambient NAT type
// design note calls for, rather than a raw shared reference. The only
// writer is the NAT-detection path in the bootstrap driver.
type NATState struct {
	value atomic.Int32
}

// NewNATState creates a NATState initialized to NATUnknown.
func NewNATState() *NATState {
	s := &NATState{}
	s.value.Store(int32(NATUnknown))
	return s
}

// Get returns the current NAT type.
func (s *NATState) Get() NATType {
	return NATType(s.value.Load())
}

// Set updates the current NAT type.
func (s *NATState) Set(t NATType) {
	s.value.Store(int32(t))
}
