package node

import "net/netip"

// Endpoint is a UDP address: an IP and a port. The zero value is invalid.
type Endpoint struct {
	addr netip.AddrPort
}

// NewEndpoint wraps an already-resolved address/port pair.
func NewEndpoint(addr netip.AddrPort) Endpoint {
	return Endpoint{addr: addr}
}

// ParseEndpoint parses "host:port" into an Endpoint.
func ParseEndpoint(s string) (Endpoint, error) {
	addr, err := netip.ParseAddrPort(s)
	if err != nil {
		return Endpoint{}, err
	}
	return Endpoint{addr: addr}, nil
}

// AddrPort returns the underlying address/port pair.
func (e Endpoint) AddrPort() netip.AddrPort {
	return e.addr
}

// Addr returns just the IP address half, with the port stripped — used by
// the demultiplexer's repair-candidate match, which compares addresses only.
func (e Endpoint) Addr() netip.Addr {
	return e.addr.Addr()
}

// IsValid rejects the unspecified address, the zero port, and loopback
// where forbidden is true (loopback is legitimate for local-network tests
// but never a legal advertised external endpoint).
func (e Endpoint) IsValid(forbidLoopback bool) bool {
	if !e.addr.IsValid() {
		return false
	}
	if e.addr.Port() == 0 {
		return false
	}
	a := e.addr.Addr()
	if a.IsUnspecified() {
		return false
	}
	if forbidLoopback && a.IsLoopback() {
		return false
	}
	return true
}

// Equal reports whether two endpoints denote the same address and port.
func (e Endpoint) Equal(other Endpoint) bool {
	return e.addr == other.addr
}

// String renders the endpoint in host:port form.
func (e Endpoint) String() string {
	if !e.addr.IsValid() {
		return "<invalid>"
	}
	return e.addr.String()
}

// IsPrivate reports whether the endpoint's address is loopback,
// link-local, within RFC1918 (IPv4), or in the IPv6 unique-local range,
// matching the "is_private(addr)"
// predicate spec.md requires for symmetric-NAT repair and
// make-connection-permanent endpoint gating.
func (e Endpoint) IsPrivate() bool {
	a := e.addr.Addr()
	if !a.IsValid() {
		return false
	}
	if a.Is4In6() {
		a = a.Unmap()
	}
	if a.IsLoopback() || a.IsLinkLocalUnicast() {
		return true
	}
	if a.Is4() {
		b := a.As4()
		switch {
		case b[0] == 10:
			return true
		case b[0] == 172 && b[1] >= 16 && b[1] <= 31:
			return true
		case b[0] == 192 && b[1] == 168:
			return true
		}
		return false
	}
	// IPv6 unique local addresses, fc00::/7.
	b := a.As16()
	return b[0]&0xfe == 0xfc
}

// EndpointPair carries the two views a peer may be reachable at: the
// address it advertised for itself on its local network, and the address
// observed externally (post-NAT). Either half may be the zero value,
// meaning "unknown".
type EndpointPair struct {
	Local    Endpoint
	External Endpoint
}
