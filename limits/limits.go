// Package limits holds the process-wide configuration constants the
// connection-management core is built against: bootstrap timeouts,
// connection lifespans, and the connection/message size caps.
package limits

import "time"

var (
	// BootstrapConnectTimeout bounds a single candidate's connect attempt
	// during bootstrap.
	BootstrapConnectTimeout = 5 * time.Second

	// BootstrapConnectionLifespan is how long a provisional bootstrap or
	// ping-recycle connection is kept alive before it expires on its own.
	BootstrapConnectionLifespan = 20 * time.Second

	// RendezvousConnectTimeout bounds an outbound connect attempt made
	// outside of bootstrap (direct peer-to-peer rendezvous).
	RendezvousConnectTimeout = 10 * time.Second
)

// InfiniteLifespan is the sentinel meaning "no expiry" for an established,
// validated connection.
const InfiniteLifespan time.Duration = 0

// MaxConnections is the upper bound on simultaneously registered
// connections.
const MaxConnections = 50

// MaxMessageSize is the largest single message the core will accept for
// sending or delivering.
const MaxMessageSize = 64 * 1024 * 1024
