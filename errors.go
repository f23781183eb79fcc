package rudpcore

// rudpError is a typed, inspectable error value. Every error kind this
// core surfaces upward is one of these, comparable with errors.Is against
// the exported sentinels below rather than through string matching.
type rudpError struct {
	kind string
}

func (e *rudpError) Error() string {
	return e.kind
}

var (
	// ErrFailedToOpen means the multiplexer could not bind its UDP socket.
	ErrFailedToOpen = &rudpError{"failed to open multiplexer"}

	// ErrNotConnectable means bootstrap exhausted its candidate list
	// without a single successful connection.
	ErrNotConnectable = &rudpError{"no bootstrap candidate was connectable"}

	// ErrFailedToConnect means an outbound connect was attempted on a
	// closed multiplexer, or the peer refused.
	ErrFailedToConnect = &rudpError{"failed to connect"}

	// ErrInvalidConnection means an attempt was made to admit a
	// non-normal connection into the registry.
	ErrInvalidConnection = &rudpError{"invalid connection"}

	// ErrConnectionAlreadyExists means a duplicate admission was
	// attempted; this is never propagated to the application, only
	// logged.
	ErrConnectionAlreadyExists = &rudpError{"connection already exists"}

	// ErrTimedOut means a connection was removed because it timed out.
	ErrTimedOut = &rudpError{"connection timed out"}
)
