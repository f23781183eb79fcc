// Package node defines the value types shared by every rudpcore component:
// peer identity, UDP endpoints, and the public-facing Contact record.
package node

import (
	"bytes"
	"encoding/hex"
)

// IDSize is the length in bytes of a NodeId, matching the public-key size
// produced by crypto.GenerateKeyPair.
const IDSize = 32

// ID is an opaque peer identity.
type ID [IDSize]byte

// Equal reports whether two ids are identical.
func (id ID) Equal(other ID) bool {
	return bytes.Equal(id[:], other[:])
}

// IsValid reports whether id is non-zero. A zero id never identifies a real
// peer; it is only ever seen as a Go zero value before assignment.
func (id ID) IsValid() bool {
	var zero ID
	return !id.Equal(zero)
}

// String returns a short hex preview, never the full identity, matching the
// module-wide convention of not writing raw identities into logs or %v.
func (id ID) String() string {
	return hex.EncodeToString(id[:6]) + "..."
}

// PublicKeySize is the length in bytes of a peer's public key.
const PublicKeySize = 32

// PublicKey is a peer's NaCl box public key.
type PublicKey [PublicKeySize]byte

// IsValid reports whether the key is non-zero.
func (k PublicKey) IsValid() bool {
	var zero PublicKey
	return !bytes.Equal(k[:], zero[:])
}
