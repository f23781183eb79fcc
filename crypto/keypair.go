// Package crypto generates the NaCl box key pairs peers are identified by.
// Key operations beyond generation (encryption, signatures, key exchange)
// are out of this core's scope — it only needs a PublicKey value type and
// a way to mint realistic ones.
package crypto

import (
	"crypto/rand"

	"golang.org/x/crypto/nacl/box"
)

// KeyPair is a NaCl crypto_box key pair.
type KeyPair struct {
	Public  [32]byte
	Private [32]byte
}

// GenerateKeyPair creates a new random NaCl key pair.
func GenerateKeyPair() (*KeyPair, error) {
	publicKey, privateKey, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	return &KeyPair{
		Public:  *publicKey,
		Private: *privateKey,
	}, nil
}
