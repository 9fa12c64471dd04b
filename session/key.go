package session

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/cloudx-io/outcry/ledger"
)

// Key is an ephemeral Ed25519 signing key registered as a session signer.
// Its public key doubles as its ledger identity.
type Key struct {
	privateKey ed25519.PrivateKey // Keep private - sensitive!
	PublicKey  ed25519.PublicKey
}

// NewKey generates a fresh ephemeral key pair
func NewKey() (*Key, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", err)
	}
	return &Key{privateKey: priv, PublicKey: pub}, nil
}

// KeyFromSeed derives a key deterministically from a 32-byte seed.
func KeyFromSeed(seed []byte) (*Key, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid seed length: expected %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Key{privateKey: priv, PublicKey: priv.Public().(ed25519.PublicKey)}, nil
}

// Address returns the ledger identity of the key.
func (k *Key) Address() ledger.Address {
	var a ledger.Address
	copy(a[:], k.PublicKey)
	return a
}
