// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// KeyPair is a node's Ed25519 signing identity: the private signing key
// and its derived public verification key. The owning process holds the
// private key exclusively; it is serialized only by SaveKeyFile into
// the node's own home directory.
type KeyPair struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// Generate creates a new Ed25519 keypair from crypto/rand.
func Generate() (KeyPair, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generating Ed25519 keypair: %w", err)
	}
	return KeyPair{public: public, private: private}, nil
}

// FromSeed reconstructs a keypair from the 32-byte private seed, the
// form stored in key files.
func FromSeed(seed []byte) (KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return KeyPair{}, fmt.Errorf("identity: seed has %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	private := ed25519.NewKeyFromSeed(seed)
	return KeyPair{
		public:  private.Public().(ed25519.PublicKey),
		private: private,
	}, nil
}

// Sign signs message with the private key. Returns a 64-byte Ed25519
// signature.
func (k KeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(k.private, message)
}

// Public returns the public verification key.
func (k KeyPair) Public() ed25519.PublicKey { return k.public }

// Seed returns the 32-byte private seed, the serialized key file form.
func (k KeyPair) Seed() []byte { return k.private.Seed() }

// ID52 returns the keypair's public identifier.
func (k KeyPair) ID52() ID52 {
	id, err := EncodeID52(k.public)
	if err != nil {
		// A keypair always carries a 32-byte public key.
		panic(fmt.Sprintf("KeyPair.ID52: internal error: %v", err))
	}
	return id
}

// IsZero reports whether the keypair is uninitialized.
func (k KeyPair) IsZero() bool { return k.private == nil }
