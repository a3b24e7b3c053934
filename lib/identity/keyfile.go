// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"fmt"
	"os"
)

// SaveKeyFile writes the 32-byte private seed to path with 0600
// permissions. The public key is derivable from the seed, so nothing
// else is stored.
func SaveKeyFile(path string, key KeyPair) error {
	if err := os.WriteFile(path, key.Seed(), 0600); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}

// LoadKeyFile reads a 32-byte private seed from path and reconstructs
// the keypair. Returns an error if the file is missing or has an
// unexpected size.
func LoadKeyFile(path string) (KeyPair, error) {
	seed, err := os.ReadFile(path)
	if err != nil {
		return KeyPair{}, fmt.Errorf("reading key file: %w", err)
	}
	key, err := FromSeed(seed)
	if err != nil {
		return KeyPair{}, fmt.Errorf("key file %s: %w", path, err)
	}
	return key, nil
}
