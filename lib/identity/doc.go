// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity provides Ed25519 node identity for hubs and spokes.
//
// Every peer in the protocol is identified by its ID52: the 52-character
// lowercase base32 encoding of its 32-byte Ed25519 public key. There are
// no separate node IDs — the ID52 is the identity, and possession of the
// matching private key is the only proof of it.
//
// The package covers keypair generation, signing, ID52 encoding and
// decoding, and persistence of the raw 32-byte private seed to a local
// key file. Private keys never leave the owning process except through
// SaveKeyFile to the node's own home directory.
package identity
