// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"crypto/ed25519"
	"encoding/base32"
	"errors"
	"fmt"
)

// ID52Length is the exact length of an encoded ID52 string: 32 bytes of
// public key at 5 bits per base32 character, rounded up.
const ID52Length = 52

// id52Encoding is RFC 4648 base32hex (the DNSSEC alphabet), lowercase,
// unpadded. 32 bytes always encode to exactly 52 characters.
var id52Encoding = base32.NewEncoding("0123456789abcdefghijklmnopqrstuv").WithPadding(base32.NoPadding)

// ErrInvalidID52 is returned when a string is not a valid ID52: wrong
// length, characters outside the lowercase base32hex alphabet, or a
// decoded size other than 32 bytes.
var ErrInvalidID52 = errors.New("identity: invalid ID52")

// ID52 is a validated peer identifier: the base32hex encoding of a
// 32-byte Ed25519 public key. It is bijective with the public key, so
// converting back to the key for signature verification never fails.
//
// ID52 is an immutable value type. The zero value is not a valid
// identifier; use IsZero to check.
type ID52 struct {
	id string
}

// ParseID52 validates and wraps a raw ID52 string. Returns
// ErrInvalidID52 (wrapped with detail) if the string does not decode to
// exactly 32 bytes.
func ParseID52(raw string) (ID52, error) {
	if len(raw) != ID52Length {
		return ID52{}, fmt.Errorf("%w: length %d, want %d", ErrInvalidID52, len(raw), ID52Length)
	}
	decoded, err := id52Encoding.DecodeString(raw)
	if err != nil {
		return ID52{}, fmt.Errorf("%w: %v", ErrInvalidID52, err)
	}
	if len(decoded) != ed25519.PublicKeySize {
		return ID52{}, fmt.Errorf("%w: decodes to %d bytes, want %d", ErrInvalidID52, len(decoded), ed25519.PublicKeySize)
	}
	return ID52{id: raw}, nil
}

// EncodeID52 encodes a 32-byte Ed25519 public key as an ID52.
func EncodeID52(public ed25519.PublicKey) (ID52, error) {
	if len(public) != ed25519.PublicKeySize {
		return ID52{}, fmt.Errorf("%w: public key has %d bytes, want %d", ErrInvalidID52, len(public), ed25519.PublicKeySize)
	}
	return ID52{id: id52Encoding.EncodeToString(public)}, nil
}

// String returns the 52-character identifier string.
func (i ID52) String() string { return i.id }

// IsZero reports whether the ID52 is the zero value (uninitialized).
func (i ID52) IsZero() bool { return i.id == "" }

// PublicKey returns the Ed25519 public key this identifier encodes.
// Panics if called on a zero-value ID52 — the value was either produced
// by ParseID52/EncodeID52 (and re-decoding cannot fail) or it is zero.
func (i ID52) PublicKey() ed25519.PublicKey {
	if i.id == "" {
		panic("ID52.PublicKey called on zero value")
	}
	decoded, err := id52Encoding.DecodeString(i.id)
	if err != nil {
		// ID52 was validated at construction — this is unreachable.
		panic(fmt.Sprintf("ID52.PublicKey: internal error decoding %q: %v", i.id, err))
	}
	return ed25519.PublicKey(decoded)
}

// Verify reports whether signature is a valid Ed25519 signature of
// message under the public key this identifier encodes.
func (i ID52) Verify(message, signature []byte) bool {
	return ed25519.Verify(i.PublicKey(), message, signature)
}

// MarshalText implements encoding.TextMarshaler for JSON and other
// text-based serialization formats.
func (i ID52) MarshalText() ([]byte, error) {
	return []byte(i.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Validates the
// identifier; an empty input produces the zero value.
func (i *ID52) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = ID52{}
		return nil
	}
	parsed, err := ParseID52(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
