// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

// Package envelope implements the signed request/response envelope of
// the hub-spoke protocol.
//
// An envelope carries a sender (or responder) ID52, an arbitrary JSON
// payload, and an Ed25519 signature over the UTF-8 bytes of
// "<id52>|<canonical_json(payload)>". Verification recomputes that
// message from the received fields, so the caller's identity is only
// ever established by a valid signature — never by trusting an
// unauthenticated field.
//
// The package is pure: it performs no I/O and cannot block.
package envelope
