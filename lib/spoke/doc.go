// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

// Package spoke implements the client side of the hub-spoke protocol:
// a keypair paired with exactly one hub, and a typed client for the
// kosha commands.
//
// Every request is a signed envelope and every response is verified
// against the paired hub's pinned identity before the payload is
// trusted. A valid response signed by anyone else is a protocol
// violation, reported as a verification error rather than an
// application failure. Requests for resources on other hubs are
// addressed by the paired hub's alias for them; the spoke never talks
// to a foreign hub directly.
package spoke
