// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the JSON protocol types exchanged between spokes
// and hubs: the routed Request, the Response envelope payload, the
// closed command and app vocabularies, and the public error taxonomy.
//
// The vocabularies are closed on purpose. The router matches commands
// and apps exhaustively against these types and falls back to an
// explicit unknown-variant error; no handler does its own string
// comparison on protocol fields.
package wire
