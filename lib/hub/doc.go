// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

// Package hub implements the server side of the hub-spoke protocol:
// a node identity that owns named kosha instances and routes signed,
// authorized requests to them.
//
// A request moves through a fixed pipeline: decode and verify the
// signed envelope, derive the access context from the verified sender,
// evaluate the access policy, route to the registered handler, and
// always answer with a response envelope signed by the hub so callers
// can pin the responder's identity.
//
// The hub's home directory is the durable source of truth: hub.key,
// config.json, and per-instance directories under koshas/. Trust files
// live inside the root instance (koshas/root/files) and are managed by
// the trust store; administrative mutations against a running hub go
// through its admin socket so memory and disk never diverge.
package hub
