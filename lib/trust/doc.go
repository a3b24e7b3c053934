// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

// Package trust persists and serves a hub's authorization relations:
// the spokes it has authorized, the peer hubs it trusts for forwarded
// traffic, per-resource access control lists, and sightings of spokes
// that have connected but are not yet authorized.
//
// The flat text files under the hub's root resource are the durable
// source of truth; the in-memory state is a cache populated at load
// time. Every mutating operation rewrites the affected file with a
// write-to-temp-then-rename before it returns, under a single store
// mutex, so readers always observe the most recently completed write
// and no two mutations interleave partial updates.
//
// File formats:
//
//	spokes.txt     "<id52>: <alias>"
//	pending.txt    "<id52>: <first_seen RFC3339> [<alias>]"
//	acl.txt        "<app>/<instance> <id52> <granted_at RFC3339> [<display name>]"
//	hubs/*.hubs    "<id52>: <alias> [<url>]"
//
// Lines starting with '#' and blank lines are ignored everywhere.
package trust
