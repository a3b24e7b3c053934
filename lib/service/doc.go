// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides server lifecycle plumbing shared by the hub
// binaries: an HTTP server for the spoke-facing envelope endpoint and
// a Unix-socket server for the operator-local admin protocol.
//
// Both follow the same lifecycle: Serve(ctx) blocks until the context
// is cancelled, then stops accepting and drains active work. The
// servers carry no protocol knowledge — the hub supplies handlers.
package service
