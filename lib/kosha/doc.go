// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

// Package kosha implements a named versioned-file/KV resource instance.
//
// A kosha lives in one directory:
//
//	files/     current file contents, plain
//	versions/  content-addressed history: blobs/<blake3>.zst plus
//	           manifest.txt ("<created RFC3339> <blake3> <path>" lines)
//	kv/        one JSON value per key
//
// Every write_file stores the new content as a zstd-compressed blob
// addressed by its BLAKE3 hash before updating the live file, so
// get_versions/read_version can serve the full history of a path.
//
// The router consumes a kosha only through HandleCommand: commands are
// the closed wire.Command set, payloads are JSON, and errors are plain
// strings wrapped by the router into the public app-error code.
package kosha
