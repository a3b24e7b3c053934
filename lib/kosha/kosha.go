// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package kosha

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/kosha-foundation/kosha/lib/wire"
)

const (
	filesDir    = "files"
	versionsDir = "versions"
	blobsDir    = "blobs"
	kvDir       = "kv"

	manifestFile = "manifest.txt"
)

// Kosha is one resource instance rooted at a directory. Mutating
// commands serialize on the instance mutex; reads are lock-free since
// the underlying files are replaced atomically.
type Kosha struct {
	dir string

	// mu serializes mutations (write, rename, delete, kv_set,
	// kv_delete) and manifest appends.
	mu sync.Mutex

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Open creates or opens the kosha at dir, creating its subdirectories
// as needed.
func Open(dir string) (*Kosha, error) {
	for _, sub := range []string{
		filesDir,
		filepath.Join(versionsDir, blobsDir),
		kvDir,
	} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("creating kosha directory: %w", err)
		}
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("initializing zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("initializing zstd decoder: %w", err)
	}

	return &Kosha{dir: dir, encoder: encoder, decoder: decoder}, nil
}

// Dir returns the instance's root directory.
func (k *Kosha) Dir() string { return k.dir }

// HandleCommand dispatches one command against this instance. Errors
// are plain strings per the kosha command contract; the router wraps
// them as application errors.
func (k *Kosha) HandleCommand(command wire.Command, payload json.RawMessage) (json.RawMessage, error) {
	switch command {
	case wire.CmdReadFile:
		return k.readFile(payload)
	case wire.CmdWriteFile:
		return k.writeFile(payload)
	case wire.CmdListDir:
		return k.listDir(payload)
	case wire.CmdGetVersions:
		return k.getVersions(payload)
	case wire.CmdReadVersion:
		return k.readVersion(payload)
	case wire.CmdRename:
		return k.rename(payload)
	case wire.CmdDelete:
		return k.delete(payload)
	case wire.CmdKVGet:
		return k.kvGet(payload)
	case wire.CmdKVSet:
		return k.kvSet(payload)
	case wire.CmdKVDelete:
		return k.kvDelete(payload)
	default:
		// The router validates commands before dispatch; reaching this
		// means a command was added to the wire set but not here.
		return nil, fmt.Errorf("command %q not implemented", command)
	}
}

// decode unmarshals a command payload, mapping failures to the plain
// string errors the contract requires.
func decode(payload json.RawMessage, out any) error {
	if len(payload) == 0 {
		return fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("invalid payload: %v", err)
	}
	return nil
}

// encode marshals a command result. Marshaling these result types
// cannot fail; a failure is an internal bug surfaced as an error.
func encode(result any) (json.RawMessage, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("internal: encoding result: %v", err)
	}
	return data, nil
}

// resolvePath validates a client-supplied relative path and resolves it
// under the instance's files directory. Absolute paths and any form of
// ".." traversal are rejected.
func (k *Kosha) resolvePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	if !filepath.IsLocal(path) {
		return "", fmt.Errorf("invalid path %q", path)
	}
	return filepath.Join(k.dir, filesDir, path), nil
}
