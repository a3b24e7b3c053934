// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestKeyFileRoundTrip(t *testing.T) {
	key := testKeypair(t)
	path := filepath.Join(t.TempDir(), "hub.key")

	if err := SaveKeyFile(path, key); err != nil {
		t.Fatalf("SaveKeyFile: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat key file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("key file permissions = %o, want 0600", perm)
	}
	if info.Size() != 32 {
		t.Errorf("key file size = %d, want 32 raw seed bytes", info.Size())
	}

	loaded, err := LoadKeyFile(path)
	if err != nil {
		t.Fatalf("LoadKeyFile: %v", err)
	}
	if loaded.ID52() != key.ID52() {
		t.Errorf("loaded identity = %s, want %s", loaded.ID52(), key.ID52())
	}
	if !bytes.Equal(loaded.Seed(), key.Seed()) {
		t.Errorf("loaded seed differs from saved seed")
	}
}

func TestLoadKeyFileErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadKeyFile(filepath.Join(dir, "missing.key")); err == nil {
		t.Errorf("LoadKeyFile(missing) succeeded, want error")
	}

	short := filepath.Join(dir, "short.key")
	if err := os.WriteFile(short, []byte("too short"), 0600); err != nil {
		t.Fatalf("writing truncated key file: %v", err)
	}
	if _, err := LoadKeyFile(short); err == nil {
		t.Errorf("LoadKeyFile(truncated) succeeded, want error")
	}
}
