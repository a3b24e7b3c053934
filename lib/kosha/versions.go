// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package kosha

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

// storeVersion records content in the content-addressed history for
// path: the zstd-compressed blob keyed by the content's BLAKE3 hash,
// plus a manifest line. Writing the same content twice reuses the blob
// but still appends a manifest entry. Caller holds k.mu.
func (k *Kosha) storeVersion(path string, content []byte) error {
	sum := blake3.Sum256(content)
	version := hex.EncodeToString(sum[:])

	blobPath := filepath.Join(k.dir, versionsDir, blobsDir, version+".zst")
	if _, err := os.Stat(blobPath); os.IsNotExist(err) {
		compressed := k.encoder.EncodeAll(content, nil)
		if err := os.WriteFile(blobPath, compressed, 0644); err != nil {
			return fmt.Errorf("storing version blob: %v", err)
		}
	}

	manifestPath := filepath.Join(k.dir, versionsDir, manifestFile)
	manifest, err := os.OpenFile(manifestPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening version manifest: %v", err)
	}
	defer manifest.Close()

	line := fmt.Sprintf("%s %s %s\n", time.Now().UTC().Format(time.RFC3339), version, path)
	if _, err := manifest.WriteString(line); err != nil {
		return fmt.Errorf("appending version manifest: %v", err)
	}
	return nil
}

// Version is one get_versions result entry.
type Version struct {
	Version string    `json:"version"`
	Created time.Time `json:"created"`
}

// versionsPayload is the request shape for get_versions.
type versionsPayload struct {
	Path string `json:"path"`
}

// versionsResult is the result shape for get_versions, newest first.
type versionsResult struct {
	Entries []Version `json:"entries"`
}

func (k *Kosha) getVersions(payload json.RawMessage) (json.RawMessage, error) {
	var request versionsPayload
	if err := decode(payload, &request); err != nil {
		return nil, err
	}
	if _, err := k.resolvePath(request.Path); err != nil {
		return nil, err
	}

	versions, err := k.versionsFor(request.Path)
	if err != nil {
		return nil, err
	}
	return encode(versionsResult{Entries: versions})
}

// versionsFor scans the manifest for entries recorded against path and
// returns them newest first. The manifest itself is append-only, so
// reversing the scan order gives the reverse-chronological view.
func (k *Kosha) versionsFor(path string) ([]Version, error) {
	data, err := os.ReadFile(filepath.Join(k.dir, versionsDir, manifestFile))
	if os.IsNotExist(err) {
		return []Version{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading version manifest: %v", err)
	}

	versions := []Version{}
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		stamp, rest, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		version, entryPath, ok := strings.Cut(rest, " ")
		if !ok || entryPath != path {
			continue
		}
		created, err := time.Parse(time.RFC3339, stamp)
		if err != nil {
			continue
		}
		versions = append(versions, Version{Version: version, Created: created})
	}
	slices.Reverse(versions)
	return versions, nil
}

// readVersionPayload is the request shape for read_version.
type readVersionPayload struct {
	Path    string `json:"path"`
	Version string `json:"version"`
}

func (k *Kosha) readVersion(payload json.RawMessage) (json.RawMessage, error) {
	var request readVersionPayload
	if err := decode(payload, &request); err != nil {
		return nil, err
	}
	if _, err := k.resolvePath(request.Path); err != nil {
		return nil, err
	}
	if request.Version == "" {
		return nil, fmt.Errorf("missing version")
	}

	// The version must be recorded against this path; blobs are shared
	// across paths by content address, so the manifest is the
	// authority on which path owns which version.
	versions, err := k.versionsFor(request.Path)
	if err != nil {
		return nil, err
	}
	found := false
	for _, v := range versions {
		if v.Version == request.Version {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("version not found: %s", request.Version)
	}

	blobPath := filepath.Join(k.dir, versionsDir, blobsDir, request.Version+".zst")
	compressed, err := os.ReadFile(blobPath)
	if err != nil {
		return nil, fmt.Errorf("reading version blob: %v", err)
	}
	content, err := k.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing version %s: %v", request.Version, err)
	}
	return encode(contentResult{Content: content})
}
