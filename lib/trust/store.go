// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package trust

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kosha-foundation/kosha/lib/identity"
)

const (
	spokesFile  = "spokes.txt"
	pendingFile = "pending.txt"
	aclFile     = "acl.txt"
	hubsDir     = "hubs"

	// defaultHubsFile is where AddHub records new entries. Operators
	// may maintain additional *.hubs files by hand; the store merges
	// them all.
	defaultHubsFile = "default.hubs"
)

// SpokeEntry is an authorized spoke: a line of spokes.txt.
type SpokeEntry struct {
	ID    identity.ID52
	Alias string
}

// PendingSpoke is a spoke that has been seen in an inbound request but
// not yet authorized. Promotion to authorized is an explicit
// administrative action (AddSpoke).
type PendingSpoke struct {
	ID        identity.ID52
	Alias     string
	FirstSeen time.Time
}

// HubEntry is a peer hub this hub trusts for forwarded traffic, and the
// alias/URL used for outbound forwarding.
type HubEntry struct {
	ID      identity.ID52
	Alias   string
	URL     string
	AddedAt time.Time

	// file is the *.hubs file this entry came from, so removal
	// rewrites the right file.
	file string
}

// ACLEntry grants one spoke access to one (app, instance) resource.
type ACLEntry struct {
	ID          identity.ID52
	DisplayName string
	GrantedAt   time.Time
}

// ResourceKey identifies an app instance in the per-resource ACL map.
type ResourceKey struct {
	App      string
	Instance string
}

// Store holds a hub's trust relations. All reads take a read lock; all
// mutations take the write lock, update memory, and persist before
// returning. See the package comment for the durability discipline.
type Store struct {
	mu     sync.RWMutex
	dir    string
	logger *slog.Logger

	// now is the clock, replaceable in tests.
	now func() time.Time

	spokes  []SpokeEntry
	pending []PendingSpoke
	hubs    []HubEntry
	acl     map[ResourceKey][]ACLEntry
}

// Load reads all trust files under dir into a new Store. Missing files
// mean empty relations; the directory itself is created if absent.
func Load(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, hubsDir), 0755); err != nil {
		return nil, fmt.Errorf("creating trust directory: %w", err)
	}

	store := &Store{
		dir:    dir,
		logger: logger,
		now:    time.Now,
		acl:    make(map[ResourceKey][]ACLEntry),
	}

	if err := store.loadSpokes(); err != nil {
		return nil, err
	}
	if err := store.loadPending(); err != nil {
		return nil, err
	}
	if err := store.loadHubs(); err != nil {
		return nil, err
	}
	if err := store.loadACL(); err != nil {
		return nil, err
	}
	return store, nil
}

// writeFileAtomic writes data to path via a temp file in the same
// directory and a rename, so a crash never leaves a half-written trust
// file behind.
func writeFileAtomic(path string, data []byte) error {
	temp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// readLines reads a trust file and returns its non-comment, non-blank
// lines. A missing file returns no lines and no error.
func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// splitKeyedLine splits "<id52>: <rest>" and validates the key.
func splitKeyedLine(line string) (identity.ID52, string, error) {
	key, rest, found := strings.Cut(line, ":")
	if !found {
		return identity.ID52{}, "", fmt.Errorf("missing ':' separator")
	}
	id, err := identity.ParseID52(strings.TrimSpace(key))
	if err != nil {
		return identity.ID52{}, "", err
	}
	return id, strings.TrimSpace(rest), nil
}

// hubsFiles lists the *.hubs files under dir/hubs in a stable order.
func (s *Store) hubsFiles() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, hubsDir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading hubs directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".hubs") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}
