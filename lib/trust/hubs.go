// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package trust

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kosha-foundation/kosha/lib/identity"
)

// loadHubs merges every *.hubs file under dir/hubs into the peer-hub
// cache, remembering each entry's source file.
func (s *Store) loadHubs() error {
	files, err := s.hubsFiles()
	if err != nil {
		return err
	}

	s.hubs = s.hubs[:0]
	for _, name := range files {
		path := filepath.Join(s.dir, hubsDir, name)
		lines, err := readLines(path)
		if err != nil {
			return err
		}
		for _, line := range lines {
			id, rest, err := splitKeyedLine(line)
			if err != nil {
				return fmt.Errorf("%s: line %q: %w", path, line, err)
			}
			alias, url, _ := strings.Cut(rest, " ")
			if alias == "" {
				return fmt.Errorf("%s: line %q: missing alias", path, line)
			}
			s.hubs = append(s.hubs, HubEntry{
				ID:    id,
				Alias: alias,
				URL:   strings.TrimSpace(url),
				file:  name,
			})
		}
	}
	return nil
}

// persistHubsFile rewrites one *.hubs file from the entries that came
// from it. Caller holds the write lock.
func (s *Store) persistHubsFile(name string) error {
	var b strings.Builder
	b.WriteString("# Peer hubs trusted for forwarded traffic.\n")
	for _, entry := range s.hubs {
		if entry.file != name {
			continue
		}
		fmt.Fprintf(&b, "%s: %s", entry.ID, entry.Alias)
		if entry.URL != "" {
			fmt.Fprintf(&b, " %s", entry.URL)
		}
		b.WriteString("\n")
	}
	return writeFileAtomic(filepath.Join(s.dir, hubsDir, name), []byte(b.String()))
}

// AddHub trusts a peer hub under a local alias. Adding an id52 already
// present in any merged .hubs file is a no-op. New entries land in
// hubs/default.hubs.
func (s *Store) AddHub(entry HubEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.ContainsFunc(s.hubs, func(e HubEntry) bool { return e.ID == entry.ID }) {
		return nil
	}
	if entry.Alias == "" {
		return fmt.Errorf("trust: hub entry requires an alias")
	}
	entry.file = defaultHubsFile
	s.hubs = append(s.hubs, entry)
	if err := s.persistHubsFile(defaultHubsFile); err != nil {
		return err
	}
	s.logger.Info("hub trusted", "hub", entry.ID.String(), "alias", entry.Alias, "url", entry.URL)
	return nil
}

// RemoveHub deletes a peer hub from whichever .hubs file listed it.
// Removing an unknown id52 is a no-op.
func (s *Store) RemoveHub(id identity.ID52) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := slices.IndexFunc(s.hubs, func(e HubEntry) bool { return e.ID == id })
	if index < 0 {
		return nil
	}
	file := s.hubs[index].file
	s.hubs = slices.Delete(s.hubs, index, index+1)
	if err := s.persistHubsFile(file); err != nil {
		return err
	}
	s.logger.Info("hub removed", "hub", id.String())
	return nil
}

// Hubs returns a snapshot of all trusted peer hubs, merged across
// .hubs files.
func (s *Store) Hubs() []HubEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.hubs)
}

// IsHubAuthorized reports whether the id52 appears in any merged .hubs
// entry.
func (s *Store) IsHubAuthorized(id identity.ID52) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.ContainsFunc(s.hubs, func(e HubEntry) bool { return e.ID == id })
}

// LookupHubByAlias resolves a local alias to its hub entry for outbound
// forwarding. An unknown alias returns ok=false, not an error.
func (s *Store) LookupHubByAlias(alias string) (HubEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.hubs {
		if entry.Alias == alias {
			return entry, true
		}
	}
	return HubEntry{}, false
}
