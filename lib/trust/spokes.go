// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package trust

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/kosha-foundation/kosha/lib/identity"
)

// loadSpokes populates the authorized-spoke cache from spokes.txt.
func (s *Store) loadSpokes() error {
	path := filepath.Join(s.dir, spokesFile)
	lines, err := readLines(path)
	if err != nil {
		return err
	}

	s.spokes = s.spokes[:0]
	for _, line := range lines {
		id, alias, err := splitKeyedLine(line)
		if err != nil {
			return fmt.Errorf("%s: line %q: %w", path, line, err)
		}
		s.spokes = append(s.spokes, SpokeEntry{ID: id, Alias: alias})
	}
	return nil
}

// persistSpokes rewrites spokes.txt from the in-memory cache. Caller
// holds the write lock.
func (s *Store) persistSpokes() error {
	var b strings.Builder
	b.WriteString("# Spokes authorized to use this hub, one per line.\n")
	for _, entry := range s.spokes {
		fmt.Fprintf(&b, "%s: %s\n", entry.ID, entry.Alias)
	}
	return writeFileAtomic(filepath.Join(s.dir, spokesFile), []byte(b.String()))
}

// AddSpoke authorizes a spoke hub-wide. Adding an id52 that is already
// authorized is a no-op. An authorized spoke is removed from the
// pending list.
func (s *Store) AddSpoke(entry SpokeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.ContainsFunc(s.spokes, func(e SpokeEntry) bool { return e.ID == entry.ID }) {
		return nil
	}
	s.spokes = append(s.spokes, entry)
	if err := s.persistSpokes(); err != nil {
		return err
	}

	// Promotion clears the pending sighting, if any.
	before := len(s.pending)
	s.pending = slices.DeleteFunc(s.pending, func(p PendingSpoke) bool { return p.ID == entry.ID })
	if len(s.pending) != before {
		if err := s.persistPending(); err != nil {
			return err
		}
	}

	s.logger.Info("spoke authorized", "spoke", entry.ID.String(), "alias", entry.Alias)
	return nil
}

// RemoveSpoke deletes a spoke's hub-wide authorization. Removing an
// unknown id52 is a no-op.
func (s *Store) RemoveSpoke(id identity.ID52) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.spokes)
	s.spokes = slices.DeleteFunc(s.spokes, func(e SpokeEntry) bool { return e.ID == id })
	if len(s.spokes) == before {
		return nil
	}
	if err := s.persistSpokes(); err != nil {
		return err
	}
	s.logger.Info("spoke removed", "spoke", id.String())
	return nil
}

// Spokes returns a snapshot of all authorized spokes in file order.
func (s *Store) Spokes() []SpokeEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.spokes)
}

// IsSpokeAuthorized reports whether the id52 appears in spokes.txt.
func (s *Store) IsSpokeAuthorized(id identity.ID52) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.ContainsFunc(s.spokes, func(e SpokeEntry) bool { return e.ID == id })
}

// loadPending populates the pending-sighting cache from pending.txt.
func (s *Store) loadPending() error {
	path := filepath.Join(s.dir, pendingFile)
	lines, err := readLines(path)
	if err != nil {
		return err
	}

	s.pending = s.pending[:0]
	for _, line := range lines {
		id, rest, err := splitKeyedLine(line)
		if err != nil {
			return fmt.Errorf("%s: line %q: %w", path, line, err)
		}
		stamp, alias, _ := strings.Cut(rest, " ")
		firstSeen, err := time.Parse(time.RFC3339, stamp)
		if err != nil {
			return fmt.Errorf("%s: line %q: bad timestamp: %w", path, line, err)
		}
		s.pending = append(s.pending, PendingSpoke{ID: id, Alias: strings.TrimSpace(alias), FirstSeen: firstSeen})
	}
	return nil
}

// persistPending rewrites pending.txt. Caller holds the write lock.
func (s *Store) persistPending() error {
	var b strings.Builder
	b.WriteString("# Spokes seen in inbound requests but not yet authorized.\n")
	for _, p := range s.pending {
		fmt.Fprintf(&b, "%s: %s", p.ID, p.FirstSeen.UTC().Format(time.RFC3339))
		if p.Alias != "" {
			fmt.Fprintf(&b, " %s", p.Alias)
		}
		b.WriteString("\n")
	}
	return writeFileAtomic(filepath.Join(s.dir, pendingFile), []byte(b.String()))
}

// RecordSighting notes an inbound request from an unauthorized spoke.
// Only the first sighting is recorded; an authorized spoke is never
// recorded as pending.
func (s *Store) RecordSighting(id identity.ID52) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.ContainsFunc(s.spokes, func(e SpokeEntry) bool { return e.ID == id }) {
		return nil
	}
	if slices.ContainsFunc(s.pending, func(p PendingSpoke) bool { return p.ID == id }) {
		return nil
	}

	s.pending = append(s.pending, PendingSpoke{ID: id, FirstSeen: s.now()})
	if err := s.persistPending(); err != nil {
		return err
	}
	s.logger.Info("unauthorized spoke seen", "spoke", id.String())
	return nil
}

// PendingSpokes returns a snapshot of spokes seen but not authorized.
func (s *Store) PendingSpokes() []PendingSpoke {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.pending)
}
