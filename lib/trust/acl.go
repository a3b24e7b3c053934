// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package trust

import (
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/kosha-foundation/kosha/lib/identity"
)

// loadACL populates the per-resource ACL map from acl.txt.
func (s *Store) loadACL() error {
	path := filepath.Join(s.dir, aclFile)
	lines, err := readLines(path)
	if err != nil {
		return err
	}

	clear(s.acl)
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return fmt.Errorf("%s: line %q: want \"<app>/<instance> <id52> <granted_at> [name]\"", path, line)
		}
		app, instance, found := strings.Cut(fields[0], "/")
		if !found || app == "" || instance == "" {
			return fmt.Errorf("%s: line %q: bad resource %q", path, line, fields[0])
		}
		id, err := identity.ParseID52(fields[1])
		if err != nil {
			return fmt.Errorf("%s: line %q: %w", path, line, err)
		}
		grantedAt, err := time.Parse(time.RFC3339, fields[2])
		if err != nil {
			return fmt.Errorf("%s: line %q: bad timestamp: %w", path, line, err)
		}

		key := ResourceKey{App: app, Instance: instance}
		s.acl[key] = append(s.acl[key], ACLEntry{
			ID:          id,
			DisplayName: strings.Join(fields[3:], " "),
			GrantedAt:   grantedAt,
		})
	}
	return nil
}

// persistACL rewrites acl.txt from the in-memory map, in sorted
// resource order so the file is stable across rewrites. Caller holds
// the write lock.
func (s *Store) persistACL() error {
	keys := make([]ResourceKey, 0, len(s.acl))
	for key := range s.acl {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].App != keys[j].App {
			return keys[i].App < keys[j].App
		}
		return keys[i].Instance < keys[j].Instance
	})

	var b strings.Builder
	b.WriteString("# Per-resource access grants: <app>/<instance> <id52> <granted_at> [name]\n")
	for _, key := range keys {
		for _, entry := range s.acl[key] {
			fmt.Fprintf(&b, "%s/%s %s %s", key.App, key.Instance, entry.ID, entry.GrantedAt.UTC().Format(time.RFC3339))
			if entry.DisplayName != "" {
				fmt.Fprintf(&b, " %s", entry.DisplayName)
			}
			b.WriteString("\n")
		}
	}
	return writeFileAtomic(filepath.Join(s.dir, aclFile), []byte(b.String()))
}

// GrantAccess adds a per-resource grant for one spoke. Granting a
// duplicate (resource, id52) pair is a no-op — a single entry persists.
func (s *Store) GrantAccess(app, instance string, id identity.ID52, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ResourceKey{App: app, Instance: instance}
	if slices.ContainsFunc(s.acl[key], func(e ACLEntry) bool { return e.ID == id }) {
		return nil
	}

	s.acl[key] = append(s.acl[key], ACLEntry{
		ID:          id,
		DisplayName: displayName,
		GrantedAt:   s.now(),
	})
	if err := s.persistACL(); err != nil {
		return err
	}
	s.logger.Info("access granted", "app", app, "instance", instance, "spoke", id.String())
	return nil
}

// RevokeAccess removes a per-resource grant. Revoking an absent grant
// is a no-op.
func (s *Store) RevokeAccess(app, instance string, id identity.ID52) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ResourceKey{App: app, Instance: instance}
	before := len(s.acl[key])
	s.acl[key] = slices.DeleteFunc(s.acl[key], func(e ACLEntry) bool { return e.ID == id })
	removed := len(s.acl[key]) != before
	if len(s.acl[key]) == 0 {
		delete(s.acl, key)
	}
	if !removed {
		return nil
	}
	if err := s.persistACL(); err != nil {
		return err
	}
	s.logger.Info("access revoked", "app", app, "instance", instance, "spoke", id.String())
	return nil
}

// HasAccess reports whether the spoke holds a per-resource grant for
// (app, instance). No entry for the resource means deny.
func (s *Store) HasAccess(app, instance string, id identity.ID52) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.acl[ResourceKey{App: app, Instance: instance}]
	return slices.ContainsFunc(entries, func(e ACLEntry) bool { return e.ID == id })
}

// ACL returns a snapshot of the grants for (app, instance) in grant
// order.
func (s *Store) ACL(app, instance string) []ACLEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.acl[ResourceKey{App: app, Instance: instance}])
}
