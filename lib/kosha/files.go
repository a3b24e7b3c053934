// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package kosha

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// readFilePayload is the request shape for read_file.
type readFilePayload struct {
	Path string `json:"path"`
}

// contentResult carries file bytes; encoding/json renders []byte as
// standard base64, matching the wire contract's {content: base64}.
type contentResult struct {
	Content []byte `json:"content"`
}

func (k *Kosha) readFile(payload json.RawMessage) (json.RawMessage, error) {
	var request readFilePayload
	if err := decode(payload, &request); err != nil {
		return nil, err
	}
	full, err := k.resolvePath(request.Path)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file not found: %s", request.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %v", request.Path, err)
	}
	return encode(contentResult{Content: content})
}

// writeFilePayload is the request shape for write_file.
type writeFilePayload struct {
	Path    string `json:"path"`
	Content []byte `json:"content"`
}

func (k *Kosha) writeFile(payload json.RawMessage) (json.RawMessage, error) {
	var request writeFilePayload
	if err := decode(payload, &request); err != nil {
		return nil, err
	}
	full, err := k.resolvePath(request.Path)
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	// History first: if the version blob or manifest append fails, the
	// live file is untouched.
	if err := k.storeVersion(request.Path, request.Content); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return nil, fmt.Errorf("creating parent directory: %v", err)
	}
	if err := os.WriteFile(full, request.Content, 0644); err != nil {
		return nil, fmt.Errorf("writing %s: %v", request.Path, err)
	}
	return encode(struct{}{})
}

// listDirPayload is the request shape for list_dir. An empty path lists
// the instance root.
type listDirPayload struct {
	Path string `json:"path"`
}

// DirEntry is one list_dir result entry.
type DirEntry struct {
	Name string `json:"name"`
	Dir  bool   `json:"dir"`
	Size int64  `json:"size"`
}

// entriesResult is the result shape for list_dir.
type entriesResult struct {
	Entries []DirEntry `json:"entries"`
}

func (k *Kosha) listDir(payload json.RawMessage) (json.RawMessage, error) {
	var request listDirPayload
	if err := decode(payload, &request); err != nil {
		return nil, err
	}

	full := filepath.Join(k.dir, filesDir)
	if request.Path != "" {
		resolved, err := k.resolvePath(request.Path)
		if err != nil {
			return nil, err
		}
		full = resolved
	}

	entries, err := os.ReadDir(full)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("directory not found: %s", request.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %v", request.Path, err)
	}

	result := entriesResult{Entries: []DirEntry{}}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		result.Entries = append(result.Entries, DirEntry{
			Name: entry.Name(),
			Dir:  entry.IsDir(),
			Size: info.Size(),
		})
	}
	sort.Slice(result.Entries, func(i, j int) bool {
		return result.Entries[i].Name < result.Entries[j].Name
	})
	return encode(result)
}

// renamePayload is the request shape for rename. Version history stays
// keyed by the old path; new writes to the new path start its history.
type renamePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (k *Kosha) rename(payload json.RawMessage) (json.RawMessage, error) {
	var request renamePayload
	if err := decode(payload, &request); err != nil {
		return nil, err
	}
	from, err := k.resolvePath(request.From)
	if err != nil {
		return nil, err
	}
	to, err := k.resolvePath(request.To)
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return nil, fmt.Errorf("creating parent directory: %v", err)
	}
	if err := os.Rename(from, to); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", request.From)
		}
		return nil, fmt.Errorf("renaming %s: %v", request.From, err)
	}
	return encode(struct{}{})
}

// deletePayload is the request shape for delete. Version history is
// retained; only the live file is removed.
type deletePayload struct {
	Path string `json:"path"`
}

func (k *Kosha) delete(payload json.RawMessage) (json.RawMessage, error) {
	var request deletePayload
	if err := decode(payload, &request); err != nil {
		return nil, err
	}
	full, err := k.resolvePath(request.Path)
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", request.Path)
		}
		return nil, fmt.Errorf("deleting %s: %v", request.Path, err)
	}
	return encode(struct{}{})
}
