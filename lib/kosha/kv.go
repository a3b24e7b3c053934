// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package kosha

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// kvPath maps a key to its backing file. Keys are arbitrary strings;
// path-escaping keeps slashes and dots from becoming directory
// structure.
func (k *Kosha) kvPath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty key")
	}
	return filepath.Join(k.dir, kvDir, url.PathEscape(key)+".json"), nil
}

// kvKeyPayload is the request shape for kv_get and kv_delete.
type kvKeyPayload struct {
	Key string `json:"key"`
}

// kvValueResult is the result shape for kv_get. A missing key yields
// {"value": null}, not an error — absence is a normal answer for a KV
// store.
type kvValueResult struct {
	Value json.RawMessage `json:"value"`
}

func (k *Kosha) kvGet(payload json.RawMessage) (json.RawMessage, error) {
	var request kvKeyPayload
	if err := decode(payload, &request); err != nil {
		return nil, err
	}
	path, err := k.kvPath(request.Key)
	if err != nil {
		return nil, err
	}

	value, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return encode(kvValueResult{Value: json.RawMessage("null")})
	}
	if err != nil {
		return nil, fmt.Errorf("reading key %s: %v", request.Key, err)
	}
	return encode(kvValueResult{Value: value})
}

// kvSetPayload is the request shape for kv_set. Value is any JSON
// value, stored verbatim.
type kvSetPayload struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func (k *Kosha) kvSet(payload json.RawMessage) (json.RawMessage, error) {
	var request kvSetPayload
	if err := decode(payload, &request); err != nil {
		return nil, err
	}
	if len(request.Value) == 0 {
		return nil, fmt.Errorf("missing value")
	}
	path, err := k.kvPath(request.Key)
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := os.WriteFile(path, request.Value, 0644); err != nil {
		return nil, fmt.Errorf("writing key %s: %v", request.Key, err)
	}
	return encode(struct{}{})
}

func (k *Kosha) kvDelete(payload json.RawMessage) (json.RawMessage, error) {
	var request kvKeyPayload
	if err := decode(payload, &request); err != nil {
		return nil, err
	}
	path, err := k.kvPath(request.Key)
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	// Deleting an absent key is a no-op, matching kv_get's view that
	// absence is not an error.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("deleting key %s: %v", request.Key, err)
	}
	return encode(struct{}{})
}
