// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"

	"github.com/kosha-foundation/kosha/lib/identity"
)

func TestDeterministicEncoding(t *testing.T) {
	value := map[string]any{"zebra": 1, "apple": 2, "mango": 3}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("same value produced different encodings")
	}
}

func TestTextMarshalerTypes(t *testing.T) {
	key, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	type message struct {
		Spoke identity.ID52 `cbor:"spoke"`
		Alias string        `cbor:"alias"`
	}

	encoded, err := Marshal(message{Spoke: key.ID52(), Alias: "laptop"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded message
	if err := Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Spoke != key.ID52() {
		t.Errorf("Spoke = %s, want %s", decoded.Spoke, key.ID52())
	}
	if decoded.Alias != "laptop" {
		t.Errorf("Alias = %q, want laptop", decoded.Alias)
	}
}

func TestStreamRoundTrip(t *testing.T) {
	var buffer bytes.Buffer
	if err := NewEncoder(&buffer).Encode(map[string]any{"action": "status"}); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var decoded map[string]any
	if err := NewDecoder(&buffer).Decode(&decoded); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded["action"] != "status" {
		t.Errorf("action = %v, want status", decoded["action"])
	}
}
