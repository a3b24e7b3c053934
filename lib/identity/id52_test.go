// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
)

func testKeypair(t *testing.T) KeyPair {
	t.Helper()
	key, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return key
}

func TestID52RoundTrip(t *testing.T) {
	for i := 0; i < 32; i++ {
		raw := make([]byte, ed25519.PublicKeySize)
		if _, err := rand.Read(raw); err != nil {
			t.Fatalf("rand.Read: %v", err)
		}
		id, err := EncodeID52(ed25519.PublicKey(raw))
		if err != nil {
			t.Fatalf("EncodeID52: %v", err)
		}
		if len(id.String()) != ID52Length {
			t.Fatalf("encoded length = %d, want %d", len(id.String()), ID52Length)
		}
		if id.String() != strings.ToLower(id.String()) {
			t.Fatalf("encoding is not lowercase: %q", id.String())
		}

		parsed, err := ParseID52(id.String())
		if err != nil {
			t.Fatalf("ParseID52(%q): %v", id.String(), err)
		}
		if !bytes.Equal(parsed.PublicKey(), raw) {
			t.Fatalf("decode(encode(k)) != k for %q", id.String())
		}
	}
}

func TestParseID52Malformed(t *testing.T) {
	valid := testKeypair(t).ID52().String()

	cases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"too short", valid[:51]},
		{"too long", valid + "0"},
		{"bad alphabet", "z" + valid[1:]},
		{"uppercase", strings.ToUpper(valid)},
		{"whitespace", valid[:51] + " "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseID52(tc.input); !errors.Is(err, ErrInvalidID52) {
				t.Errorf("ParseID52(%q) = %v, want ErrInvalidID52", tc.input, err)
			}
		})
	}
}

func TestID52TextMarshaling(t *testing.T) {
	id := testKeypair(t).ID52()

	text, err := id.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var decoded ID52
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if decoded != id {
		t.Errorf("round trip = %q, want %q", decoded, id)
	}

	var zero ID52
	if err := zero.UnmarshalText(nil); err != nil {
		t.Fatalf("UnmarshalText(empty): %v", err)
	}
	if !zero.IsZero() {
		t.Errorf("empty input should produce the zero value")
	}

	if err := decoded.UnmarshalText([]byte("not-an-id52")); !errors.Is(err, ErrInvalidID52) {
		t.Errorf("UnmarshalText(garbage) = %v, want ErrInvalidID52", err)
	}
}

func TestSignVerify(t *testing.T) {
	key := testKeypair(t)
	message := []byte("hub-spoke protocol message")

	signature := key.Sign(message)
	if !key.ID52().Verify(message, signature) {
		t.Fatalf("signature did not verify under the signer's ID52")
	}
	if key.ID52().Verify([]byte("different message"), signature) {
		t.Fatalf("signature verified for a different message")
	}

	other := testKeypair(t)
	if other.ID52().Verify(message, signature) {
		t.Fatalf("signature verified under a different identity")
	}
}
