// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/kosha-foundation/kosha/lib/identity"
)

func testKeypair(t *testing.T) identity.KeyPair {
	t.Helper()
	key, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return key
}

type testPayload struct {
	App     string `json:"app"`
	Count   int64  `json:"count"`
	Message string `json:"message"`
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := testKeypair(t)
	payload := testPayload{App: "kosha", Count: 1<<53 + 1, Message: "hello"}

	sealed, err := Seal(RoleSender, key, payload)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	data, err := sealed.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Role != RoleSender {
		t.Errorf("Role = %q, want %q", decoded.Role, RoleSender)
	}

	var got testPayload
	from, err := decoded.Open(&got)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if from != key.ID52() {
		t.Errorf("verified sender = %s, want %s", from, key.ID52())
	}
	if !reflect.DeepEqual(got, payload) {
		t.Errorf("payload = %+v, want %+v", got, payload)
	}
}

func TestResponderField(t *testing.T) {
	key := testKeypair(t)

	sealed, err := Seal(RoleResponder, key, map[string]any{"ok": true})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	data, err := sealed.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var wire map[string]json.RawMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshaling wire form: %v", err)
	}
	if _, ok := wire["responder"]; !ok {
		t.Errorf("response envelope missing responder field: %s", data)
	}
	if _, ok := wire["sender"]; ok {
		t.Errorf("response envelope must not carry a sender field: %s", data)
	}
}

// TestTamperedEnvelope flips one byte of the signature and of the
// payload in turn; both must fail verification.
func TestTamperedEnvelope(t *testing.T) {
	key := testKeypair(t)
	sealed, err := Seal(RoleSender, key, testPayload{App: "kosha", Message: "original"})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	t.Run("signature", func(t *testing.T) {
		tampered := *sealed
		sig := []byte(sealed.Signature)
		// Flip within the base64 body, avoiding padding characters so
		// the failure is cryptographic, not a decode error.
		if sig[0] == 'A' {
			sig[0] = 'B'
		} else {
			sig[0] = 'A'
		}
		tampered.Signature = string(sig)
		if _, err := tampered.Open(new(testPayload)); !errors.Is(err, ErrVerificationFailed) {
			t.Errorf("Open with tampered signature = %v, want ErrVerificationFailed", err)
		}
	})

	t.Run("payload", func(t *testing.T) {
		tampered := *sealed
		raw := append(json.RawMessage(nil), sealed.Payload...)
		for i := range raw {
			if raw[i] == 'o' {
				raw[i] = '0'
				break
			}
		}
		tampered.Payload = raw
		if _, err := tampered.Open(new(testPayload)); !errors.Is(err, ErrVerificationFailed) {
			t.Errorf("Open with tampered payload = %v, want ErrVerificationFailed", err)
		}
	})
}

func TestOpenErrorTaxonomy(t *testing.T) {
	key := testKeypair(t)
	sealed, err := Seal(RoleSender, key, testPayload{App: "kosha"})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	t.Run("invalid id52", func(t *testing.T) {
		bad := *sealed
		bad.From = "not-a-valid-id52"
		if _, err := bad.Open(nil); !errors.Is(err, identity.ErrInvalidID52) {
			t.Errorf("Open = %v, want ErrInvalidID52", err)
		}
	})

	t.Run("invalid base64", func(t *testing.T) {
		bad := *sealed
		bad.Signature = "%%% not base64 %%%"
		if _, err := bad.Open(nil); !errors.Is(err, ErrBase64Decode) {
			t.Errorf("Open = %v, want ErrBase64Decode", err)
		}
	})

	t.Run("payload shape mismatch", func(t *testing.T) {
		var wrong struct {
			App []int `json:"app"`
		}
		if _, err := sealed.Open(&wrong); err == nil {
			t.Errorf("Open into mismatched shape succeeded, want decode error")
		}
	})
}

func TestOpenFromPinsResponder(t *testing.T) {
	hub := testKeypair(t)
	impostor := testKeypair(t)

	sealed, err := Seal(RoleResponder, impostor, map[string]any{"ok": true})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if err := sealed.OpenFrom(hub.ID52(), nil); err == nil {
		t.Fatalf("OpenFrom accepted a response signed by the wrong responder")
	}
	if err := sealed.OpenFrom(impostor.ID52(), nil); err != nil {
		t.Fatalf("OpenFrom with correct responder: %v", err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"no identity", `{"payload":{},"signature":"AA=="}`},
		{"both identities", `{"sender":"a","responder":"b","payload":{},"signature":"AA=="}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode([]byte(tc.data)); !errors.Is(err, ErrMalformed) {
				t.Errorf("Decode = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestCanonicalizeKeyOrder(t *testing.T) {
	a, err := Canonicalize(json.RawMessage(`{"b": 1, "a": {"y": 2, "x": 3}}`))
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	b, err := Canonicalize(json.RawMessage(`{"a":{"x":3,"y":2},"b":1}`))
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if string(a) != string(b) {
		t.Errorf("canonical forms differ: %s vs %s", a, b)
	}
	if string(a) != `{"a":{"x":3,"y":2},"b":1}` {
		t.Errorf("canonical form = %s", a)
	}
}

func TestCanonicalizePreservesNumbers(t *testing.T) {
	canonical, err := Canonicalize(json.RawMessage(`{"n": 9007199254740993, "f": 1.50}`))
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	want := `{"f":1.50,"n":9007199254740993}`
	if string(canonical) != want {
		t.Errorf("canonical form = %s, want %s", canonical, want)
	}
}

func TestCanonicalizeRejectsTrailingData(t *testing.T) {
	if _, err := Canonicalize(json.RawMessage(`{"a":1} {"b":2}`)); err == nil {
		t.Errorf("Canonicalize accepted trailing data")
	}
}
