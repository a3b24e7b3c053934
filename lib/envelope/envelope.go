// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kosha-foundation/kosha/lib/identity"
)

// Role distinguishes the two envelope directions on the wire. A request
// envelope names its "sender"; a response envelope names its
// "responder". The signing message is identical in both directions.
type Role string

const (
	// RoleSender marks a request envelope.
	RoleSender Role = "sender"

	// RoleResponder marks a response envelope.
	RoleResponder Role = "responder"
)

// Errors returned by Open and related functions.
var (
	// ErrBase64Decode means the signature field is not valid standard
	// base64.
	ErrBase64Decode = errors.New("envelope: signature is not valid base64")

	// ErrVerificationFailed means the Ed25519 signature does not verify
	// under the key the from field encodes.
	ErrVerificationFailed = errors.New("envelope: signature verification failed")

	// ErrMalformed means the envelope JSON is missing its identity
	// field or carries both a sender and a responder.
	ErrMalformed = errors.New("envelope: malformed")
)

// Envelope is a signed protocol message. From is the raw identity
// string and Signature the raw base64 string exactly as received;
// both are validated by Open, not at decode time, so a malformed
// envelope still decodes and fails verification with a precise error.
type Envelope struct {
	Role      Role
	From      string
	Payload   json.RawMessage
	Signature string
}

// wireEnvelope is the JSON shape on the wire. Exactly one of Sender or
// Responder is set, according to the envelope's role.
type wireEnvelope struct {
	Sender    string          `json:"sender,omitempty"`
	Responder string          `json:"responder,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// signingMessage builds the byte string that is signed and verified:
// the UTF-8 bytes of "<id52>|<canonical_json(payload)>".
func signingMessage(id string, payload json.RawMessage) ([]byte, error) {
	canonical, err := Canonicalize(payload)
	if err != nil {
		return nil, err
	}
	message := make([]byte, 0, len(id)+1+len(canonical))
	message = append(message, id...)
	message = append(message, '|')
	message = append(message, canonical...)
	return message, nil
}

// Seal serializes payload to JSON, signs it with key, and returns the
// envelope carrying key's ID52 in the role's identity field.
func Seal(role Role, key identity.KeyPair, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("envelope: encoding payload: %w", err)
	}

	id := key.ID52().String()
	message, err := signingMessage(id, raw)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Role:      role,
		From:      id,
		Payload:   raw,
		Signature: base64.StdEncoding.EncodeToString(key.Sign(message)),
	}, nil
}

// Encode renders the envelope as wire JSON.
func (e *Envelope) Encode() ([]byte, error) {
	wire := wireEnvelope{
		Payload:   e.Payload,
		Signature: e.Signature,
	}
	switch e.Role {
	case RoleSender:
		wire.Sender = e.From
	case RoleResponder:
		wire.Responder = e.From
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrMalformed, e.Role)
	}
	return json.Marshal(wire)
}

// Decode parses wire JSON into an Envelope, inferring the role from
// which identity field is present. Identity and signature validation is
// deferred to Open.
func Decode(data []byte) (*Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("envelope: decoding: %w", err)
	}

	switch {
	case wire.Sender != "" && wire.Responder != "":
		return nil, fmt.Errorf("%w: both sender and responder set", ErrMalformed)
	case wire.Sender != "":
		return &Envelope{Role: RoleSender, From: wire.Sender, Payload: wire.Payload, Signature: wire.Signature}, nil
	case wire.Responder != "":
		return &Envelope{Role: RoleResponder, From: wire.Responder, Payload: wire.Payload, Signature: wire.Signature}, nil
	default:
		return nil, fmt.Errorf("%w: no sender or responder", ErrMalformed)
	}
}

// Open verifies the envelope and decodes its payload into out. The
// failure order is fixed: identity.ErrInvalidID52 if the identity field
// is not a valid ID52, ErrBase64Decode if the signature field is not
// valid base64, ErrVerificationFailed if the signature does not verify,
// and a decode error if the payload does not match out's shape. The
// returned identity is the cryptographically verified peer — the only
// caller identity the rest of the system may use.
func (e *Envelope) Open(out any) (identity.ID52, error) {
	from, err := identity.ParseID52(e.From)
	if err != nil {
		return identity.ID52{}, err
	}

	signature, err := base64.StdEncoding.DecodeString(e.Signature)
	if err != nil {
		return identity.ID52{}, fmt.Errorf("%w: %v", ErrBase64Decode, err)
	}

	message, err := signingMessage(e.From, e.Payload)
	if err != nil {
		return identity.ID52{}, err
	}

	if !from.Verify(message, signature) {
		return identity.ID52{}, ErrVerificationFailed
	}

	if out != nil {
		if err := json.Unmarshal(e.Payload, out); err != nil {
			return identity.ID52{}, fmt.Errorf("envelope: decoding payload: %w", err)
		}
	}
	return from, nil
}

// OpenFrom verifies the envelope and additionally pins the peer
// identity: a valid envelope signed by anyone other than expected is a
// protocol violation, not an application error.
func (e *Envelope) OpenFrom(expected identity.ID52, out any) error {
	from, err := e.Open(out)
	if err != nil {
		return err
	}
	if from != expected {
		return fmt.Errorf("%w: responder is %s, want %s", ErrVerificationFailed, from, expected)
	}
	return nil
}
