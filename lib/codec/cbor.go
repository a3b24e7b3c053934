// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the CBOR choke point for the hub's admin control
// protocol. The spoke-facing wire protocol is JSON (it is signed over
// canonical JSON and fixed by the envelope format); the operator-local
// admin socket speaks CBOR through this package so consumers never
// import fxamacker/cbor directly.
package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items.
var encMode cbor.EncMode

// decMode is the CBOR decoder configured to accept standard CBOR.
// Unknown fields are silently ignored for forward compatibility.
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// identity.ID52 and wire.TargetHub implement encoding.TextMarshaler;
	// serialize them as CBOR text strings rather than empty maps.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Admin messages never use non-string map keys; decode
		// any-typed targets as map[string]any for encoding/json
		// compatibility.
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Encoder is a CBOR stream encoder. Type alias so consumers import
// only lib/codec, not fxamacker/cbor directly.
type Encoder = cbor.Encoder

// Decoder is a CBOR stream decoder.
type Decoder = cbor.Decoder

// RawMessage is a raw encoded CBOR value, used to delay decoding or
// pre-encode output.
type RawMessage = cbor.RawMessage

// NewEncoder returns a CBOR encoder writing to w with the standard
// deterministic configuration.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a CBOR decoder reading from r with the standard
// decoding configuration.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}
