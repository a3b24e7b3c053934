// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Canonicalize re-encodes a JSON value into its canonical form: object
// keys sorted, no insignificant whitespace, number literals preserved.
// Signer and verifier both canonicalize before computing the signing
// message, so the same logical payload always signs identically even if
// its textual encoding differs.
func Canonicalize(raw json.RawMessage) ([]byte, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	// Preserve number literals exactly. Round-tripping through float64
	// would change large integers and trailing-zero decimals, making
	// the verifier compute a different signing message than the signer.
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("envelope: decoding payload: %w", err)
	}
	// Reject trailing garbage after the first JSON value.
	if err := decoder.Decode(new(any)); err != io.EOF {
		return nil, fmt.Errorf("envelope: payload has trailing data")
	}

	// encoding/json sorts map keys and emits compact output, which is
	// all the determinism the signing message needs.
	canonical, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("envelope: encoding canonical payload: %w", err)
	}
	return canonical, nil
}
