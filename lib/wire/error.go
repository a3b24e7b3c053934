// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/json"
	"fmt"
)

// Code classifies a protocol error. The set is closed; clients switch
// on it exhaustively.
type Code string

const (
	// CodeRejected is the generic rejection for envelope verification
	// failures. The hub logs the precise identity error (invalid ID52,
	// bad base64, signature mismatch) but never reveals it to the
	// caller.
	CodeRejected Code = "rejected"

	// CodeInvalidRequest means the envelope verified but its payload
	// is not a well-formed Request.
	CodeInvalidRequest Code = "invalid-request"

	// CodeUnauthorized means the verified sender holds no
	// authorization at this hub.
	CodeUnauthorized Code = "unauthorized"

	// CodeAccessDenied means the sender may not perform the operation
	// on the named (app, instance). The response names the resource
	// but deliberately not the reason; a caller cannot distinguish a
	// forbidden instance from an absent one.
	CodeAccessDenied Code = "access-denied"

	// CodeAppNotFound means the request named an app outside the
	// static dispatch table.
	CodeAppNotFound Code = "app-not-found"

	// CodeInstanceNotFound means the app exists but no handler is
	// registered under the requested instance name.
	CodeInstanceNotFound Code = "instance-not-found"

	// CodeUnknownCommand means the command string is outside the
	// closed command set.
	CodeUnknownCommand Code = "unknown-command"

	// CodeHubNotFound means a forwarding request named a peer hub
	// alias absent from the hub's trust list.
	CodeHubNotFound Code = "hub-not-found"

	// CodeForwardFailed means the hub could not deliver a forwarded
	// request to the peer hub or could not verify its response.
	CodeForwardFailed Code = "forward-failed"

	// CodeAppError wraps an error string produced by the downstream
	// handler, passed through unchanged.
	CodeAppError Code = "app-error"
)

// Error is the typed protocol error carried in failure responses. It
// implements the error interface so hub-side code can return it
// directly and spoke-side code can surface it with errors.As.
type Error struct {
	Code     Code   `json:"code"`
	App      string `json:"app,omitempty"`
	Instance string `json:"instance,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Instance != "":
		return fmt.Sprintf("%s: %s/%s: %s", e.Code, e.App, e.Instance, e.Message)
	case e.Instance != "":
		return fmt.Sprintf("%s: %s/%s", e.Code, e.App, e.Instance)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	default:
		return string(e.Code)
	}
}

// Response is the payload of a response envelope: either OK with
// command-specific data, or a typed Error.
type Response struct {
	OK    bool            `json:"ok"`
	Error *Error          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Success wraps data in an OK response. A nil data leaves the Data
// field empty, matching commands whose success result is "{}".
func Success(data json.RawMessage) Response {
	return Response{OK: true, Data: data}
}

// Failure wraps a typed error in a failure response.
func Failure(protocolError *Error) Response {
	return Response{OK: false, Error: protocolError}
}
