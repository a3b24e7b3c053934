// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kosha-foundation/kosha/lib/envelope"
	"github.com/kosha-foundation/kosha/lib/identity"
	"github.com/kosha-foundation/kosha/lib/policy"
	"github.com/kosha-foundation/kosha/lib/wire"
)

// maxForwardResponse caps the reply body read from a peer hub.
const maxForwardResponse = 8 << 20

// HandleRequest runs the full inbound pipeline on a raw request
// envelope and returns the encoded response envelope, signed by this
// hub. Every outcome, including rejection, is a signed response; the
// returned error is reserved for internal failures where no response
// could be produced.
func (h *Hub) HandleRequest(ctx context.Context, body []byte) ([]byte, error) {
	response := h.process(ctx, body)
	sealed, err := envelope.Seal(envelope.RoleResponder, h.key, response)
	if err != nil {
		return nil, fmt.Errorf("hub: sealing response: %w", err)
	}
	return sealed.Encode()
}

func (h *Hub) process(ctx context.Context, body []byte) wire.Response {
	env, err := envelope.Decode(body)
	if err != nil {
		h.logger.Debug("rejecting request", "error", err)
		return rejected()
	}

	// Requests carry the sender role. A responder envelope here is a
	// signature reused from a response context; reject it before
	// verification so the signature never counts for anything.
	if env.Role != envelope.RoleSender {
		h.logger.Debug("rejecting request", "claimed_sender", env.From, "error", "responder envelope on request boundary")
		return rejected()
	}

	// Verify before decoding the payload: the sender identity is the
	// only caller identity the rest of the pipeline may use. Failure
	// detail goes to the log, never to the unverified caller.
	sender, err := env.Open(nil)
	if err != nil {
		h.logger.Debug("rejecting request", "claimed_sender", env.From, "error", err)
		return rejected()
	}

	var request wire.Request
	if err := json.Unmarshal(env.Payload, &request); err != nil {
		h.logger.Debug("malformed request payload", "sender", sender, "error", err)
		return wire.Failure(&wire.Error{Code: wire.CodeInvalidRequest, Message: "malformed request payload"})
	}

	if !request.TargetHub.IsSelf() {
		return h.forward(ctx, sender, request)
	}

	accessCtx := policy.Context{
		CurrentHub: h.id,
		App:        request.App,
		Instance:   request.Instance,
		Command:    request.Command,
		Path:       auditPath(request.Payload),
	}

	// A request carrying a spoke field was forwarded by another hub on
	// behalf of that spoke; the verified sender is then the hub, and
	// the spoke claim is only meaningful once the policy has decided
	// to trust that hub.
	ownSide := request.Spoke == ""
	if ownSide {
		accessCtx.RequesterHub = h.id
		accessCtx.Spoke = sender
	} else {
		spoke, err := identity.ParseID52(request.Spoke)
		if err != nil {
			h.logger.Debug("malformed spoke field", "sender", sender, "error", err)
			return wire.Failure(&wire.Error{Code: wire.CodeInvalidRequest, Message: "malformed spoke identity"})
		}
		accessCtx.RequesterHub = sender
		accessCtx.Spoke = spoke
	}

	result := h.policy.Evaluate(accessCtx)
	if result.Decision != policy.Allow {
		h.logger.Info("access denied",
			"spoke", accessCtx.Spoke,
			"requester_hub", accessCtx.RequesterHub,
			"app", request.App,
			"instance", request.Instance,
			"command", request.Command,
			"reason", result.Reason)
		if ownSide {
			if err := h.trust.RecordSighting(sender); err != nil {
				h.logger.Error("recording sighting", "spoke", sender, "error", err)
			}
		}
		// The caller learns only that access was denied to the named
		// resource, never why or whether the resource exists.
		return wire.Failure(&wire.Error{Code: wire.CodeAccessDenied, App: request.App, Instance: request.Instance})
	}

	h.logger.Debug("access allowed",
		"spoke", accessCtx.Spoke,
		"app", request.App,
		"instance", request.Instance,
		"command", request.Command,
		"rule", result.Rule)
	return h.route(request)
}

// route dispatches an authorized request to its registered handler.
// Routing is closed: unknown apps, instances, and commands each fail
// with their own code, and handler errors are relayed as app errors
// rather than transport failures.
func (h *Hub) route(request wire.Request) wire.Response {
	handler, appKnown, instanceKnown := h.lookup(wire.App(request.App), request.Instance)
	if !appKnown {
		return wire.Failure(&wire.Error{Code: wire.CodeAppNotFound, App: request.App})
	}
	if !instanceKnown {
		return wire.Failure(&wire.Error{Code: wire.CodeInstanceNotFound, App: request.App, Instance: request.Instance})
	}

	command, err := wire.ParseCommand(request.Command)
	if err != nil {
		return wire.Failure(&wire.Error{
			Code:     wire.CodeUnknownCommand,
			App:      request.App,
			Instance: request.Instance,
			Message:  fmt.Sprintf("unknown command %q", request.Command),
		})
	}

	data, err := handler.HandleCommand(command, request.Payload)
	if err != nil {
		var protocolErr *wire.Error
		if errors.As(err, &protocolErr) {
			return wire.Failure(protocolErr)
		}
		return wire.Failure(&wire.Error{
			Code:     wire.CodeAppError,
			App:      request.App,
			Instance: request.Instance,
			Message:  err.Error(),
		})
	}
	return wire.Success(data)
}

// forward relays a request addressed to a peer hub alias: re-signs it
// as this hub with the originating spoke recorded in the payload,
// posts it to the peer, and verifies the reply envelope against the
// pinned peer identity before relaying the response.
func (h *Hub) forward(ctx context.Context, sender identity.ID52, request wire.Request) wire.Response {
	alias := request.TargetHub.Alias()

	// Only this hub's own authorized spokes may use it as a relay.
	if !h.trust.IsSpokeAuthorized(sender) {
		h.logger.Info("forward denied", "spoke", sender, "target", alias, "reason", "spoke not authorized")
		if err := h.trust.RecordSighting(sender); err != nil {
			h.logger.Error("recording sighting", "spoke", sender, "error", err)
		}
		return wire.Failure(&wire.Error{Code: wire.CodeUnauthorized})
	}

	entry, ok := h.trust.LookupHubByAlias(alias)
	if !ok || entry.URL == "" {
		return wire.Failure(&wire.Error{
			Code:    wire.CodeHubNotFound,
			Message: fmt.Sprintf("no hub known as %q", alias),
		})
	}

	inner := request
	inner.TargetHub = wire.TargetSelf()
	inner.Spoke = sender.String()

	sealed, err := envelope.Seal(envelope.RoleSender, h.key, inner)
	if err != nil {
		return forwardFailed(alias, err)
	}
	body, err := sealed.Encode()
	if err != nil {
		return forwardFailed(alias, err)
	}

	url := strings.TrimSuffix(entry.URL, "/") + RoutePath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return forwardFailed(alias, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := h.client.Do(httpReq)
	if err != nil {
		h.logger.Warn("forward failed", "target", alias, "url", url, "error", err)
		return forwardFailed(alias, err)
	}
	defer httpResp.Body.Close()

	reply, err := io.ReadAll(io.LimitReader(httpResp.Body, maxForwardResponse))
	if err != nil {
		return forwardFailed(alias, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		h.logger.Warn("forward failed", "target", alias, "url", url, "status", httpResp.StatusCode)
		return forwardFailed(alias, fmt.Errorf("peer returned status %d", httpResp.StatusCode))
	}

	replyEnv, err := envelope.Decode(reply)
	if err != nil {
		return forwardFailed(alias, err)
	}

	// Pin the responder: a valid envelope signed by anyone other than
	// the hub we addressed is a protocol violation.
	var response wire.Response
	if err := replyEnv.OpenFrom(entry.ID, &response); err != nil {
		h.logger.Warn("forward reply failed verification", "target", alias, "error", err)
		return forwardFailed(alias, errors.New("reply failed verification"))
	}
	return response
}

func forwardFailed(alias string, err error) wire.Response {
	return wire.Failure(&wire.Error{
		Code:    wire.CodeForwardFailed,
		Message: fmt.Sprintf("forwarding to %q: %v", alias, err),
	})
}

// rejected is the uniform answer to any envelope that failed
// verification. Indistinguishable outcomes keep probes for valid
// identities and signature formats uninformative.
func rejected() wire.Response {
	return wire.Failure(&wire.Error{Code: wire.CodeRejected, Message: "request rejected"})
}

// auditPath extracts the path field from a command payload for audit
// logging. Best effort: commands without a path log an empty one.
func auditPath(payload json.RawMessage) string {
	if len(payload) == 0 {
		return ""
	}
	var p struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return ""
	}
	return p.Path
}
