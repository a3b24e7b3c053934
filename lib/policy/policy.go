// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy decides whether a verified sender may perform an
// operation against a named application instance.
//
// The Policy interface is the pluggable capability; TrustPolicy is the
// built-in rule set backed by the hub's trust store. Alternative
// authorization backends can be substituted behind the same
// Context -> Result contract without touching the router.
package policy

import (
	"github.com/kosha-foundation/kosha/lib/identity"
	"github.com/kosha-foundation/kosha/lib/trust"
)

// Context is the input to an access check. Every identity field is
// derived from a verified envelope signature — never from a
// client-supplied payload field. For a direct request, RequesterHub is
// the receiving hub itself and Spoke is the verified sender. For a
// forwarded request, RequesterHub is the verified foreign hub and Spoke
// is the originating spoke as reported by that hub (only meaningful
// once rule 2 has decided to trust the hub).
type Context struct {
	RequesterHub identity.ID52
	CurrentHub   identity.ID52
	Spoke        identity.ID52
	App          string
	Instance     string
	Command      string

	// Path is the file path for commands that address one, retained
	// for audit logging only. No built-in rule matches on it.
	Path string
}

// Decision is the outcome of an access check.
type Decision int

const (
	// Deny means the operation is not permitted.
	Deny Decision = iota

	// Allow means the operation is permitted.
	Allow
)

// String returns "allow" or "deny".
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Rule identifies which rule produced an Allow, for audit logging.
type Rule int

const (
	// RuleNone means no rule matched (the decision is Deny).
	RuleNone Rule = iota

	// RuleOwnSpoke allowed a hub's own authorized spoke.
	RuleOwnSpoke

	// RulePeerHub allowed a trusted peer hub forwarding on behalf of
	// its own spokes.
	RulePeerHub

	// RuleResourceACL allowed a verified spoke named directly in the
	// resource's ACL.
	RuleResourceACL
)

// String returns a human-readable rule name.
func (r Rule) String() string {
	switch r {
	case RuleOwnSpoke:
		return "own spoke authorized"
	case RulePeerHub:
		return "peer hub trusted"
	case RuleResourceACL:
		return "resource ACL grant"
	default:
		return "none"
	}
}

// DenyReason describes why an access check was denied. Reasons exist
// for hub-side logging; they are never echoed to the caller, which
// sees only access-denied naming the resource.
type DenyReason int

const (
	// ReasonSpokeNotAuthorized means the request came from this hub's
	// own side but the spoke is not in the authorization file and
	// holds no resource grant.
	ReasonSpokeNotAuthorized DenyReason = iota

	// ReasonHubNotTrusted means the request was forwarded by a hub
	// absent from every merged .hubs entry. The spoke claim it carried
	// was never evaluated; nothing vouched for it.
	ReasonHubNotTrusted
)

// String returns a human-readable reason.
func (r DenyReason) String() string {
	switch r {
	case ReasonSpokeNotAuthorized:
		return "spoke not authorized"
	case ReasonHubNotTrusted:
		return "forwarding hub not trusted"
	default:
		return "unknown"
	}
}

// Result is the outcome of an access check: the decision, the rule
// that allowed it, and the deny reason for the audit log.
type Result struct {
	Decision Decision
	Rule     Rule
	Reason   DenyReason
}

// Policy is the pluggable access-check capability consumed by the hub
// runtime. Implementations must be safe for concurrent use; they are
// called on every inbound request.
type Policy interface {
	Evaluate(ctx Context) Result
}

// TrustPolicy is the built-in rule set over the hub's trust store.
// Rules are evaluated top-down, first match wins:
//
//  1. The hub's own paired spoke, present in the spoke-authorization
//     file, is allowed.
//  2. A trusted peer hub forwarding on behalf of its own spokes is
//     allowed. Cross-hub trust is coarse: trusting the hub trusts all
//     traffic it forwards.
//  3. A spoke named directly in the (app, instance) ACL is allowed,
//     but only when the spoke is itself the verified sender. Grants
//     never attach to a forwarded spoke claim: the only identity a
//     forwarding hub proves is its own.
//  4. Everything else is denied.
type TrustPolicy struct {
	store *trust.Store
}

// NewTrustPolicy creates the built-in policy over store.
func NewTrustPolicy(store *trust.Store) *TrustPolicy {
	return &TrustPolicy{store: store}
}

// Evaluate implements Policy.
func (p *TrustPolicy) Evaluate(ctx Context) Result {
	ownTraffic := ctx.RequesterHub == ctx.CurrentHub

	if ownTraffic && p.store.IsSpokeAuthorized(ctx.Spoke) {
		return Result{Decision: Allow, Rule: RuleOwnSpoke}
	}

	if !ownTraffic && p.store.IsHubAuthorized(ctx.RequesterHub) {
		return Result{Decision: Allow, Rule: RulePeerHub}
	}

	// The ACL is consulted only when the spoke identity is the verified
	// sender itself. A forwarded spoke field is vouched for by the
	// forwarding hub alone, and that hub has already failed rule 2;
	// honoring the claim here would let any keypair borrow a grant.
	if ownTraffic && !ctx.Spoke.IsZero() && p.store.HasAccess(ctx.App, ctx.Instance, ctx.Spoke) {
		return Result{Decision: Allow, Rule: RuleResourceACL}
	}

	reason := ReasonHubNotTrusted
	if ownTraffic {
		reason = ReasonSpokeNotAuthorized
	}
	return Result{Decision: Deny, Reason: reason}
}
