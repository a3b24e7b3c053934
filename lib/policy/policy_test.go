// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"io"
	"log/slog"
	"testing"

	"github.com/kosha-foundation/kosha/lib/identity"
	"github.com/kosha-foundation/kosha/lib/trust"
)

func testID(t *testing.T) identity.ID52 {
	t.Helper()
	key, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return key.ID52()
}

func testPolicy(t *testing.T) (*TrustPolicy, *trust.Store) {
	t.Helper()
	store, err := trust.Load(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("trust.Load: %v", err)
	}
	return NewTrustPolicy(store), store
}

func TestOwnSpokeAuthorized(t *testing.T) {
	policy, store := testPolicy(t)
	hub := testID(t)
	spoke := testID(t)

	ctx := Context{
		RequesterHub: hub,
		CurrentHub:   hub,
		Spoke:        spoke,
		App:          "kosha",
		Instance:     "root",
		Command:      "read_file",
	}

	result := policy.Evaluate(ctx)
	if result.Decision != Deny || result.Reason != ReasonSpokeNotAuthorized {
		t.Fatalf("unauthorized own spoke = %+v, want deny/spoke not authorized", result)
	}

	if err := store.AddSpoke(trust.SpokeEntry{ID: spoke, Alias: "laptop"}); err != nil {
		t.Fatalf("AddSpoke: %v", err)
	}
	result = policy.Evaluate(ctx)
	if result.Decision != Allow || result.Rule != RuleOwnSpoke {
		t.Fatalf("authorized own spoke = %+v, want allow/own spoke", result)
	}
}

func TestPeerHubTrusted(t *testing.T) {
	policy, store := testPolicy(t)
	currentHub := testID(t)
	peerHub := testID(t)
	foreignSpoke := testID(t)

	ctx := Context{
		RequesterHub: peerHub,
		CurrentHub:   currentHub,
		Spoke:        foreignSpoke,
		App:          "kosha",
		Instance:     "root",
		Command:      "read_file",
	}

	result := policy.Evaluate(ctx)
	if result.Decision != Deny || result.Reason != ReasonHubNotTrusted {
		t.Fatalf("unlisted hub = %+v, want deny/hub not trusted", result)
	}

	if err := store.AddHub(trust.HubEntry{ID: peerHub, Alias: "hub1", URL: "http://hub1:7038"}); err != nil {
		t.Fatalf("AddHub: %v", err)
	}
	result = policy.Evaluate(ctx)
	if result.Decision != Allow || result.Rule != RulePeerHub {
		t.Fatalf("trusted hub = %+v, want allow/peer hub", result)
	}
}

func TestResourceACLGrant(t *testing.T) {
	policy, store := testPolicy(t)
	currentHub := testID(t)
	spoke := testID(t)

	// A spoke contacting the hub directly, absent from spokes.txt but
	// named in the resource ACL, is allowed by rule 3.
	ctx := Context{
		RequesterHub: currentHub,
		CurrentHub:   currentHub,
		Spoke:        spoke,
		App:          "kosha",
		Instance:     "shared",
		Command:      "read_file",
	}

	if result := policy.Evaluate(ctx); result.Decision != Deny {
		t.Fatalf("pre-grant = %+v, want deny", result)
	}

	if err := store.GrantAccess("kosha", "shared", spoke, ""); err != nil {
		t.Fatalf("GrantAccess: %v", err)
	}
	result := policy.Evaluate(ctx)
	if result.Decision != Allow || result.Rule != RuleResourceACL {
		t.Fatalf("post-grant = %+v, want allow/resource ACL", result)
	}

	// The grant is per-(app, instance).
	other := ctx
	other.Instance = "root"
	if result := policy.Evaluate(other); result.Decision != Deny {
		t.Fatalf("grant leaked to other instance: %+v", result)
	}

	// Revoking restores the pre-grant deny.
	if err := store.RevokeAccess("kosha", "shared", spoke); err != nil {
		t.Fatalf("RevokeAccess: %v", err)
	}
	if result := policy.Evaluate(ctx); result.Decision != Deny {
		t.Fatalf("post-revoke = %+v, want deny", result)
	}
}

// TestACLIgnoresForwardedSpokeClaim pins the trust boundary of rule 3:
// a grant is usable only by the spoke itself. A request arriving from
// an untrusted hub carries the spoke identity as an unverified claim,
// and the grant must not attach to it.
func TestACLIgnoresForwardedSpokeClaim(t *testing.T) {
	policy, store := testPolicy(t)
	currentHub := testID(t)
	untrustedHub := testID(t)
	granted := testID(t)

	if err := store.GrantAccess("kosha", "shared", granted, ""); err != nil {
		t.Fatalf("GrantAccess: %v", err)
	}

	ctx := Context{
		RequesterHub: untrustedHub,
		CurrentHub:   currentHub,
		Spoke:        granted,
		App:          "kosha",
		Instance:     "shared",
		Command:      "write_file",
	}
	result := policy.Evaluate(ctx)
	if result.Decision != Deny || result.Reason != ReasonHubNotTrusted {
		t.Fatalf("forwarded claim of granted spoke = %+v, want deny/hub not trusted", result)
	}
}

// TestUnknownSpokeDeniedEverywhere covers the blanket property: a spoke
// absent from spokes.txt and covered by no .hubs entry is denied for
// every (app, instance).
func TestUnknownSpokeDeniedEverywhere(t *testing.T) {
	policy, _ := testPolicy(t)
	hub := testID(t)
	stranger := testID(t)

	for _, instance := range []string{"root", "shared", "does-not-exist"} {
		ctx := Context{
			RequesterHub: hub,
			CurrentHub:   hub,
			Spoke:        stranger,
			App:          "kosha",
			Instance:     instance,
			Command:      "read_file",
		}
		if result := policy.Evaluate(ctx); result.Decision != Deny {
			t.Errorf("instance %q: %+v, want deny", instance, result)
		}
	}
}
