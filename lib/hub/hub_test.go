// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package hub

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/kosha-foundation/kosha/lib/codec"
	"github.com/kosha-foundation/kosha/lib/envelope"
	"github.com/kosha-foundation/kosha/lib/identity"
	"github.com/kosha-foundation/kosha/lib/service"
	"github.com/kosha-foundation/kosha/lib/testutil"
	"github.com/kosha-foundation/kosha/lib/trust"
	"github.com/kosha-foundation/kosha/lib/wire"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h, err := Init(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := h.OpenKosha("docs"); err != nil {
		t.Fatalf("OpenKosha: %v", err)
	}
	return h
}

func newSpokeKey(t *testing.T) identity.KeyPair {
	t.Helper()
	key, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return key
}

func sealRequest(t *testing.T, key identity.KeyPair, payload any) []byte {
	t.Helper()
	env, err := envelope.Seal(envelope.RoleSender, key, payload)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	body, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return body
}

// callHub runs one request through the full pipeline and verifies the
// response envelope against the hub's pinned identity.
func callHub(t *testing.T, h *Hub, key identity.KeyPair, payload any) wire.Response {
	t.Helper()
	reply, err := h.HandleRequest(context.Background(), sealRequest(t, key, payload))
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	env, err := envelope.Decode(reply)
	if err != nil {
		t.Fatalf("decoding response envelope: %v", err)
	}
	var response wire.Response
	if err := env.OpenFrom(h.ID52(), &response); err != nil {
		t.Fatalf("opening response envelope: %v", err)
	}
	return response
}

func requireFailure(t *testing.T, response wire.Response, code wire.Code) {
	t.Helper()
	if response.OK {
		t.Fatalf("expected failure %s, got success", code)
	}
	if response.Error == nil {
		t.Fatal("failure response has no error")
	}
	if response.Error.Code != code {
		t.Fatalf("error code = %s, want %s", response.Error.Code, code)
	}
}

func writeRequest(instance, path, content string) wire.Request {
	payload, _ := json.Marshal(map[string]any{"path": path, "content": []byte(content)})
	return wire.Request{
		TargetHub: wire.TargetSelf(),
		App:       string(wire.AppKosha),
		Instance:  instance,
		Command:   string(wire.CmdWriteFile),
		Payload:   payload,
	}
}

func readRequest(instance, path string) wire.Request {
	payload, _ := json.Marshal(map[string]string{"path": path})
	return wire.Request{
		TargetHub: wire.TargetSelf(),
		App:       string(wire.AppKosha),
		Instance:  instance,
		Command:   string(wire.CmdReadFile),
		Payload:   payload,
	}
}

func fileContent(t *testing.T, response wire.Response) string {
	t.Helper()
	if !response.OK {
		t.Fatalf("expected success, got %v", response.Error)
	}
	var result struct {
		Content []byte `json:"content"`
	}
	if err := json.Unmarshal(response.Data, &result); err != nil {
		t.Fatalf("decoding read result: %v", err)
	}
	return string(result.Content)
}

func TestInitAndLoad(t *testing.T) {
	home := t.TempDir()

	created, err := Init(home, testLogger())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if created.ID52().IsZero() {
		t.Fatal("initialized hub has zero identity")
	}

	if _, err := Init(home, testLogger()); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("second Init error = %v, want ErrAlreadyExists", err)
	}

	loaded, err := Load(home, testLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ID52() != created.ID52() {
		t.Fatalf("loaded identity %s, want %s", loaded.ID52(), created.ID52())
	}

	if _, err := Load(t.TempDir(), testLogger()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Load on empty dir error = %v, want ErrNotInitialized", err)
	}

	fresh, err := LoadOrInit(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("LoadOrInit: %v", err)
	}
	if fresh.ID52().IsZero() {
		t.Fatal("LoadOrInit produced zero identity")
	}
}

func TestOwnSpokeWriteRead(t *testing.T) {
	h := newTestHub(t)
	spoke := newSpokeKey(t)
	if err := h.Trust().AddSpoke(trust.SpokeEntry{ID: spoke.ID52(), Alias: "laptop"}); err != nil {
		t.Fatalf("AddSpoke: %v", err)
	}

	response := callHub(t, h, spoke, writeRequest("docs", "hello.txt", "Hello, World!"))
	if !response.OK {
		t.Fatalf("write failed: %v", response.Error)
	}

	got := fileContent(t, callHub(t, h, spoke, readRequest("docs", "hello.txt")))
	if got != "Hello, World!" {
		t.Fatalf("read back %q, want %q", got, "Hello, World!")
	}
}

func TestUnauthorizedSpokeDeniedAndSighted(t *testing.T) {
	h := newTestHub(t)
	stranger := newSpokeKey(t)

	response := callHub(t, h, stranger, readRequest("docs", "hello.txt"))
	requireFailure(t, response, wire.CodeAccessDenied)
	if response.Error.App != string(wire.AppKosha) || response.Error.Instance != "docs" {
		t.Fatalf("denial names %s/%s, want kosha/docs", response.Error.App, response.Error.Instance)
	}

	pending := h.Trust().PendingSpokes()
	if len(pending) != 1 || pending[0].ID != stranger.ID52() {
		t.Fatalf("pending = %v, want single sighting of %s", pending, stranger.ID52())
	}

	// The denial must not reveal whether the instance exists: an
	// unauthorized request against a nonexistent instance reads the
	// same as one against a real instance.
	ghost := callHub(t, h, stranger, readRequest("ghost", "hello.txt"))
	requireFailure(t, ghost, wire.CodeAccessDenied)
}

func TestRejectsUnverifiableEnvelopes(t *testing.T) {
	h := newTestHub(t)
	spoke := newSpokeKey(t)
	if err := h.Trust().AddSpoke(trust.SpokeEntry{ID: spoke.ID52()}); err != nil {
		t.Fatalf("AddSpoke: %v", err)
	}

	// Unparseable body.
	reply, err := h.HandleRequest(context.Background(), []byte("not json"))
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	env, err := envelope.Decode(reply)
	if err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	var response wire.Response
	if err := env.OpenFrom(h.ID52(), &response); err != nil {
		t.Fatalf("opening response: %v", err)
	}
	requireFailure(t, response, wire.CodeRejected)

	// Tampered payload: signature no longer matches.
	body := sealRequest(t, spoke, readRequest("docs", "a.txt"))
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	raw["payload"] = json.RawMessage(`{"target_hub":"self","app":"kosha","instance":"docs","command":"delete","payload":{"path":"a.txt"}}`)
	tampered, _ := json.Marshal(raw)
	reply, err = h.HandleRequest(context.Background(), tampered)
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	env, _ = envelope.Decode(reply)
	if err := env.OpenFrom(h.ID52(), &response); err != nil {
		t.Fatalf("opening response: %v", err)
	}
	requireFailure(t, response, wire.CodeRejected)

	// A well-signed responder envelope replayed as a request: valid
	// signature, wrong context. Rejected without being interpreted.
	replayed, err := envelope.Seal(envelope.RoleResponder, spoke, readRequest("docs", "a.txt"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	replayBody, err := replayed.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	reply, err = h.HandleRequest(context.Background(), replayBody)
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	env, _ = envelope.Decode(reply)
	if err := env.OpenFrom(h.ID52(), &response); err != nil {
		t.Fatalf("opening response: %v", err)
	}
	requireFailure(t, response, wire.CodeRejected)
}

func TestMalformedRequestPayload(t *testing.T) {
	h := newTestHub(t)
	spoke := newSpokeKey(t)

	// Verifies fine, but the payload is not a request shape. This is
	// reported before any access decision, so no authorization is
	// needed to observe it.
	response := callHub(t, h, spoke, map[string]any{"target_hub": 5})
	requireFailure(t, response, wire.CodeInvalidRequest)
}

func TestRoutingErrors(t *testing.T) {
	h := newTestHub(t)
	spoke := newSpokeKey(t)
	if err := h.Trust().AddSpoke(trust.SpokeEntry{ID: spoke.ID52()}); err != nil {
		t.Fatalf("AddSpoke: %v", err)
	}

	request := readRequest("docs", "a.txt")
	request.App = "mailbox"
	requireFailure(t, callHub(t, h, spoke, request), wire.CodeAppNotFound)

	request = readRequest("missing", "a.txt")
	requireFailure(t, callHub(t, h, spoke, request), wire.CodeInstanceNotFound)

	request = readRequest("docs", "a.txt")
	request.Command = "truncate"
	requireFailure(t, callHub(t, h, spoke, request), wire.CodeUnknownCommand)
}

func TestHandlerErrorsRelayedAsAppErrors(t *testing.T) {
	h := newTestHub(t)
	spoke := newSpokeKey(t)
	if err := h.Trust().AddSpoke(trust.SpokeEntry{ID: spoke.ID52()}); err != nil {
		t.Fatalf("AddSpoke: %v", err)
	}

	response := callHub(t, h, spoke, readRequest("docs", "nope.txt"))
	requireFailure(t, response, wire.CodeAppError)
	if response.Error.Message == "" {
		t.Fatal("app error carries no message")
	}
}

// twoHubs builds the forwarding topology: a spoke paired with hubA,
// and hubB reachable over HTTP. Trust between the hubs is left to the
// caller.
func twoHubs(t *testing.T) (hubA, hubB *Hub, spoke identity.KeyPair) {
	t.Helper()
	hubA = newTestHub(t)
	hubB = newTestHub(t)
	spoke = newSpokeKey(t)
	if err := hubA.Trust().AddSpoke(trust.SpokeEntry{ID: spoke.ID52(), Alias: "laptop"}); err != nil {
		t.Fatalf("AddSpoke: %v", err)
	}

	server := httptest.NewServer(hubB.Handler(1 << 20))
	t.Cleanup(server.Close)

	entry := trust.HubEntry{ID: hubB.ID52(), Alias: "peer", URL: server.URL, AddedAt: time.Now()}
	if err := hubA.Trust().AddHub(entry); err != nil {
		t.Fatalf("AddHub: %v", err)
	}
	return hubA, hubB, spoke
}

func TestForwardingBetweenTrustedHubs(t *testing.T) {
	hubA, hubB, spoke := twoHubs(t)
	entry := trust.HubEntry{ID: hubA.ID52(), Alias: "origin", AddedAt: time.Now()}
	if err := hubB.Trust().AddHub(entry); err != nil {
		t.Fatalf("AddHub: %v", err)
	}

	request := writeRequest("docs", "shared.txt", "from afar")
	request.TargetHub = wire.TargetAlias("peer")
	if response := callHub(t, hubA, spoke, request); !response.OK {
		t.Fatalf("forwarded write failed: %v", response.Error)
	}

	read := readRequest("docs", "shared.txt")
	read.TargetHub = wire.TargetAlias("peer")
	if got := fileContent(t, callHub(t, hubA, spoke, read)); got != "from afar" {
		t.Fatalf("forwarded read = %q, want %q", got, "from afar")
	}
}

func TestForwardingFromUntrustedHubDenied(t *testing.T) {
	hubA, hubB, spoke := twoHubs(t)

	// hubB has never listed hubA. The failure must be an authorization
	// denial from hubB, not a transport or routing error: the request
	// reached hubB and was turned away at the trust boundary.
	request := readRequest("docs", "shared.txt")
	request.TargetHub = wire.TargetAlias("peer")
	response := callHub(t, hubA, spoke, request)
	requireFailure(t, response, wire.CodeAccessDenied)

	if len(hubB.Trust().PendingSpokes()) != 0 {
		t.Fatal("foreign denial must not record a sighting on the remote hub")
	}
}

func TestResourceGrantAdmitsForeignSpokeDirectly(t *testing.T) {
	h := newTestHub(t)
	foreign := newSpokeKey(t)

	// Not in spokes.txt, but named in the resource ACL. Contacting the
	// hub directly, the spoke is the verified sender and the grant
	// applies.
	if err := h.Trust().GrantAccess(string(wire.AppKosha), "docs", foreign.ID52(), "amitu"); err != nil {
		t.Fatalf("GrantAccess: %v", err)
	}

	if response := callHub(t, h, foreign, writeRequest("docs", "granted.txt", "acl path")); !response.OK {
		t.Fatalf("granted write failed: %v", response.Error)
	}
	if got := fileContent(t, callHub(t, h, foreign, readRequest("docs", "granted.txt"))); got != "acl path" {
		t.Fatalf("granted read = %q, want %q", got, "acl path")
	}

	// The grant is scoped to the instance it names.
	requireFailure(t, callHub(t, h, foreign, readRequest("root", "granted.txt")), wire.CodeAccessDenied)
}

// TestForgedSpokeClaimDenied pins the forwarding trust boundary: the
// request-level spoke field is an unverified claim, so a grant held by
// one spoke must not be reachable by signing a request that merely
// names it.
func TestForgedSpokeClaimDenied(t *testing.T) {
	h := newTestHub(t)
	victim := newSpokeKey(t)
	attacker := newSpokeKey(t)

	if err := h.Trust().GrantAccess(string(wire.AppKosha), "docs", victim.ID52(), "victim"); err != nil {
		t.Fatalf("GrantAccess: %v", err)
	}

	request := writeRequest("docs", "forged.txt", "stolen access")
	request.Spoke = victim.ID52().String()
	requireFailure(t, callHub(t, h, attacker, request), wire.CodeAccessDenied)

	// The victim's grant admits the victim, and the read proves the
	// forged write never landed.
	response := callHub(t, h, victim, readRequest("docs", "forged.txt"))
	if response.OK {
		t.Fatal("forged write landed on disk")
	}
	requireFailure(t, response, wire.CodeAppError)
}

func TestForwardUnknownAlias(t *testing.T) {
	h := newTestHub(t)
	spoke := newSpokeKey(t)
	if err := h.Trust().AddSpoke(trust.SpokeEntry{ID: spoke.ID52()}); err != nil {
		t.Fatalf("AddSpoke: %v", err)
	}

	request := readRequest("docs", "a.txt")
	request.TargetHub = wire.TargetAlias("nowhere")
	requireFailure(t, callHub(t, h, spoke, request), wire.CodeHubNotFound)
}

func TestForwardRequiresAuthorizedSpoke(t *testing.T) {
	h := newTestHub(t)
	stranger := newSpokeKey(t)

	request := readRequest("docs", "a.txt")
	request.TargetHub = wire.TargetAlias("peer")
	requireFailure(t, callHub(t, h, stranger, request), wire.CodeUnauthorized)

	if pending := h.Trust().PendingSpokes(); len(pending) != 1 {
		t.Fatalf("pending = %d entries, want 1", len(pending))
	}
}

func TestAdminSocket(t *testing.T) {
	h := newTestHub(t)
	socketPath := filepath.Join(testutil.SocketDir(t), "admin.sock")

	server := service.NewSocketServer(socketPath, testLogger())
	h.RegisterAdminActions(server)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	waitForSocket(t, socketPath)

	spoke := newSpokeKey(t)
	response, err := service.Call(socketPath, AdminTrustRequest{Action: "spoke-add", ID52: spoke.ID52().String(), Alias: "laptop"})
	if err != nil {
		t.Fatalf("spoke-add: %v", err)
	}
	if !response.OK {
		t.Fatalf("spoke-add failed: %s", response.Error)
	}
	if !h.Trust().IsSpokeAuthorized(spoke.ID52()) {
		t.Fatal("spoke-add did not authorize the spoke")
	}

	response, err = service.Call(socketPath, AdminTrustRequest{Action: "spoke-list"})
	if err != nil {
		t.Fatalf("spoke-list: %v", err)
	}
	var spokes []AdminSpoke
	if err := codec.Unmarshal(response.Data, &spokes); err != nil {
		t.Fatalf("decoding spoke-list: %v", err)
	}
	if len(spokes) != 1 || spokes[0].ID52 != spoke.ID52().String() || spokes[0].Alias != "laptop" {
		t.Fatalf("spoke-list = %v", spokes)
	}

	response, err = service.Call(socketPath, AdminTrustRequest{Action: "status"})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var status AdminStatus
	if err := codec.Unmarshal(response.Data, &status); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if status.HubID52 != h.ID52().String() {
		t.Fatalf("status hub = %s, want %s", status.HubID52, h.ID52())
	}
	if status.Spokes != 1 {
		t.Fatalf("status spokes = %d, want 1", status.Spokes)
	}

	response, err = service.Call(socketPath, AdminTrustRequest{Action: "spoke-add", ID52: "short"})
	if err != nil {
		t.Fatalf("spoke-add: %v", err)
	}
	if response.OK {
		t.Fatal("spoke-add with invalid id52 succeeded")
	}
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := service.Call(path, map[string]string{"action": "status"}); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("socket %s never became ready", path)
}
