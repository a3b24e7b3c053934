// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package hub

import (
	"context"
	"fmt"
	"time"

	"github.com/kosha-foundation/kosha/lib/codec"
	"github.com/kosha-foundation/kosha/lib/identity"
	"github.com/kosha-foundation/kosha/lib/service"
	"github.com/kosha-foundation/kosha/lib/trust"
)

// Admin socket request and result types. The CLI shares these shapes;
// they travel as CBOR over the hub's local admin socket, so trust
// mutations against a running hub go through its in-memory store
// instead of racing it on the files.

// AdminTrustRequest covers the spoke, hub, and ACL mutation actions.
// Fields beyond Action are read per action: spoke actions use ID52 and
// Alias, hub actions add URL, ACL actions add App and Instance.
type AdminTrustRequest struct {
	Action   string `cbor:"action"`
	ID52     string `cbor:"id52,omitempty"`
	Alias    string `cbor:"alias,omitempty"`
	URL      string `cbor:"url,omitempty"`
	App      string `cbor:"app,omitempty"`
	Instance string `cbor:"instance,omitempty"`
}

// AdminSpoke is one authorized spoke in a spoke-list result.
type AdminSpoke struct {
	ID52  string `cbor:"id52"`
	Alias string `cbor:"alias,omitempty"`
}

// AdminPendingSpoke is one observed-but-unauthorized spoke in a
// spoke-pending result.
type AdminPendingSpoke struct {
	ID52      string    `cbor:"id52"`
	FirstSeen time.Time `cbor:"first_seen"`
}

// AdminHub is one trusted peer hub in a hub-list result.
type AdminHub struct {
	ID52  string `cbor:"id52"`
	Alias string `cbor:"alias"`
	URL   string `cbor:"url,omitempty"`
}

// AdminGrant is one ACL entry in an acl-list result.
type AdminGrant struct {
	ID52        string `cbor:"id52"`
	DisplayName string `cbor:"display_name,omitempty"`
}

// AdminStatus is the status action result.
type AdminStatus struct {
	HubID52   string    `cbor:"hub_id52"`
	CreatedAt time.Time `cbor:"created_at"`
	Instances []string  `cbor:"instances"`
	Spokes    int       `cbor:"spokes"`
	Pending   int       `cbor:"pending"`
	Hubs      int       `cbor:"hubs"`
}

func (h *Hub) adminActions() map[string]service.ActionFunc {
	return map[string]service.ActionFunc{
		"spoke-add":     h.adminSpokeAdd,
		"spoke-remove":  h.adminSpokeRemove,
		"spoke-list":    h.adminSpokeList,
		"spoke-pending": h.adminSpokePending,
		"hub-add":       h.adminHubAdd,
		"hub-remove":    h.adminHubRemove,
		"hub-list":      h.adminHubList,
		"acl-grant":     h.adminACLGrant,
		"acl-revoke":    h.adminACLRevoke,
		"acl-list":      h.adminACLList,
		"status":        h.adminStatus,
	}
}

// RegisterAdminActions attaches the hub's admin protocol to a socket
// server. Serve does this automatically; it is exported for tests and
// embedders running their own socket lifecycle.
func (h *Hub) RegisterAdminActions(s *service.SocketServer) {
	for action, handler := range h.adminActions() {
		s.Handle(action, handler)
	}
}

// AdminAction runs one admin action directly against this hub, the
// same dispatch the admin socket performs. The CLI uses it when no hub
// is serving and the store can be mutated on disk directly.
func (h *Hub) AdminAction(ctx context.Context, request AdminTrustRequest) (any, error) {
	handler, ok := h.adminActions()[request.Action]
	if !ok {
		return nil, fmt.Errorf("unknown action %q", request.Action)
	}
	raw, err := codec.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return handler(ctx, raw)
}

func decodeAdminRequest(raw []byte) (AdminTrustRequest, error) {
	var request AdminTrustRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return AdminTrustRequest{}, fmt.Errorf("decoding request: %w", err)
	}
	return request, nil
}

func (request AdminTrustRequest) spokeID() (identity.ID52, error) {
	if request.ID52 == "" {
		return identity.ID52{}, fmt.Errorf("missing required field: id52")
	}
	return identity.ParseID52(request.ID52)
}

func (h *Hub) adminSpokeAdd(ctx context.Context, raw []byte) (any, error) {
	request, err := decodeAdminRequest(raw)
	if err != nil {
		return nil, err
	}
	id, err := request.spokeID()
	if err != nil {
		return nil, err
	}
	if err := h.trust.AddSpoke(trust.SpokeEntry{ID: id, Alias: request.Alias}); err != nil {
		return nil, err
	}
	h.logger.Info("spoke authorized", "spoke", id, "alias", request.Alias)
	return nil, nil
}

func (h *Hub) adminSpokeRemove(ctx context.Context, raw []byte) (any, error) {
	request, err := decodeAdminRequest(raw)
	if err != nil {
		return nil, err
	}
	id, err := request.spokeID()
	if err != nil {
		return nil, err
	}
	if err := h.trust.RemoveSpoke(id); err != nil {
		return nil, err
	}
	h.logger.Info("spoke removed", "spoke", id)
	return nil, nil
}

func (h *Hub) adminSpokeList(ctx context.Context, raw []byte) (any, error) {
	entries := h.trust.Spokes()
	spokes := make([]AdminSpoke, 0, len(entries))
	for _, entry := range entries {
		spokes = append(spokes, AdminSpoke{ID52: entry.ID.String(), Alias: entry.Alias})
	}
	return spokes, nil
}

func (h *Hub) adminSpokePending(ctx context.Context, raw []byte) (any, error) {
	entries := h.trust.PendingSpokes()
	pending := make([]AdminPendingSpoke, 0, len(entries))
	for _, entry := range entries {
		pending = append(pending, AdminPendingSpoke{ID52: entry.ID.String(), FirstSeen: entry.FirstSeen})
	}
	return pending, nil
}

func (h *Hub) adminHubAdd(ctx context.Context, raw []byte) (any, error) {
	request, err := decodeAdminRequest(raw)
	if err != nil {
		return nil, err
	}
	id, err := request.spokeID()
	if err != nil {
		return nil, err
	}
	if request.Alias == "" {
		return nil, fmt.Errorf("missing required field: alias")
	}
	entry := trust.HubEntry{ID: id, Alias: request.Alias, URL: request.URL, AddedAt: time.Now().UTC()}
	if err := h.trust.AddHub(entry); err != nil {
		return nil, err
	}
	h.logger.Info("peer hub trusted", "peer", id, "alias", request.Alias, "url", request.URL)
	return nil, nil
}

func (h *Hub) adminHubRemove(ctx context.Context, raw []byte) (any, error) {
	request, err := decodeAdminRequest(raw)
	if err != nil {
		return nil, err
	}
	id, err := request.spokeID()
	if err != nil {
		return nil, err
	}
	if err := h.trust.RemoveHub(id); err != nil {
		return nil, err
	}
	h.logger.Info("peer hub removed", "peer", id)
	return nil, nil
}

func (h *Hub) adminHubList(ctx context.Context, raw []byte) (any, error) {
	entries := h.trust.Hubs()
	hubs := make([]AdminHub, 0, len(entries))
	for _, entry := range entries {
		hubs = append(hubs, AdminHub{ID52: entry.ID.String(), Alias: entry.Alias, URL: entry.URL})
	}
	return hubs, nil
}

func (request AdminTrustRequest) resource() (string, string, error) {
	if request.App == "" || request.Instance == "" {
		return "", "", fmt.Errorf("missing required fields: app and instance")
	}
	return request.App, request.Instance, nil
}

func (h *Hub) adminACLGrant(ctx context.Context, raw []byte) (any, error) {
	request, err := decodeAdminRequest(raw)
	if err != nil {
		return nil, err
	}
	id, err := request.spokeID()
	if err != nil {
		return nil, err
	}
	app, instance, err := request.resource()
	if err != nil {
		return nil, err
	}
	if err := h.trust.GrantAccess(app, instance, id, request.Alias); err != nil {
		return nil, err
	}
	h.logger.Info("access granted", "spoke", id, "app", app, "instance", instance)
	return nil, nil
}

func (h *Hub) adminACLRevoke(ctx context.Context, raw []byte) (any, error) {
	request, err := decodeAdminRequest(raw)
	if err != nil {
		return nil, err
	}
	id, err := request.spokeID()
	if err != nil {
		return nil, err
	}
	app, instance, err := request.resource()
	if err != nil {
		return nil, err
	}
	if err := h.trust.RevokeAccess(app, instance, id); err != nil {
		return nil, err
	}
	h.logger.Info("access revoked", "spoke", id, "app", app, "instance", instance)
	return nil, nil
}

func (h *Hub) adminACLList(ctx context.Context, raw []byte) (any, error) {
	request, err := decodeAdminRequest(raw)
	if err != nil {
		return nil, err
	}
	app, instance, err := request.resource()
	if err != nil {
		return nil, err
	}
	entries := h.trust.ACL(app, instance)
	grants := make([]AdminGrant, 0, len(entries))
	for _, entry := range entries {
		grants = append(grants, AdminGrant{ID52: entry.ID.String(), DisplayName: entry.DisplayName})
	}
	return grants, nil
}

func (h *Hub) adminStatus(ctx context.Context, raw []byte) (any, error) {
	instances, err := h.Instances()
	if err != nil {
		return nil, err
	}
	return AdminStatus{
		HubID52:   h.id.String(),
		CreatedAt: h.config.CreatedAt,
		Instances: instances,
		Spokes:    len(h.trust.Spokes()),
		Pending:   len(h.trust.PendingSpokes()),
		Hubs:      len(h.trust.Hubs()),
	}, nil
}
