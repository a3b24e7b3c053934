// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package hub

import (
	"context"
	"io"
	"net/http"
	"path/filepath"

	"github.com/kosha-foundation/kosha/lib/config"
	"github.com/kosha-foundation/kosha/lib/service"
)

// RoutePath is the HTTP endpoint accepting request envelopes. Spokes
// and forwarding hubs POST one envelope per request and receive one
// response envelope, always HTTP 200; failures travel inside the
// signed response, never as transport status.
const RoutePath = "/v1/route"

// Handler returns the hub's spoke-facing HTTP handler. maxBytes caps
// the request body; oversized envelopes fail verification naturally
// when truncated reads produce unparseable JSON, so the cap needs no
// separate error path beyond closing the request.
func (h *Hub) Handler(maxBytes int64) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(RoutePath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
		if err != nil {
			http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
			return
		}

		response, err := h.HandleRequest(r.Context(), body)
		if err != nil {
			h.logger.Error("building response envelope", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(response)
	})
	return mux
}

// Server builds the spoke-facing HTTP server from serve settings.
// The caller owns its lifecycle: Serve blocks, Ready signals the bound
// listener, and cancelling the context shuts it down gracefully.
func (h *Hub) Server(settings config.Serve) *service.HTTPServer {
	return service.NewHTTPServer(service.HTTPServerConfig{
		Address:         settings.Listen,
		Handler:         h.Handler(settings.MaxRequestBytes),
		ShutdownTimeout: settings.ShutdownTimeout,
		Logger:          h.logger,
	})
}

// AdminSocketPath resolves the configured admin socket path against
// the hub's home directory.
func (h *Hub) AdminSocketPath(settings config.Serve) string {
	if filepath.IsAbs(settings.AdminSocket) {
		return settings.AdminSocket
	}
	return filepath.Join(h.home, settings.AdminSocket)
}

// Serve runs the hub: the spoke-facing HTTP endpoint and the admin
// socket, until ctx is cancelled. Either listener failing stops both.
func (h *Hub) Serve(ctx context.Context, settings config.Serve) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpServer := h.Server(settings)
	adminServer := service.NewSocketServer(h.AdminSocketPath(settings), h.logger)
	h.RegisterAdminActions(adminServer)

	results := make(chan error, 2)
	go func() { results <- httpServer.Serve(ctx) }()
	go func() { results <- adminServer.Serve(ctx) }()

	// First failure (or first clean exit after cancellation) wins;
	// cancel the sibling and collect it before returning.
	err := <-results
	cancel()
	if second := <-results; err == nil {
		err = second
	}
	return err
}
