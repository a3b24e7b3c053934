// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// HTTPServer serves HTTP on a TCP listener. The hub uses it for the
// spoke-facing envelope endpoint. The server manages listener lifecycle
// and graceful shutdown; the caller provides the http.Handler.
type HTTPServer struct {
	address string
	handler http.Handler
	logger  *slog.Logger

	// shutdownTimeout is the maximum time to wait for active requests
	// to complete after the context is cancelled.
	shutdownTimeout time.Duration

	// ready is closed after the listener is bound and the server is
	// accepting connections.
	ready chan struct{}

	// addr is the resolved listen address, available after ready is
	// closed.
	addr net.Addr
}

// HTTPServerConfig configures an HTTPServer.
type HTTPServerConfig struct {
	// Address is the TCP listen address (e.g., ":7038"). Required.
	Address string

	// Handler is the HTTP handler for incoming requests. Required.
	Handler http.Handler

	// ShutdownTimeout is the maximum time to wait for in-flight
	// requests during graceful shutdown. Defaults to 10 seconds.
	ShutdownTimeout time.Duration

	// Logger is the structured logger. Required.
	Logger *slog.Logger
}

// NewHTTPServer creates a server that will listen on the configured
// TCP address. Call Serve to start accepting connections.
func NewHTTPServer(config HTTPServerConfig) *HTTPServer {
	if config.Address == "" {
		panic("service.HTTPServer: Address is required")
	}
	if config.Handler == nil {
		panic("service.HTTPServer: Handler is required")
	}
	if config.Logger == nil {
		panic("service.HTTPServer: Logger is required")
	}

	timeout := config.ShutdownTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &HTTPServer{
		address:         config.Address,
		handler:         config.Handler,
		logger:          config.Logger,
		shutdownTimeout: timeout,
		ready:           make(chan struct{}),
	}
}

// Ready returns a channel that is closed once the server is bound and
// accepting connections.
func (s *HTTPServer) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the resolved listen address. Only valid after Ready()
// is closed. Useful when the configured address uses port 0.
func (s *HTTPServer) Addr() net.Addr {
	return s.addr
}

// Serve starts accepting HTTP connections. Blocks until ctx is
// cancelled, then performs graceful shutdown: stops accepting new
// connections and waits up to ShutdownTimeout for active requests.
func (s *HTTPServer) Serve(ctx context.Context) error {
	// Bind early so the resolved address is available and readiness
	// can be signalled before the serve loop starts.
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	server := &http.Server{
		Handler: s.handler,

		// Envelope payloads are small; generous timeouts protect
		// against slow clients holding connections open.
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("http server listening", "address", s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http server shutting down")
	case err := <-serveDone:
		if err != nil {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http server shutdown error", "error", err)
		return fmt.Errorf("http server shutdown: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}
