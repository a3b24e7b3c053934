// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/kosha-foundation/kosha/lib/codec"
)

// ActionFunc processes one admin socket request. The raw parameter is
// the full CBOR request (including the "action" field); the handler
// decodes action-specific fields from it.
//
// Return a value to include in the success response, or an error for a
// failure response. A nil value produces {ok: true} alone; a non-nil
// value is marshaled as CBOR into the response's "data" field.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// Response is the wire-format envelope for all admin socket responses.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// SocketServer serves a CBOR request-response protocol on a Unix
// socket. Each connection handles exactly one request-response cycle.
// The admin plane uses it so trust mutations go through the running
// hub's store instead of racing it on the underlying files.
//
// Actions are registered with Handle before calling Serve. Unknown
// actions receive an error response.
type SocketServer struct {
	socketPath string
	handlers   map[string]ActionFunc
	logger     *slog.Logger

	// activeConnections tracks in-flight handlers for graceful
	// shutdown. Serve waits for them before returning.
	activeConnections sync.WaitGroup
}

// NewSocketServer creates a server that will listen on socketPath.
// Register actions with Handle before calling Serve.
func NewSocketServer(socketPath string, logger *slog.Logger) *SocketServer {
	return &SocketServer{
		socketPath: socketPath,
		handlers:   make(map[string]ActionFunc),
		logger:     logger,
	}
}

// Handle registers a handler for the given action name. Panics if the
// action is already registered.
func (s *SocketServer) Handle(action string, handler ActionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("service.SocketServer: duplicate handler for action %q", action))
	}
	s.handlers[action] = handler
}

// Serve starts accepting connections on the Unix socket and dispatches
// requests to registered action handlers. Blocks until ctx is
// cancelled, then stops accepting and waits for active handlers.
//
// Any stale socket file at the configured path is removed before
// listening, and the socket file is removed on return.
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("admin socket listening", "path", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// readTimeout is how long we wait for the client to send its request.
const readTimeout = 30 * time.Second

// writeTimeout is how long we wait for the response to be written.
const writeTimeout = 10 * time.Second

// maxRequestSize is the maximum size of a single CBOR request. Admin
// requests carry at most an id52, an alias, and a URL.
const maxRequestSize = 64 * 1024

// handleConnection processes one request-response cycle.
func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	// CBOR is self-delimiting so no framing protocol is needed.
	// LimitReader keeps a misbehaving client from exhausting memory.
	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			// Client connected but sent nothing.
			return
		}
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}

	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if header.Action == "" {
		s.writeError(conn, "missing required field: action")
		return
	}

	handler, exists := s.handlers[header.Action]
	if !exists {
		s.writeError(conn, fmt.Sprintf("unknown action %q", header.Action))
		return
	}

	result, err := handler(ctx, []byte(raw))
	if err != nil {
		s.logger.Debug("action failed",
			"action", header.Action,
			"error", err,
		)
		s.writeError(conn, err.Error())
		return
	}

	s.writeSuccess(conn, result)
}

// writeError sends a failure response: {ok: false, error: "..."}.
func (s *SocketServer) writeError(conn net.Conn, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(Response{
		OK:    false,
		Error: message,
	}); err != nil {
		s.logger.Debug("failed to write error response", "error", err)
	}
}

// writeSuccess sends a success response, marshaling result into the
// "data" field when non-nil.
func (s *SocketServer) writeSuccess(conn net.Conn, result any) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	response := Response{OK: true}

	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			s.writeError(conn, fmt.Sprintf("internal: marshaling response: %v", err))
			return
		}
		response.Data = data
	}

	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("failed to write success response", "error", err)
	}
}

// Call performs one client-side request-response cycle against an
// admin socket: connect, send the CBOR request, decode the response.
func Call(socketPath string, request any) (*Response, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", socketPath, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(readTimeout))
	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &response, nil
}
