// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewLogger creates a structured logger for CLI commands. When stderr
// is a terminal, uses slog.TextHandler for human-readable output. When
// stderr is piped or redirected (CI, scripts, integration tests), uses
// slog.JSONHandler so the output matches a serving hub's log format.
func NewLogger(level slog.Level) *slog.Logger {
	var handler slog.Handler
	options := &slog.HandlerOptions{Level: level}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}
