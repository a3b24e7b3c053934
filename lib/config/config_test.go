// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	if err := DefaultServe().Validate(); err != nil {
		t.Fatalf("default settings invalid: %v", err)
	}
}

func TestLoadServeOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.yaml")
	content := "listen: \"127.0.0.1:9100\"\nlog_level: debug\nshutdown_timeout: 30s\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing settings: %v", err)
	}

	settings, err := LoadServe(path)
	if err != nil {
		t.Fatalf("LoadServe: %v", err)
	}
	if settings.Listen != "127.0.0.1:9100" {
		t.Errorf("Listen = %q", settings.Listen)
	}
	if settings.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v", settings.ShutdownTimeout)
	}
	// Unset fields keep their defaults.
	if settings.AdminSocket != "admin.sock" {
		t.Errorf("AdminSocket = %q, want default", settings.AdminSocket)
	}

	level, err := settings.SlogLevel()
	if err != nil {
		t.Fatalf("SlogLevel: %v", err)
	}
	if level != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level)
	}
}

func TestLoadServeRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.yaml")
	if err := os.WriteFile(path, []byte("log_level: loud\nlisten: \"\"\n"), 0644); err != nil {
		t.Fatalf("writing settings: %v", err)
	}
	if _, err := LoadServe(path); err == nil {
		t.Fatalf("LoadServe accepted invalid settings")
	}

	if _, err := LoadServe(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("LoadServe succeeded on a missing file")
	}
}
