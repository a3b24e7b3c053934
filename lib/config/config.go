// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads operational settings for a serving hub.
//
// Identity and trust files are fixed by the protocol and live under the
// hub's home directory; this package covers only the operator-tunable
// serve settings. The settings file is optional — a hub serves with
// defaults when none is given — and there is exactly one file, no
// discovery or overrides, so the effective configuration is auditable.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Serve is the operational configuration for `kosha-hub serve`.
type Serve struct {
	// Listen is the TCP address for the spoke-facing HTTP endpoint.
	Listen string `yaml:"listen"`

	// AdminSocket is the Unix socket path for the admin protocol.
	// Relative paths resolve under the hub's home directory.
	AdminSocket string `yaml:"admin_socket"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxRequestBytes caps the size of one inbound envelope.
	MaxRequestBytes int64 `yaml:"max_request_bytes"`
}

// DefaultServe returns the settings used when no file is given.
func DefaultServe() Serve {
	return Serve{
		Listen:          ":7038",
		AdminSocket:     "admin.sock",
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,
		MaxRequestBytes: 4 * 1024 * 1024,
	}
}

// LoadServe reads a YAML settings file, layered over the defaults.
func LoadServe(path string) (Serve, error) {
	settings := DefaultServe()

	data, err := os.ReadFile(path)
	if err != nil {
		return Serve{}, fmt.Errorf("reading settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Serve{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := settings.Validate(); err != nil {
		return Serve{}, fmt.Errorf("%s: %w", path, err)
	}
	return settings, nil
}

// Validate checks the settings for errors.
func (s Serve) Validate() error {
	var errs []error

	if s.Listen == "" {
		errs = append(errs, fmt.Errorf("listen is required"))
	}
	if s.AdminSocket == "" {
		errs = append(errs, fmt.Errorf("admin_socket is required"))
	}
	if _, err := s.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if s.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown_timeout must be positive"))
	}
	if s.MaxRequestBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_request_bytes must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// SlogLevel maps the configured log level onto slog.
func (s Serve) SlogLevel() (slog.Level, error) {
	switch s.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
}
