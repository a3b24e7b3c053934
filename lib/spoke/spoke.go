// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package spoke

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/kosha-foundation/kosha/lib/identity"
)

var (
	// ErrAlreadyExists is returned by Init when the home directory
	// already holds a spoke key.
	ErrAlreadyExists = errors.New("spoke: already initialized")

	// ErrNotInitialized is returned by Load when the home directory
	// holds no spoke key.
	ErrNotInitialized = errors.New("spoke: not initialized")
)

const (
	keyFile    = "spoke.key"
	configFile = "config.json"
)

// Config is the durable pairing record persisted as config.json in the
// spoke's home directory. A spoke pairs with exactly one hub; that
// hub forwards requests for resources elsewhere.
type Config struct {
	SpokeID52 string    `json:"spoke_id52"`
	HubID52   string    `json:"hub_id52"`
	HubURL    string    `json:"hub_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Spoke is a loaded spoke identity and its pairing.
type Spoke struct {
	home   string
	key    identity.KeyPair
	config Config
	hubID  identity.ID52
}

// Init creates a new spoke in home, paired with the given hub. The hub
// identity is pinned at pairing time; every future response must be
// signed by it. Returns ErrAlreadyExists if home already holds a key.
func Init(home string, hubID identity.ID52, hubURL string) (*Spoke, error) {
	keyPath := filepath.Join(home, keyFile)
	if _, err := os.Stat(keyPath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, keyPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("spoke: checking %s: %w", keyPath, err)
	}
	if hubID.IsZero() {
		return nil, fmt.Errorf("spoke: pairing requires a hub identity")
	}
	if hubURL == "" {
		return nil, fmt.Errorf("spoke: pairing requires a hub url")
	}

	if err := os.MkdirAll(home, 0755); err != nil {
		return nil, fmt.Errorf("spoke: creating home: %w", err)
	}

	key, err := identity.Generate()
	if err != nil {
		return nil, fmt.Errorf("spoke: generating identity: %w", err)
	}
	if err := identity.SaveKeyFile(keyPath, key); err != nil {
		return nil, err
	}

	config := Config{
		SpokeID52: key.ID52().String(),
		HubID52:   hubID.String(),
		HubURL:    hubURL,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("spoke: encoding config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(home, configFile), append(data, '\n'), 0644); err != nil {
		return nil, fmt.Errorf("spoke: writing config: %w", err)
	}

	return &Spoke{home: home, key: key, config: config, hubID: hubID}, nil
}

// Load opens an existing spoke from home. Returns ErrNotInitialized if
// no spoke key is present.
func Load(home string) (*Spoke, error) {
	keyPath := filepath.Join(home, keyFile)
	if _, err := os.Stat(keyPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, home)
	} else if err != nil {
		return nil, fmt.Errorf("spoke: checking %s: %w", keyPath, err)
	}

	key, err := identity.LoadKeyFile(keyPath)
	if err != nil {
		return nil, err
	}

	var config Config
	data, err := os.ReadFile(filepath.Join(home, configFile))
	if err != nil {
		return nil, fmt.Errorf("spoke: reading config: %w", err)
	}
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("spoke: decoding config: %w", err)
	}
	if config.SpokeID52 != key.ID52().String() {
		return nil, fmt.Errorf("spoke: config identity %s does not match key %s", config.SpokeID52, key.ID52())
	}
	hubID, err := identity.ParseID52(config.HubID52)
	if err != nil {
		return nil, fmt.Errorf("spoke: config hub identity: %w", err)
	}

	return &Spoke{home: home, key: key, config: config, hubID: hubID}, nil
}

// ID52 returns the spoke's public identity.
func (s *Spoke) ID52() identity.ID52 { return s.key.ID52() }

// Hub returns the paired hub's pinned identity.
func (s *Spoke) Hub() identity.ID52 { return s.hubID }

// Client returns a client bound to the paired hub. Passing a nil
// httpClient or logger uses defaults.
func (s *Spoke) Client(httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		key:    s.key,
		hubID:  s.hubID,
		hubURL: s.config.HubURL,
		http:   httpClient,
		logger: logger.With("spoke", s.key.ID52()),
	}
}
