// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/kosha-foundation/kosha/lib/identity"
	"github.com/kosha-foundation/kosha/lib/kosha"
	"github.com/kosha-foundation/kosha/lib/policy"
	"github.com/kosha-foundation/kosha/lib/trust"
	"github.com/kosha-foundation/kosha/lib/wire"
)

var (
	// ErrAlreadyExists is returned by Init when the home directory
	// already holds a hub key. Re-initializing would silently discard
	// an identity, so it is always an explicit error.
	ErrAlreadyExists = errors.New("hub: already initialized")

	// ErrNotInitialized is returned by Load when the home directory
	// holds no hub key.
	ErrNotInitialized = errors.New("hub: not initialized")
)

const (
	keyFile    = "hub.key"
	configFile = "config.json"
	koshasDir  = "koshas"

	// rootInstance is created on init and hosts the trust files under
	// its files/ tree, so trust state is itself versioned, readable
	// data.
	rootInstance = "root"
)

// Config is the durable hub metadata persisted as config.json in the
// home directory. The key itself lives separately in hub.key.
type Config struct {
	HubID52   string    `json:"hub_id52"`
	CreatedAt time.Time `json:"created_at"`
}

// Handler serves commands for one application. Registered handlers own
// payload interpretation; the hub only routes verified, authorized
// requests to them.
type Handler interface {
	HandleCommand(command wire.Command, payload json.RawMessage) (json.RawMessage, error)
}

// Hub is a running hub node: an Ed25519 identity, a trust store, an
// access policy, and a set of named handler instances per application.
type Hub struct {
	home   string
	key    identity.KeyPair
	id     identity.ID52
	config Config
	trust  *trust.Store
	policy policy.Policy
	logger *slog.Logger

	// client performs outbound forwarding to peer hubs.
	client *http.Client

	mu       sync.RWMutex
	handlers map[wire.App]map[string]Handler
}

// Init creates a new hub in home: generates the keypair, writes hub.key
// and config.json, and creates the root instance with an empty trust
// store. Returns ErrAlreadyExists if home already holds a hub key.
func Init(home string, logger *slog.Logger) (*Hub, error) {
	keyPath := filepath.Join(home, keyFile)
	if _, err := os.Stat(keyPath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, keyPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("hub: checking %s: %w", keyPath, err)
	}

	if err := os.MkdirAll(home, 0755); err != nil {
		return nil, fmt.Errorf("hub: creating home: %w", err)
	}

	key, err := identity.Generate()
	if err != nil {
		return nil, fmt.Errorf("hub: generating identity: %w", err)
	}
	if err := identity.SaveKeyFile(keyPath, key); err != nil {
		return nil, err
	}

	config := Config{
		HubID52:   key.ID52().String(),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("hub: encoding config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(home, configFile), append(data, '\n'), 0644); err != nil {
		return nil, fmt.Errorf("hub: writing config: %w", err)
	}

	hub, err := open(home, key, config, logger)
	if err != nil {
		return nil, err
	}
	hub.logger.Info("hub initialized", "home", home, "hub", hub.id)
	return hub, nil
}

// Load opens an existing hub from home. Returns ErrNotInitialized if
// no hub key is present.
func Load(home string, logger *slog.Logger) (*Hub, error) {
	keyPath := filepath.Join(home, keyFile)
	if _, err := os.Stat(keyPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, home)
	} else if err != nil {
		return nil, fmt.Errorf("hub: checking %s: %w", keyPath, err)
	}

	key, err := identity.LoadKeyFile(keyPath)
	if err != nil {
		return nil, err
	}

	var config Config
	data, err := os.ReadFile(filepath.Join(home, configFile))
	if err != nil {
		return nil, fmt.Errorf("hub: reading config: %w", err)
	}
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("hub: decoding config: %w", err)
	}
	if config.HubID52 != key.ID52().String() {
		return nil, fmt.Errorf("hub: config identity %s does not match key %s", config.HubID52, key.ID52())
	}

	return open(home, key, config, logger)
}

// LoadOrInit loads the hub at home, initializing it first if no key
// exists yet.
func LoadOrInit(home string, logger *slog.Logger) (*Hub, error) {
	hub, err := Load(home, logger)
	if errors.Is(err, ErrNotInitialized) {
		return Init(home, logger)
	}
	return hub, err
}

func open(home string, key identity.KeyPair, config Config, logger *slog.Logger) (*Hub, error) {
	if logger == nil {
		logger = slog.Default()
	}
	id := key.ID52()
	logger = logger.With("hub", id)

	trustDir := filepath.Join(home, koshasDir, rootInstance, "files")
	store, err := trust.Load(trustDir, logger)
	if err != nil {
		return nil, err
	}

	return &Hub{
		home:     home,
		key:      key,
		id:       id,
		config:   config,
		trust:    store,
		policy:   policy.NewTrustPolicy(store),
		logger:   logger,
		client:   &http.Client{Timeout: 30 * time.Second},
		handlers: map[wire.App]map[string]Handler{},
	}, nil
}

// ID52 returns the hub's public identity.
func (h *Hub) ID52() identity.ID52 { return h.id }

// Trust returns the hub's trust store, for administrative mutation.
func (h *Hub) Trust() *trust.Store { return h.trust }

// SetPolicy replaces the access policy. The default is the built-in
// trust-store rule set; tests and embedders may substitute their own.
// Not safe to call once requests are being served.
func (h *Hub) SetPolicy(p policy.Policy) { h.policy = p }

// Register attaches a handler as the named instance of an app.
// Registering the same (app, instance) twice replaces the handler.
func (h *Hub) Register(app wire.App, instance string, handler Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	instances := h.handlers[app]
	if instances == nil {
		instances = map[string]Handler{}
		h.handlers[app] = instances
	}
	instances[instance] = handler
}

// InstanceDir returns the on-disk directory for an instance of the
// kosha app under this hub's home.
func (h *Hub) InstanceDir(instance string) string {
	return filepath.Join(h.home, koshasDir, instance)
}

// Instances lists the kosha instance names present on disk, sorted.
func (h *Hub) Instances() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(h.home, koshasDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("hub: listing instances: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// OpenKoshas opens every instance directory under koshas/ and
// registers it as an instance of the kosha app. New instances are
// created by creating their directory and calling this again (or
// OpenKosha for a single one).
func (h *Hub) OpenKoshas() error {
	names, err := h.Instances()
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := h.OpenKosha(name); err != nil {
			return err
		}
	}
	return nil
}

// OpenKosha opens (creating if absent) a single named kosha instance
// and registers it.
func (h *Hub) OpenKosha(instance string) error {
	engine, err := kosha.Open(h.InstanceDir(instance))
	if err != nil {
		return fmt.Errorf("hub: opening instance %s: %w", instance, err)
	}
	h.Register(wire.AppKosha, instance, engine)
	return nil
}

func (h *Hub) lookup(app wire.App, instance string) (Handler, bool, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	instances, appKnown := h.handlers[app]
	if !appKnown {
		return nil, false, false
	}
	handler, ok := instances[instance]
	return handler, true, ok
}
