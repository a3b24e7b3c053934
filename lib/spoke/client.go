// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package spoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kosha-foundation/kosha/lib/envelope"
	"github.com/kosha-foundation/kosha/lib/identity"
	"github.com/kosha-foundation/kosha/lib/kosha"
	"github.com/kosha-foundation/kosha/lib/wire"
)

// maxResponseSize caps the response body read from the hub.
const maxResponseSize = 8 << 20

// Client issues signed kosha commands to the paired hub. Methods are
// safe for concurrent use. The zero value is not usable; obtain a
// Client from Spoke.Client.
type Client struct {
	key    identity.KeyPair
	hubID  identity.ID52
	hubURL string
	target wire.TargetHub
	http   *http.Client
	logger *slog.Logger
}

// ForHub returns a derived client whose requests address a resource on
// the peer hub the paired hub knows under alias. The paired hub
// forwards them; the transport and response pinning are unchanged.
func (c *Client) ForHub(alias string) *Client {
	derived := *c
	derived.target = wire.TargetAlias(alias)
	return &derived
}

// do signs and posts one request, then verifies the response envelope
// against the pinned hub identity before decoding the result into out.
// A failure response becomes the returned *wire.Error.
func (c *Client) do(ctx context.Context, instance string, command wire.Command, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("spoke: encoding payload: %w", err)
	}

	request := wire.Request{
		TargetHub: c.target,
		App:       string(wire.AppKosha),
		Instance:  instance,
		Command:   string(command),
		Payload:   body,
	}
	sealed, err := envelope.Seal(envelope.RoleSender, c.key, request)
	if err != nil {
		return fmt.Errorf("spoke: sealing request: %w", err)
	}
	encoded, err := sealed.Encode()
	if err != nil {
		return fmt.Errorf("spoke: encoding envelope: %w", err)
	}

	url := strings.TrimSuffix(c.hubURL, "/") + "/v1/route"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("spoke: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("spoke: posting to hub: %w", err)
	}
	defer httpResp.Body.Close()

	reply, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("spoke: reading response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("spoke: hub returned status %d", httpResp.StatusCode)
	}

	replyEnv, err := envelope.Decode(reply)
	if err != nil {
		return fmt.Errorf("spoke: decoding response envelope: %w", err)
	}

	var response wire.Response
	if err := replyEnv.OpenFrom(c.hubID, &response); err != nil {
		return fmt.Errorf("spoke: response verification: %w", err)
	}

	if !response.OK {
		if response.Error == nil {
			return fmt.Errorf("spoke: hub reported failure without an error")
		}
		return response.Error
	}
	if out != nil && len(response.Data) > 0 {
		if err := json.Unmarshal(response.Data, out); err != nil {
			return fmt.Errorf("spoke: decoding result: %w", err)
		}
	}
	return nil
}

// ReadFile returns the current content of the file at path in the
// named instance.
func (c *Client) ReadFile(ctx context.Context, instance, path string) ([]byte, error) {
	var result struct {
		Content []byte `json:"content"`
	}
	err := c.do(ctx, instance, wire.CmdReadFile, map[string]string{"path": path}, &result)
	if err != nil {
		return nil, err
	}
	return result.Content, nil
}

// WriteFile writes content to path, creating parent directories as
// needed. The written content is recorded in the version history
// before the live file changes.
func (c *Client) WriteFile(ctx context.Context, instance, path string, content []byte) error {
	payload := map[string]any{"path": path, "content": content}
	return c.do(ctx, instance, wire.CmdWriteFile, payload, nil)
}

// ListDir lists the immediate entries of the directory at path. An
// empty path lists the instance root.
func (c *Client) ListDir(ctx context.Context, instance, path string) ([]kosha.DirEntry, error) {
	var result struct {
		Entries []kosha.DirEntry `json:"entries"`
	}
	err := c.do(ctx, instance, wire.CmdListDir, map[string]string{"path": path}, &result)
	if err != nil {
		return nil, err
	}
	return result.Entries, nil
}

// Versions lists the preserved versions of the file at path, newest
// first.
func (c *Client) Versions(ctx context.Context, instance, path string) ([]kosha.Version, error) {
	var result struct {
		Entries []kosha.Version `json:"entries"`
	}
	err := c.do(ctx, instance, wire.CmdGetVersions, map[string]string{"path": path}, &result)
	if err != nil {
		return nil, err
	}
	return result.Entries, nil
}

// ReadVersion returns the preserved content of path at the named
// version.
func (c *Client) ReadVersion(ctx context.Context, instance, path, version string) ([]byte, error) {
	var result struct {
		Content []byte `json:"content"`
	}
	payload := map[string]string{"path": path, "version": version}
	err := c.do(ctx, instance, wire.CmdReadVersion, payload, &result)
	if err != nil {
		return nil, err
	}
	return result.Content, nil
}

// Rename moves a file within the instance.
func (c *Client) Rename(ctx context.Context, instance, from, to string) error {
	return c.do(ctx, instance, wire.CmdRename, map[string]string{"from": from, "to": to}, nil)
}

// Delete removes the file at path.
func (c *Client) Delete(ctx context.Context, instance, path string) error {
	return c.do(ctx, instance, wire.CmdDelete, map[string]string{"path": path}, nil)
}

// KVGet returns the JSON value stored under key, or JSON null when the
// key is absent.
func (c *Client) KVGet(ctx context.Context, instance, key string) (json.RawMessage, error) {
	var result struct {
		Value json.RawMessage `json:"value"`
	}
	err := c.do(ctx, instance, wire.CmdKVGet, map[string]string{"key": key}, &result)
	if err != nil {
		return nil, err
	}
	return result.Value, nil
}

// KVSet stores a JSON value under key, replacing any previous value.
func (c *Client) KVSet(ctx context.Context, instance, key string, value json.RawMessage) error {
	payload := map[string]any{"key": key, "value": value}
	return c.do(ctx, instance, wire.CmdKVSet, payload, nil)
}

// KVDelete removes key. Deleting an absent key is not an error.
func (c *Client) KVDelete(ctx context.Context, instance, key string) error {
	return c.do(ctx, instance, wire.CmdKVDelete, map[string]string{"key": key}, nil)
}
