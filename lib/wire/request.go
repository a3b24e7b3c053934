// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/json"
	"fmt"
)

// App identifies the application a request routes to. The dispatch
// table is static; AppKosha is the only registered application in this
// protocol revision.
type App string

// AppKosha is the versioned-file/KV resource engine.
const AppKosha App = "kosha"

// Command is one of the closed set of kosha operations. Requests carry
// the command as a plain string; the router parses it with ParseCommand
// so an unknown command is a single explicit error at the dispatch
// boundary rather than a scattered string comparison.
type Command string

const (
	CmdReadFile    Command = "read_file"
	CmdWriteFile   Command = "write_file"
	CmdListDir     Command = "list_dir"
	CmdGetVersions Command = "get_versions"
	CmdReadVersion Command = "read_version"
	CmdRename      Command = "rename"
	CmdDelete      Command = "delete"
	CmdKVGet       Command = "kv_get"
	CmdKVSet       Command = "kv_set"
	CmdKVDelete    Command = "kv_delete"
)

// commands is the full command set, used by ParseCommand.
var commands = map[Command]bool{
	CmdReadFile:    true,
	CmdWriteFile:   true,
	CmdListDir:     true,
	CmdGetVersions: true,
	CmdReadVersion: true,
	CmdRename:      true,
	CmdDelete:      true,
	CmdKVGet:       true,
	CmdKVSet:       true,
	CmdKVDelete:    true,
}

// ParseCommand validates a raw command string against the closed
// command set.
func ParseCommand(raw string) (Command, error) {
	command := Command(raw)
	if !commands[command] {
		return "", fmt.Errorf("unknown command %q", raw)
	}
	return command, nil
}

// selfTarget is the wire encoding of a request addressed to the spoke's
// own paired hub.
const selfTarget = "self"

// TargetHub addresses a request either at the receiving hub itself
// ("self") or at a peer hub known to the receiving hub under a local
// alias. The zero value is the self target.
type TargetHub struct {
	alias string
}

// TargetSelf addresses the spoke's own hub.
func TargetSelf() TargetHub { return TargetHub{} }

// TargetAlias addresses the peer hub the receiving hub knows under
// alias. The alias is a local nickname, resolved against the receiving
// hub's trust list.
func TargetAlias(alias string) TargetHub { return TargetHub{alias: alias} }

// IsSelf reports whether the target is the receiving hub itself.
func (t TargetHub) IsSelf() bool { return t.alias == "" }

// Alias returns the peer hub alias. Empty for the self target.
func (t TargetHub) Alias() string { return t.alias }

// String returns the wire encoding: "self" or the alias.
func (t TargetHub) String() string {
	if t.alias == "" {
		return selfTarget
	}
	return t.alias
}

// MarshalText implements encoding.TextMarshaler.
func (t TargetHub) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. "self" (and the
// empty string) decode to the self target; anything else is an alias.
func (t *TargetHub) UnmarshalText(data []byte) error {
	if string(data) == selfTarget {
		*t = TargetHub{}
		return nil
	}
	*t = TargetHub{alias: string(data)}
	return nil
}

// Request is the routed operation a spoke asks of a hub: run command
// against the named app instance, with a command-specific payload.
//
// Spoke is set only on cross-hub forwarded requests: the forwarding hub
// records which of its own spokes originated the request. The field is
// informational until the access evaluator has decided to trust the
// forwarding hub — a hub never derives authority from it directly.
type Request struct {
	TargetHub TargetHub       `json:"target_hub"`
	App       string          `json:"app"`
	Instance  string          `json:"instance"`
	Command   string          `json:"command"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Spoke     string          `json:"spoke,omitempty"`
}
