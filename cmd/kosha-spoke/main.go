// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

// Command kosha-spoke is the client binary: pair with a hub, then read
// and write files and key-value data on its kosha instances. Resources
// on other hubs are addressed with --hub <alias>; the paired hub
// forwards those requests.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/kosha-foundation/kosha/cmd/internal/cli"
	"github.com/kosha-foundation/kosha/lib/identity"
	"github.com/kosha-foundation/kosha/lib/spoke"
)

type spokeParams struct {
	home string
	hub  string
	json bool
}

func (p *spokeParams) register(flags *pflag.FlagSet) {
	flags.StringVar(&p.home, "home", defaultHome(), "spoke home directory")
	flags.StringVar(&p.hub, "hub", "", "peer hub alias to address (default: the paired hub itself)")
	flags.BoolVar(&p.json, "json", false, "output as JSON")
}

// client loads the spoke and builds a client, derived for the peer
// alias when --hub is set.
func (p *spokeParams) client() (*spoke.Client, error) {
	s, err := spoke.Load(p.home)
	if err != nil {
		return nil, err
	}
	client := s.Client(nil, cli.NewLogger(slog.LevelWarn))
	if p.hub != "" {
		client = client.ForHub(p.hub)
	}
	return client, nil
}

func (p *spokeParams) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func defaultHome() string {
	if home := os.Getenv("KOSHA_SPOKE_HOME"); home != "" {
		return home
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return ".kosha-spoke"
	}
	return filepath.Join(userHome, ".kosha", "spoke")
}

func main() {
	root := &cli.Command{
		Name:    "kosha-spoke",
		Summary: "Client for a kosha hub.",
		Description: "kosha-spoke pairs a client identity with one hub and issues\n" +
			"signed file and key-value commands against its instances.",
		Subcommands: []*cli.Command{
			initCommand(),
			whoamiCommand(),
			readCommand(),
			writeCommand(),
			lsCommand(),
			versionsCommand(),
			readVersionCommand(),
			renameCommand(),
			deleteCommand(),
			kvCommand(),
		},
	}
	cli.Main(root)
}

func initCommand() *cli.Command {
	params := &spokeParams{}
	return &cli.Command{
		Name:    "init",
		Summary: "Create a spoke identity paired with a hub.",
		Usage:   "kosha-spoke init <hub-id52> <hub-url> [flags]",
		Examples: []cli.Example{
			{Description: "Pair with a hub", Command: "kosha-spoke init 9fj2...a1b0 https://hub.example:7038"},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("init", pflag.ContinueOnError)
			params.register(flags)
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected <hub-id52> <hub-url> arguments")
			}
			hubID, err := identity.ParseID52(args[0])
			if err != nil {
				return err
			}
			s, err := spoke.Init(params.home, hubID, args[1])
			if err != nil {
				return err
			}
			fmt.Printf("initialized spoke %s in %s\n", s.ID52(), params.home)
			fmt.Printf("authorize it on the hub with: kosha-hub spoke add %s\n", s.ID52())
			return nil
		},
	}
}

func whoamiCommand() *cli.Command {
	params := &spokeParams{}
	return &cli.Command{
		Name:    "whoami",
		Summary: "Show the spoke identity and its pairing.",
		Usage:   "kosha-spoke whoami [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("whoami", pflag.ContinueOnError)
			params.register(flags)
			return flags
		},
		Run: func(args []string) error {
			s, err := spoke.Load(params.home)
			if err != nil {
				return err
			}
			if params.json {
				return cli.WriteJSON(map[string]string{
					"spoke_id52": s.ID52().String(),
					"hub_id52":   s.Hub().String(),
				})
			}
			fmt.Printf("spoke: %s\n", s.ID52())
			fmt.Printf("hub:   %s\n", s.Hub())
			return nil
		},
	}
}

func readCommand() *cli.Command {
	params := &spokeParams{}
	return &cli.Command{
		Name:    "read",
		Summary: "Print a file's content.",
		Usage:   "kosha-spoke read <instance> <path> [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("read", pflag.ContinueOnError)
			params.register(flags)
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected <instance> <path> arguments")
			}
			client, err := params.client()
			if err != nil {
				return err
			}
			ctx, cancel := params.context()
			defer cancel()
			content, err := client.ReadFile(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(content)
			return err
		},
	}
}

func writeCommand() *cli.Command {
	params := &spokeParams{}
	return &cli.Command{
		Name:    "write",
		Summary: "Write stdin (or a local file) to a path.",
		Usage:   "kosha-spoke write <instance> <path> [local-file] [flags]",
		Examples: []cli.Example{
			{Description: "Write from stdin", Command: "echo 'Hello, World!' | kosha-spoke write docs hello.txt"},
			{Description: "Upload a local file", Command: "kosha-spoke write docs notes.md ./notes.md"},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("write", pflag.ContinueOnError)
			params.register(flags)
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 2 && len(args) != 3 {
				return fmt.Errorf("expected <instance> <path> [local-file] arguments")
			}
			var content []byte
			var err error
			if len(args) == 3 {
				content, err = os.ReadFile(args[2])
			} else {
				content, err = readAllStdin()
			}
			if err != nil {
				return err
			}
			client, err := params.client()
			if err != nil {
				return err
			}
			ctx, cancel := params.context()
			defer cancel()
			return client.WriteFile(ctx, args[0], args[1], content)
		},
	}
}

func lsCommand() *cli.Command {
	params := &spokeParams{}
	return &cli.Command{
		Name:    "ls",
		Summary: "List a directory.",
		Usage:   "kosha-spoke ls <instance> [path] [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("ls", pflag.ContinueOnError)
			params.register(flags)
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 && len(args) != 2 {
				return fmt.Errorf("expected <instance> [path] arguments")
			}
			path := ""
			if len(args) == 2 {
				path = args[1]
			}
			client, err := params.client()
			if err != nil {
				return err
			}
			ctx, cancel := params.context()
			defer cancel()
			entries, err := client.ListDir(ctx, args[0], path)
			if err != nil {
				return err
			}
			if params.json {
				return cli.WriteJSON(entries)
			}
			for _, entry := range entries {
				if entry.Dir {
					fmt.Printf("%s/\n", entry.Name)
				} else {
					fmt.Printf("%s\t%d\n", entry.Name, entry.Size)
				}
			}
			return nil
		},
	}
}

func versionsCommand() *cli.Command {
	params := &spokeParams{}
	return &cli.Command{
		Name:    "versions",
		Summary: "List preserved versions of a file, newest first.",
		Usage:   "kosha-spoke versions <instance> <path> [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("versions", pflag.ContinueOnError)
			params.register(flags)
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected <instance> <path> arguments")
			}
			client, err := params.client()
			if err != nil {
				return err
			}
			ctx, cancel := params.context()
			defer cancel()
			versions, err := client.Versions(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if params.json {
				return cli.WriteJSON(versions)
			}
			for _, version := range versions {
				fmt.Printf("%s\t%s\n", version.Version, version.Created.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func readVersionCommand() *cli.Command {
	params := &spokeParams{}
	return &cli.Command{
		Name:    "read-version",
		Summary: "Print a preserved version of a file.",
		Usage:   "kosha-spoke read-version <instance> <path> <version> [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("read-version", pflag.ContinueOnError)
			params.register(flags)
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 3 {
				return fmt.Errorf("expected <instance> <path> <version> arguments")
			}
			client, err := params.client()
			if err != nil {
				return err
			}
			ctx, cancel := params.context()
			defer cancel()
			content, err := client.ReadVersion(ctx, args[0], args[1], args[2])
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(content)
			return err
		},
	}
}

func renameCommand() *cli.Command {
	params := &spokeParams{}
	return &cli.Command{
		Name:    "rename",
		Summary: "Move a file within an instance.",
		Usage:   "kosha-spoke rename <instance> <from> <to> [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("rename", pflag.ContinueOnError)
			params.register(flags)
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 3 {
				return fmt.Errorf("expected <instance> <from> <to> arguments")
			}
			client, err := params.client()
			if err != nil {
				return err
			}
			ctx, cancel := params.context()
			defer cancel()
			return client.Rename(ctx, args[0], args[1], args[2])
		},
	}
}

func deleteCommand() *cli.Command {
	params := &spokeParams{}
	return &cli.Command{
		Name:    "delete",
		Summary: "Delete a file.",
		Usage:   "kosha-spoke delete <instance> <path> [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("delete", pflag.ContinueOnError)
			params.register(flags)
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected <instance> <path> arguments")
			}
			client, err := params.client()
			if err != nil {
				return err
			}
			ctx, cancel := params.context()
			defer cancel()
			return client.Delete(ctx, args[0], args[1])
		},
	}
}

func kvCommand() *cli.Command {
	return &cli.Command{
		Name:    "kv",
		Summary: "Key-value operations on an instance.",
		Subcommands: []*cli.Command{
			kvGetCommand(),
			kvSetCommand(),
			kvDeleteCommand(),
		},
	}
}

func kvGetCommand() *cli.Command {
	params := &spokeParams{}
	return &cli.Command{
		Name:    "get",
		Summary: "Print the JSON value stored under a key.",
		Usage:   "kosha-spoke kv get <instance> <key> [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("kv get", pflag.ContinueOnError)
			params.register(flags)
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected <instance> <key> arguments")
			}
			client, err := params.client()
			if err != nil {
				return err
			}
			ctx, cancel := params.context()
			defer cancel()
			value, err := client.KVGet(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", value)
			return nil
		},
	}
}

func kvSetCommand() *cli.Command {
	params := &spokeParams{}
	return &cli.Command{
		Name:    "set",
		Summary: "Store a JSON value under a key.",
		Usage:   "kosha-spoke kv set <instance> <key> <json-value> [flags]",
		Examples: []cli.Example{
			{Description: "Store a JSON object", Command: `kosha-spoke kv set docs settings '{"theme":"dark"}'`},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("kv set", pflag.ContinueOnError)
			params.register(flags)
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 3 {
				return fmt.Errorf("expected <instance> <key> <json-value> arguments")
			}
			client, err := params.client()
			if err != nil {
				return err
			}
			ctx, cancel := params.context()
			defer cancel()
			return client.KVSet(ctx, args[0], args[1], []byte(args[2]))
		},
	}
}

func kvDeleteCommand() *cli.Command {
	params := &spokeParams{}
	return &cli.Command{
		Name:    "delete",
		Summary: "Remove a key.",
		Usage:   "kosha-spoke kv delete <instance> <key> [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("kv delete", pflag.ContinueOnError)
			params.register(flags)
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected <instance> <key> arguments")
			}
			client, err := params.client()
			if err != nil {
				return err
			}
			ctx, cancel := params.context()
			defer cancel()
			return client.KVDelete(ctx, args[0], args[1])
		},
	}
}

func readAllStdin() ([]byte, error) {
	content, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return content, nil
}
