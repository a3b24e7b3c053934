// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/kosha-foundation/kosha/cmd/internal/cli"
	"github.com/kosha-foundation/kosha/lib/codec"
	"github.com/kosha-foundation/kosha/lib/hub"
	"github.com/kosha-foundation/kosha/lib/service"
)

// adminCall routes an admin request: through the admin socket when a
// hub is serving, directly against the on-disk store otherwise. Either
// way the mutation lands in the same trust files.
func adminCall[T any](params *globalParams, request hub.AdminTrustRequest) (T, error) {
	var zero T

	socket := params.socketPath()
	if _, err := os.Stat(socket); err == nil {
		response, err := service.Call(socket, request)
		if err == nil {
			if !response.OK {
				return zero, errors.New(response.Error)
			}
			if len(response.Data) == 0 {
				return zero, nil
			}
			var out T
			if err := codec.Unmarshal(response.Data, &out); err != nil {
				return zero, fmt.Errorf("decoding response: %w", err)
			}
			return out, nil
		}
		// A socket file with nothing listening is stale; fall through
		// to the direct store.
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := hub.Load(params.home, quiet)
	if err != nil {
		return zero, err
	}
	result, err := h.AdminAction(context.Background(), request)
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	out, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected result type %T", result)
	}
	return out, nil
}

func spokeCommand() *cli.Command {
	return &cli.Command{
		Name:    "spoke",
		Summary: "Manage authorized spokes.",
		Subcommands: []*cli.Command{
			spokeAddCommand(),
			spokeRemoveCommand(),
			spokeListCommand(),
			spokePendingCommand(),
		},
	}
}

func spokeAddCommand() *cli.Command {
	params := &globalParams{}
	var alias string
	return &cli.Command{
		Name:    "add",
		Summary: "Authorize a spoke by id52.",
		Usage:   "kosha-hub spoke add <id52> [flags]",
		Examples: []cli.Example{
			{Description: "Authorize a spoke with a display alias", Command: "kosha-hub spoke add v64t...i930 --alias laptop"},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("spoke add", pflag.ContinueOnError)
			params.register(flags)
			flags.StringVar(&alias, "alias", "", "display alias for the spoke")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one id52 argument")
			}
			request := hub.AdminTrustRequest{Action: "spoke-add", ID52: args[0], Alias: alias}
			if _, err := adminCall[struct{}](params, request); err != nil {
				return err
			}
			fmt.Printf("authorized spoke %s\n", args[0])
			return nil
		},
	}
}

func spokeRemoveCommand() *cli.Command {
	params := &globalParams{}
	return &cli.Command{
		Name:    "remove",
		Summary: "Remove an authorized spoke.",
		Usage:   "kosha-hub spoke remove <id52> [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("spoke remove", pflag.ContinueOnError)
			params.register(flags)
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one id52 argument")
			}
			request := hub.AdminTrustRequest{Action: "spoke-remove", ID52: args[0]}
			if _, err := adminCall[struct{}](params, request); err != nil {
				return err
			}
			fmt.Printf("removed spoke %s\n", args[0])
			return nil
		},
	}
}

func spokeListCommand() *cli.Command {
	params := &globalParams{}
	return &cli.Command{
		Name:    "list",
		Summary: "List authorized spokes.",
		Usage:   "kosha-hub spoke list [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("spoke list", pflag.ContinueOnError)
			params.register(flags)
			return flags
		},
		Run: func(args []string) error {
			spokes, err := adminCall[[]hub.AdminSpoke](params, hub.AdminTrustRequest{Action: "spoke-list"})
			if err != nil {
				return err
			}
			if params.json {
				return cli.WriteJSON(spokes)
			}
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "ID52\tALIAS")
			for _, spoke := range spokes {
				fmt.Fprintf(tw, "%s\t%s\n", spoke.ID52, spoke.Alias)
			}
			return tw.Flush()
		},
	}
}

func spokePendingCommand() *cli.Command {
	params := &globalParams{}
	return &cli.Command{
		Name:    "pending",
		Summary: "List spokes seen in requests but not yet authorized.",
		Usage:   "kosha-hub spoke pending [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("spoke pending", pflag.ContinueOnError)
			params.register(flags)
			return flags
		},
		Run: func(args []string) error {
			pending, err := adminCall[[]hub.AdminPendingSpoke](params, hub.AdminTrustRequest{Action: "spoke-pending"})
			if err != nil {
				return err
			}
			if params.json {
				return cli.WriteJSON(pending)
			}
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "ID52\tFIRST SEEN")
			for _, spoke := range pending {
				fmt.Fprintf(tw, "%s\t%s\n", spoke.ID52, spoke.FirstSeen.Format("2006-01-02 15:04:05 MST"))
			}
			return tw.Flush()
		},
	}
}

func hubCommand() *cli.Command {
	return &cli.Command{
		Name:    "hub",
		Summary: "Manage trusted peer hubs.",
		Subcommands: []*cli.Command{
			hubAddCommand(),
			hubRemoveCommand(),
			hubListCommand(),
		},
	}
}

func hubAddCommand() *cli.Command {
	params := &globalParams{}
	var url string
	return &cli.Command{
		Name:    "add",
		Summary: "Trust a peer hub under a local alias.",
		Usage:   "kosha-hub hub add <id52> <alias> [flags]",
		Examples: []cli.Example{
			{Description: "Trust a peer and record where to reach it", Command: "kosha-hub hub add 9fj2...a1b0 office --url https://office.example:7038"},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("hub add", pflag.ContinueOnError)
			params.register(flags)
			flags.StringVar(&url, "url", "", "base URL for forwarding requests to the peer")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected <id52> <alias> arguments")
			}
			request := hub.AdminTrustRequest{Action: "hub-add", ID52: args[0], Alias: args[1], URL: url}
			if _, err := adminCall[struct{}](params, request); err != nil {
				return err
			}
			fmt.Printf("trusting hub %s as %q\n", args[0], args[1])
			return nil
		},
	}
}

func hubRemoveCommand() *cli.Command {
	params := &globalParams{}
	return &cli.Command{
		Name:    "remove",
		Summary: "Stop trusting a peer hub.",
		Usage:   "kosha-hub hub remove <id52> [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("hub remove", pflag.ContinueOnError)
			params.register(flags)
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one id52 argument")
			}
			request := hub.AdminTrustRequest{Action: "hub-remove", ID52: args[0]}
			if _, err := adminCall[struct{}](params, request); err != nil {
				return err
			}
			fmt.Printf("removed hub %s\n", args[0])
			return nil
		},
	}
}

func hubListCommand() *cli.Command {
	params := &globalParams{}
	return &cli.Command{
		Name:    "list",
		Summary: "List trusted peer hubs.",
		Usage:   "kosha-hub hub list [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("hub list", pflag.ContinueOnError)
			params.register(flags)
			return flags
		},
		Run: func(args []string) error {
			hubs, err := adminCall[[]hub.AdminHub](params, hub.AdminTrustRequest{Action: "hub-list"})
			if err != nil {
				return err
			}
			if params.json {
				return cli.WriteJSON(hubs)
			}
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "ALIAS\tID52\tURL")
			for _, entry := range hubs {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", entry.Alias, entry.ID52, entry.URL)
			}
			return tw.Flush()
		},
	}
}

func aclCommand() *cli.Command {
	return &cli.Command{
		Name:    "acl",
		Summary: "Manage per-resource access grants.",
		Subcommands: []*cli.Command{
			aclGrantCommand(),
			aclRevokeCommand(),
			aclListCommand(),
		},
	}
}

func aclGrantCommand() *cli.Command {
	params := &globalParams{}
	var name string
	return &cli.Command{
		Name:    "grant",
		Summary: "Grant a spoke access to one app instance.",
		Usage:   "kosha-hub acl grant <app> <instance> <id52> [flags]",
		Examples: []cli.Example{
			{Description: "Let a foreign spoke use the docs instance", Command: "kosha-hub acl grant kosha docs v64t...i930 --name amitu"},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("acl grant", pflag.ContinueOnError)
			params.register(flags)
			flags.StringVar(&name, "name", "", "display name recorded with the grant")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 3 {
				return fmt.Errorf("expected <app> <instance> <id52> arguments")
			}
			request := hub.AdminTrustRequest{Action: "acl-grant", App: args[0], Instance: args[1], ID52: args[2], Alias: name}
			if _, err := adminCall[struct{}](params, request); err != nil {
				return err
			}
			fmt.Printf("granted %s access to %s/%s\n", args[2], args[0], args[1])
			return nil
		},
	}
}

func aclRevokeCommand() *cli.Command {
	params := &globalParams{}
	return &cli.Command{
		Name:    "revoke",
		Summary: "Revoke a spoke's access to one app instance.",
		Usage:   "kosha-hub acl revoke <app> <instance> <id52> [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("acl revoke", pflag.ContinueOnError)
			params.register(flags)
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 3 {
				return fmt.Errorf("expected <app> <instance> <id52> arguments")
			}
			request := hub.AdminTrustRequest{Action: "acl-revoke", App: args[0], Instance: args[1], ID52: args[2]}
			if _, err := adminCall[struct{}](params, request); err != nil {
				return err
			}
			fmt.Printf("revoked %s from %s/%s\n", args[2], args[0], args[1])
			return nil
		},
	}
}

func aclListCommand() *cli.Command {
	params := &globalParams{}
	return &cli.Command{
		Name:    "list",
		Summary: "List grants for one app instance.",
		Usage:   "kosha-hub acl list <app> <instance> [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("acl list", pflag.ContinueOnError)
			params.register(flags)
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected <app> <instance> arguments")
			}
			request := hub.AdminTrustRequest{Action: "acl-list", App: args[0], Instance: args[1]}
			grants, err := adminCall[[]hub.AdminGrant](params, request)
			if err != nil {
				return err
			}
			if params.json {
				return cli.WriteJSON(grants)
			}
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "ID52\tNAME")
			for _, grant := range grants {
				fmt.Fprintf(tw, "%s\t%s\n", grant.ID52, grant.DisplayName)
			}
			return tw.Flush()
		},
	}
}
