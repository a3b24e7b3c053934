// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

// Command kosha-hub manages and runs a hub node: identity creation,
// the serving loop, and trust administration. Administrative commands
// go through the admin socket when a hub is serving, and fall back to
// mutating the store on disk when none is.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/kosha-foundation/kosha/cmd/internal/cli"
	"github.com/kosha-foundation/kosha/lib/config"
	"github.com/kosha-foundation/kosha/lib/hub"
)

// globalParams are shared by every subcommand.
type globalParams struct {
	home   string
	socket string
	json   bool
}

func (p *globalParams) register(flags *pflag.FlagSet) {
	flags.StringVar(&p.home, "home", defaultHome(), "hub home directory")
	flags.StringVar(&p.socket, "socket", "", "admin socket path (default <home>/admin.sock)")
	flags.BoolVar(&p.json, "json", false, "output as JSON")
}

func (p *globalParams) socketPath() string {
	if p.socket != "" {
		return p.socket
	}
	return filepath.Join(p.home, "admin.sock")
}

func defaultHome() string {
	if home := os.Getenv("KOSHA_HUB_HOME"); home != "" {
		return home
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return ".kosha-hub"
	}
	return filepath.Join(userHome, ".kosha", "hub")
}

func main() {
	root := &cli.Command{
		Name:    "kosha-hub",
		Summary: "Run and administer a kosha hub node.",
		Description: "kosha-hub runs a hub: a node identity that owns named kosha\n" +
			"instances and serves signed, authorized requests from its spokes\n" +
			"and trusted peer hubs.",
		Subcommands: []*cli.Command{
			initCommand(),
			serveCommand(),
			statusCommand(),
			spokeCommand(),
			hubCommand(),
			aclCommand(),
		},
	}
	cli.Main(root)
}

func initCommand() *cli.Command {
	params := &globalParams{}
	return &cli.Command{
		Name:    "init",
		Summary: "Create a new hub identity and home directory.",
		Usage:   "kosha-hub init [flags]",
		Examples: []cli.Example{
			{Description: "Initialize under an explicit home", Command: "kosha-hub init --home /srv/kosha"},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("init", pflag.ContinueOnError)
			params.register(flags)
			return flags
		},
		Run: func(args []string) error {
			logger := cli.NewLogger(slog.LevelInfo)
			h, err := hub.Init(params.home, logger)
			if err != nil {
				return err
			}
			if err := h.OpenKosha("root"); err != nil {
				return err
			}
			fmt.Printf("initialized hub %s in %s\n", h.ID52(), params.home)
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	params := &globalParams{}
	var settingsPath string
	return &cli.Command{
		Name:    "serve",
		Summary: "Run the hub: HTTP endpoint and admin socket.",
		Usage:   "kosha-hub serve [flags]",
		Examples: []cli.Example{
			{Description: "Serve with a settings file", Command: "kosha-hub serve --settings /etc/kosha/serve.yaml"},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
			params.register(flags)
			flags.StringVar(&settingsPath, "settings", "", "YAML serve settings file (defaults apply when omitted)")
			return flags
		},
		Run: func(args []string) error {
			settings := config.DefaultServe()
			if settingsPath != "" {
				var err error
				settings, err = config.LoadServe(settingsPath)
				if err != nil {
					return err
				}
			}
			level, err := settings.SlogLevel()
			if err != nil {
				return err
			}
			logger := cli.NewLogger(level)

			h, err := hub.Load(params.home, logger)
			if err != nil {
				return err
			}
			if err := h.OpenKoshas(); err != nil {
				return err
			}
			if params.socket != "" {
				settings.AdminSocket = params.socket
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return h.Serve(ctx, settings)
		},
	}
}

func statusCommand() *cli.Command {
	params := &globalParams{}
	return &cli.Command{
		Name:    "status",
		Summary: "Show hub identity, instances, and trust counts.",
		Usage:   "kosha-hub status [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("status", pflag.ContinueOnError)
			params.register(flags)
			return flags
		},
		Run: func(args []string) error {
			status, err := adminCall[hub.AdminStatus](params, hub.AdminTrustRequest{Action: "status"})
			if err != nil {
				return err
			}
			if params.json {
				return cli.WriteJSON(status)
			}
			fmt.Printf("hub:       %s\n", status.HubID52)
			fmt.Printf("created:   %s\n", status.CreatedAt.Format("2006-01-02 15:04:05 MST"))
			fmt.Printf("instances: %d", len(status.Instances))
			for _, name := range status.Instances {
				fmt.Printf(" %s", name)
			}
			fmt.Println()
			fmt.Printf("spokes:    %d authorized, %d pending\n", status.Spokes, status.Pending)
			fmt.Printf("peer hubs: %d\n", status.Hubs)
			return nil
		},
	}
}
