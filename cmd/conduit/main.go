package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/peakwire/conduit/internal/cli"
	"github.com/peakwire/conduit/internal/config"
)

const quickStart = `conduit - relay client for remote game-client control

Quick start:
  conduit connect ABC123 --host relay.example.com:8182 \
      -p /lol-gameflow/v1/session
  conduit watch ABC123                  Interactive dashboard
  conduit config                        Show resolved configuration

For help:
  conduit --help                        All commands and flags
`

func main() {
	// Show quick start if no args provided
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		return
	}

	// Load configuration from files/environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}

	var c cli.CLI

	// Apply config defaults before parsing; CLI flags override them.
	vars := kong.Vars{
		"config_format":     cfg.Format,
		"config_relay_host": cfg.Relay.Host,
	}

	ctx := kong.Parse(&c,
		kong.Name("conduit"),
		kong.Description("Conduit: pair with a relay host and multiplex calls and subscriptions over one socket"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		vars,
	)

	globals := cli.NewGlobalsWithConfig(&c, cfg)
	if err := ctx.Run(globals); err != nil {
		os.Exit(1)
	}
}
