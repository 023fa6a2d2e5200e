package cli

import (
	"io"
	"os"

	"github.com/peakwire/conduit/internal/config"
)

// CLI is the top-level command tree
type CLI struct {
	Format  string `help:"Output format: text or ndjson" enum:"text,ndjson" default:"${config_format}"`
	Quiet   bool   `short:"q" help:"Suppress informational output"`
	Verbose bool   `short:"v" help:"Enable verbose debug logging"`

	Connect ConnectCmd `cmd:"" help:"Connect to a relay host with a pairing code and stream updates"`
	Watch   WatchCmd   `cmd:"" help:"Interactive dashboard for a relay connection"`
	Config  ConfigCmd  `cmd:"" help:"Show resolved configuration and paired-host state"`
	Version VersionCmd `cmd:"" help:"Show version"`
}

// Globals carries shared flags and wiring into command Run methods
type Globals struct {
	Format  string
	Quiet   bool
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
	Config  *config.Config
}

// NewGlobalsWithConfig builds Globals from parsed flags, falling back to the
// loaded configuration.
func NewGlobalsWithConfig(c *CLI, cfg *config.Config) *Globals {
	g := &Globals{
		Format:  c.Format,
		Quiet:   c.Quiet || cfg.Quiet,
		Verbose: c.Verbose || cfg.Verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Config:  cfg,
	}
	if g.Format == "" {
		g.Format = cfg.Format
	}
	return g
}
