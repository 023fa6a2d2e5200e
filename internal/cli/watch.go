package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/peakwire/conduit/internal/protocol"
	"github.com/peakwire/conduit/internal/relay"
	"github.com/peakwire/conduit/internal/tui"
)

// WatchCmd launches an interactive dashboard for a relay connection
type WatchCmd struct {
	Code     string   `arg:"" help:"Pairing code shown by the relay host"`
	Host     string   `help:"Relay host (host:port)" default:"${config_relay_host}"`
	Insecure bool     `help:"Dial ws:// instead of wss://"`
	Path     []string `short:"p" help:"Exact path to observe (can be repeated)"`
	Pattern  []string `help:"Regex pattern to observe (can be repeated)"`
}

// Run executes the watch command
func (c *WatchCmd) Run(globals *Globals) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	var patterns []*regexp.Regexp
	for _, p := range c.Pattern {
		re, err := regexp.Compile(p)
		if err != nil {
			return outputErrorCommon(globals, "INVALID_PATTERN", fmt.Sprintf("invalid regex pattern: %s", err))
		}
		patterns = append(patterns, re)
	}

	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = globals.Config.Relay.Host
	}
	if host == "" {
		return outputErrorCommon(globals, "NO_HOST", "no relay host configured",
			"set relay.host in the config file or pass --host")
	}

	log := newLogger(globals)
	defer log.Sync()

	session, _, _ := buildSession(globals, log, host, c.Insecure)
	defer session.Close()

	updates := make(chan tui.Update, 256)
	emit := func(label string) relay.Handler {
		return func(res protocol.Result) {
			select {
			case updates <- tui.Update{Label: label, Res: res}:
			default:
			}
		}
	}
	for _, p := range c.Path {
		session.Observe(relay.Exact(p), emit(p))
	}
	for _, re := range patterns {
		session.Observe(relay.Pattern(re), emit(re.String()))
	}

	session.Connect(c.Code)

	model := tui.New(c.Code, session, updates)
	p := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
