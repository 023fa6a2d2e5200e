package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/peakwire/conduit/internal/config"
	"github.com/peakwire/conduit/internal/notify"
	"github.com/peakwire/conduit/internal/output"
	"github.com/peakwire/conduit/internal/protocol"
	"github.com/peakwire/conduit/internal/relay"
	"github.com/peakwire/conduit/internal/transport"
)

// ConnectCmd connects to a relay host and streams matching updates
type ConnectCmd struct {
	Code     string   `arg:"" help:"Pairing code shown by the relay host"`
	Host     string   `help:"Relay host (host:port)" default:"${config_relay_host}"`
	Insecure bool     `help:"Dial ws:// instead of wss://"`
	Path     []string `short:"p" help:"Exact path to observe (can be repeated)"`
	Pattern  []string `help:"Regex pattern to observe (can be repeated)"`
	Get      []string `help:"One-shot GET to issue once connected (can be repeated)"`
	Timeout  string   `default:"15s" help:"Give up if the handshake has not completed in this long"`
}

type updateRec struct {
	label string
	res   protocol.Result
}

// Run executes the connect command
func (c *ConnectCmd) Run(globals *Globals) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	timeout, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_TIMEOUT", fmt.Sprintf("invalid timeout duration: %s", err))
	}

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

	session, store, notifier := buildSession(globals, log, host, c.Insecure)
	defer session.Close()

	// Updates from observation handlers fan into one channel so a slow
	// terminal never blocks frame routing; handlers drop on overflow.
	updates := make(chan updateRec, 256)
	emit := func(label string) relay.Handler {
		return func(res protocol.Result) {
			select {
			case updates <- updateRec{label: label, res: res}:
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
	if store != nil {
		if err := store.RememberCode(c.Code); err != nil {
			log.Warn("persisting pairing code failed", zap.Error(err))
		}
	}

	writer := newRecordWriter(globals)

	poll := time.NewTicker(200 * time.Millisecond)
	defer poll.Stop()
	status := time.NewTicker(5 * time.Second)
	defer status.Stop()
	deadline := time.After(timeout)
	ready := false

	for {
		select {
		case <-ctx.Done():
			if notifier != nil && ready {
				// Best-effort: an unreachable notification service must
				// not delay shutdown.
				unsubCtx, unsubCancel := context.WithTimeout(context.Background(), 3*time.Second)
				_ = notifier.Unsubscribe(unsubCtx, c.Code, "push")
				unsubCancel()
			}
			return nil

		case u := <-updates:
			if err := writer.WriteUpdate(u.label, u.res); err != nil {
				return err
			}

		case <-poll.C:
			if !ready && session.Connected() && session.Remote().Name != "" {
				ready = true
				remote := session.Remote()
				if err := writer.WriteReady(remote.Name, remote.Version); err != nil {
					return err
				}
				if globals.Format != "ndjson" && !globals.Quiet {
					printInfoTable(globals, session)
				}
				for _, p := range c.Get {
					c.issueGet(session, p, updates, log)
				}
			}
			if ready && !session.Connected() && !session.Connecting() {
				return outputErrorCommon(globals, "DISCONNECTED", "relay connection lost",
					"rerun conduit connect to re-pair")
			}

		case <-status.C:
			if ready && !globals.Quiet {
				if state, ok := session.State(); ok {
					if err := writer.WriteStatus(state.String(), session.Ping().Milliseconds()); err != nil {
						return err
					}
				}
			}

		case <-deadline:
			if !ready {
				return outputErrorCommon(globals, "CONNECT_TIMEOUT",
					fmt.Sprintf("no handshake within %s", c.Timeout),
					"check the relay host and pairing code")
			}
		}
	}
}

// issueGet runs a one-shot request and feeds its result into the update loop
func (c *ConnectCmd) issueGet(session *relay.Session, path string, updates chan<- updateRec, log *zap.Logger) {
	ch, err := session.Request(path)
	if err != nil {
		log.Warn("one-shot request failed", zap.String("path", path), zap.Error(err))
		return
	}
	go func() {
		res := <-ch
		select {
		case updates <- updateRec{label: path, res: res}:
		default:
		}
	}()
}

// buildSession wires the transport dialer, config store and notification
// client into a session per the loaded configuration.
func buildSession(globals *Globals, log *zap.Logger, host string, insecure bool) (*relay.Session, *config.Store, relay.Notifier) {
	pingInterval, err := time.ParseDuration(globals.Config.Relay.PingInterval)
	if err != nil || pingInterval <= 0 {
		pingInterval = 10 * time.Second
	}

	dialOpts := []transport.Option{
		transport.WithLogger(log),
		transport.WithPingInterval(pingInterval),
	}
	if insecure || globals.Config.Relay.Insecure {
		dialOpts = append(dialOpts, transport.WithInsecure())
	}
	dialer := transport.NewDialer(host, dialOpts...)

	sessionOpts := []relay.Option{relay.WithLogger(log)}

	var store *config.Store
	if path, err := config.DefaultStorePath(); err == nil {
		store = config.NewStore(path)
		sessionOpts = append(sessionOpts, relay.WithConfigSink(store))
	} else {
		log.Warn("config store unavailable", zap.Error(err))
	}

	var notifier relay.Notifier
	if endpoint := globals.Config.Notify.Endpoint; endpoint != "" {
		client := notify.NewClient(endpoint, notify.WithLogger(log))
		notifier = client
		sessionOpts = append(sessionOpts, relay.WithNotifier(client))
	}

	return relay.NewSession(dialer, sessionOpts...), store, notifier
}

// recordWriter is the output surface shared by the ndjson and text writers
type recordWriter interface {
	WriteUpdate(path string, res protocol.Result) error
	WriteReady(remoteName, remoteVersion string) error
	WriteStatus(state string, pingMs int64) error
}

func newRecordWriter(globals *Globals) recordWriter {
	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout)
	}
	if f, ok := globals.Stdout.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return output.NewStyledTextWriter(globals.Stdout)
	}
	return output.NewTextWriter(globals.Stdout)
}

// printInfoTable renders the handshake summary for text mode
func printInfoTable(globals *Globals, session *relay.Session) {
	remote := session.Remote()
	state, _ := session.State()

	table := tablewriter.NewTable(globals.Stdout)
	table.Header("Remote", "Version", "State", "Ping")
	_ = table.Append(remote.Name, remote.Version, state.String(),
		fmt.Sprintf("%dms", session.Ping().Milliseconds()))
	_ = table.Render()
}
