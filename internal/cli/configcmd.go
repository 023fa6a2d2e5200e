package cli

import (
	"encoding/json"
	"fmt"

	"github.com/olekukonko/tablewriter"

	"github.com/peakwire/conduit/internal/config"
)

// ConfigCmd prints the resolved configuration and the paired-host state
type ConfigCmd struct{}

// Run executes the config command
func (c *ConfigCmd) Run(globals *Globals) error {
	cfg := globals.Config

	persisted := &config.Persisted{}
	if path, err := config.DefaultStorePath(); err == nil {
		if st, err := config.NewStore(path).Load(); err == nil {
			persisted = st
		}
	}

	if globals.Format == "ndjson" {
		rec := map[string]any{
			"type":          "config",
			"schemaVersion": 1,
			"relay_host":    cfg.Relay.Host,
			"insecure":      cfg.Relay.Insecure,
			"ping_interval": cfg.Relay.PingInterval,
			"notify":        cfg.Notify.Endpoint,
			"remote_name":   persisted.RemoteName,
			"last_code":     persisted.LastCode,
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(globals.Stdout, string(b))
		return err
	}

	table := tablewriter.NewTable(globals.Stdout)
	table.Header("Setting", "Value")
	_ = table.Append("relay.host", cfg.Relay.Host)
	_ = table.Append("relay.insecure", fmt.Sprintf("%t", cfg.Relay.Insecure))
	_ = table.Append("relay.ping_interval", cfg.Relay.PingInterval)
	_ = table.Append("notify.endpoint", cfg.Notify.Endpoint)
	_ = table.Append("paired remote", persisted.RemoteName)
	_ = table.Append("last code", persisted.LastCode)
	return table.Render()
}
