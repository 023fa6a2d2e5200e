package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peakwire/conduit/internal/config"
	"github.com/peakwire/conduit/internal/output"
)

func testGlobals(format string) (*Globals, *bytes.Buffer, *bytes.Buffer) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	return &Globals{
		Format: format,
		Stdout: stdout,
		Stderr: stderr,
		Config: config.Default(),
	}, stdout, stderr
}

func TestNewGlobalsWithConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Quiet = true
	cfg.Format = "ndjson"

	g := NewGlobalsWithConfig(&CLI{}, cfg)
	assert.True(t, g.Quiet, "config quiet carries through")
	assert.Equal(t, "ndjson", g.Format, "empty flag falls back to config")

	g = NewGlobalsWithConfig(&CLI{Format: "text", Verbose: true}, cfg)
	assert.Equal(t, "text", g.Format, "flag wins over config")
	assert.True(t, g.Verbose)
}

func TestOutputErrorCommon(t *testing.T) {
	t.Run("ndjson goes to stdout", func(t *testing.T) {
		g, stdout, stderr := testGlobals("ndjson")

		err := outputErrorCommon(g, "NO_HOST", "no relay host configured", "pass --host")
		require.Error(t, err)

		var m map[string]any
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &m))
		assert.Equal(t, "error", m["type"])
		assert.Equal(t, "NO_HOST", m["code"])
		assert.Equal(t, "pass --host", m["hint"])
		assert.Empty(t, stderr.String())
	})

	t.Run("text goes to stderr", func(t *testing.T) {
		g, stdout, stderr := testGlobals("text")

		err := outputErrorCommon(g, "NO_HOST", "no relay host configured")
		require.Error(t, err)
		assert.Empty(t, stdout.String())
		assert.Contains(t, stderr.String(), "Error [NO_HOST]")
	})
}

func TestConnectCmdValidation(t *testing.T) {
	t.Run("rejects invalid pattern", func(t *testing.T) {
		g, _, _ := testGlobals("ndjson")
		cmd := &ConnectCmd{Code: "ABC123", Host: "relay:8182", Timeout: "15s", Pattern: []string{"["}}
		assert.Error(t, cmd.Run(g))
	})

	t.Run("rejects invalid timeout", func(t *testing.T) {
		g, _, _ := testGlobals("ndjson")
		cmd := &ConnectCmd{Code: "ABC123", Host: "relay:8182", Timeout: "soon"}
		assert.Error(t, cmd.Run(g))
	})

	t.Run("requires a host", func(t *testing.T) {
		g, stdout, _ := testGlobals("ndjson")
		cmd := &ConnectCmd{Code: "ABC123", Timeout: "15s"}
		assert.Error(t, cmd.Run(g))
		assert.Contains(t, stdout.String(), "NO_HOST")
	})
}

func TestWatchCmdValidation(t *testing.T) {
	g, stdout, _ := testGlobals("ndjson")
	cmd := &WatchCmd{Code: "ABC123"}
	assert.Error(t, cmd.Run(g))
	assert.Contains(t, stdout.String(), "NO_HOST")
}

func TestVersionCmd(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		g, stdout, _ := testGlobals("text")
		require.NoError(t, (&VersionCmd{}).Run(g))
		assert.True(t, strings.HasPrefix(stdout.String(), "conduit "))
	})

	t.Run("ndjson", func(t *testing.T) {
		g, stdout, _ := testGlobals("ndjson")
		require.NoError(t, (&VersionCmd{}).Run(g))
		var m map[string]any
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &m))
		assert.Equal(t, "version", m["type"])
	})
}

func TestConfigCmdNDJSON(t *testing.T) {
	g, stdout, _ := testGlobals("ndjson")
	g.Config.Relay.Host = "relay.example.com:8182"

	require.NoError(t, (&ConfigCmd{}).Run(g))

	var m map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &m))
	assert.Equal(t, "config", m["type"])
	assert.Equal(t, "relay.example.com:8182", m["relay_host"])
}

func TestNewRecordWriter(t *testing.T) {
	g, _, _ := testGlobals("ndjson")
	_, ok := newRecordWriter(g).(*output.NDJSONWriter)
	assert.True(t, ok)

	g, _, _ = testGlobals("text")
	_, ok = newRecordWriter(g).(*output.TextWriter)
	assert.True(t, ok, "non-file stdout never gets styling")
}
