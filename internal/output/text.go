package output

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/peakwire/conduit/internal/protocol"
)

var (
	pathStyle   = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// TextWriter renders records for humans. Styling is optional so piped output
// stays clean.
type TextWriter struct {
	w      io.Writer
	styled bool
}

// NewTextWriter creates a plain text writer
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: w}
}

// NewStyledTextWriter creates a writer with lipgloss colors enabled
func NewStyledTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: w, styled: true}
}

// WriteUpdate renders one update record
func (t *TextWriter) WriteUpdate(path string, res protocol.Result) error {
	status := fmt.Sprintf("%d", res.Status)
	if t.styled {
		path = pathStyle.Render(path)
		if res.OK() {
			status = okStyle.Render(status)
		} else {
			status = errStyle.Render(status)
		}
	}
	_, err := fmt.Fprintf(t.w, "%s %s %s\n", status, path, string(res.Content))
	return err
}

// WriteReady renders the handshake record
func (t *TextWriter) WriteReady(remoteName, remoteVersion string) error {
	line := fmt.Sprintf("Connected to %s (v%s)", remoteName, remoteVersion)
	if t.styled {
		line = okStyle.Render(line)
	}
	_, err := fmt.Fprintln(t.w, line)
	return err
}

// WriteStatus renders a connection-state snapshot
func (t *TextWriter) WriteStatus(state string, pingMs int64) error {
	line := fmt.Sprintf("state=%s ping=%dms", state, pingMs)
	if t.styled {
		line = subtleStyle.Render(line)
	}
	_, err := fmt.Fprintln(t.w, line)
	return err
}
