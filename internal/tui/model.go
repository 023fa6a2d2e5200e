package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/peakwire/conduit/internal/protocol"
	"github.com/peakwire/conduit/internal/relay"
)

const maxRows = 200

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	rowStyle    = lipgloss.NewStyle().PaddingLeft(1)
)

// Update is one rendered change notification
type Update struct {
	Label string
	Res   protocol.Result
}

// Model is the watch dashboard: connection state on top, update feed below
type Model struct {
	code    string
	session *relay.Session
	updates <-chan Update

	spin   spinner.Model
	rows   []string
	width  int
	height int
}

// New creates the dashboard model. The session is polled for state; pushed
// updates arrive on the channel.
func New(code string, session *relay.Session, updates <-chan Update) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = subtleStyle
	return Model{
		code:    code,
		session: session,
		updates: updates,
		spin:    sp,
	}
}

type updateMsg Update

type statusTickMsg time.Time

func waitForUpdate(ch <-chan Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return updateMsg(u)
	}
}

func statusTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return statusTickMsg(t)
	})
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, waitForUpdate(m.updates), statusTick())
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case updateMsg:
		row := fmt.Sprintf("%d %s %s", msg.Res.Status, msg.Label, string(msg.Res.Content))
		m.rows = append(m.rows, row)
		if len(m.rows) > maxRows {
			m.rows = m.rows[len(m.rows)-maxRows:]
		}
		return m, waitForUpdate(m.updates)

	case statusTickMsg:
		// State is pull-based; the tick just forces a redraw.
		return m, statusTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("conduit watch"))
	b.WriteString(subtleStyle.Render(fmt.Sprintf("  code=%s", m.code)))
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	visible := m.rows
	if m.height > 6 && len(visible) > m.height-6 {
		visible = visible[len(visible)-(m.height-6):]
	}
	for _, row := range visible {
		b.WriteString(rowStyle.Render(row))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(subtleStyle.Render("q to quit"))
	return b.String()
}

func (m Model) statusLine() string {
	if m.session.Connecting() {
		return m.spin.View() + subtleStyle.Render(" connecting...")
	}
	state, ok := m.session.State()
	if !ok {
		return badStyle.Render("disconnected")
	}

	remote := m.session.Remote()
	parts := []string{okStyle.Render(state.String())}
	if remote.Name != "" {
		parts = append(parts, fmt.Sprintf("%s (v%s)", remote.Name, remote.Version))
	}
	if ping := m.session.Ping(); ping >= 0 {
		parts = append(parts, subtleStyle.Render(fmt.Sprintf("%dms", ping.Milliseconds())))
	}
	return strings.Join(parts, "  ")
}
