// Package logview is a panel showing recent log entries without leaving the
// TUI.
package logview

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/zjrosen/appwatch/internal/keys"
	"github.com/zjrosen/appwatch/internal/log"
	"github.com/zjrosen/appwatch/internal/ui/styles"
)

// CloseMsg is sent when the panel closes itself.
type CloseMsg struct{}

// Model is the log panel state.
type Model struct {
	visible  bool
	minLevel log.Level
	width    int
	height   int
	viewport viewport.Model
}

// New creates a hidden log panel.
func New() Model {
	return Model{minLevel: log.LevelDebug}
}

// Update handles messages while the panel is visible.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.LogView.Clear):
			log.ClearBuffer()
		case key.Matches(msg, keys.LogView.LevelDebug):
			m.minLevel = log.LevelDebug
		case key.Matches(msg, keys.LogView.LevelInfo):
			m.minLevel = log.LevelInfo
		case key.Matches(msg, keys.LogView.LevelWarn):
			m.minLevel = log.LevelWarn
		case key.Matches(msg, keys.LogView.LevelError):
			m.minLevel = log.LevelError
		case key.Matches(msg, keys.LogView.ScrollDown):
			m.viewport.ScrollDown(1)
			return m, nil
		case key.Matches(msg, keys.LogView.ScrollUp):
			m.viewport.ScrollUp(1)
			return m, nil
		case key.Matches(msg, keys.LogView.Top):
			m.viewport.GotoTop()
			return m, nil
		case key.Matches(msg, keys.LogView.Bottom):
			m.viewport.GotoBottom()
			return m, nil
		case key.Matches(msg, keys.LogView.Close):
			m.visible = false
			return m, func() tea.Msg { return CloseMsg{} }
		default:
			return m, nil
		}
		m.refresh()

	case log.LogEvent:
		m.refresh()
	}
	return m, nil
}

// View renders the panel, or "" when hidden.
func (m Model) View() string {
	if !m.visible {
		return ""
	}
	body := m.viewport.View() + "\n" + m.filterHint()
	return styles.RenderPanel(body, "Logs", m.width, m.height, true)
}

// Visible reports whether the panel is shown.
func (m Model) Visible() bool { return m.visible }

// MinLevel returns the current filter level.
func (m Model) MinLevel() log.Level { return m.minLevel }

// Toggle flips visibility.
func (m *Model) Toggle() {
	m.visible = !m.visible
	if m.visible {
		m.refresh()
	}
}

// SetSize sets the outer panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.refresh()
}

func (m *Model) refresh() {
	if m.width == 0 || m.height == 0 {
		return
	}
	// Borders take two rows, the hint one more.
	w := max(m.width-2, 1)
	h := max(m.height-3, 1)

	atBottom := m.viewport.AtBottom() || m.viewport.TotalLineCount() == 0
	m.viewport = viewport.New(w, h)
	m.viewport.SetContent(m.content(w))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) content(width int) string {
	var lines []string
	for _, entry := range log.GetRecentLogs(10000) {
		if levelOf(entry) >= m.minLevel {
			lines = append(lines, colorize(entry, width))
		}
	}
	if len(lines) == 0 {
		return styles.MutedStyle.Italic(true).Render("No logs to display")
	}
	return strings.Join(lines, "\n")
}

// levelOf parses the bracketed level; unknown entries are always shown.
func levelOf(entry string) log.Level {
	switch {
	case strings.Contains(entry, "[ERROR]"):
		return log.LevelError
	case strings.Contains(entry, "[WARN]"):
		return log.LevelWarn
	case strings.Contains(entry, "[INFO]"):
		return log.LevelInfo
	case strings.Contains(entry, "[DEBUG]"):
		return log.LevelDebug
	default:
		return log.LevelError
	}
}

func colorize(entry string, width int) string {
	entry = strings.TrimSuffix(entry, "\n")
	if ansi.StringWidth(entry) > width {
		entry = ansi.Truncate(entry, width-3, "...")
	}

	var c lipgloss.TerminalColor
	switch levelOf(entry) {
	case log.LevelError:
		c = styles.StatusErrorColor
	case log.LevelWarn:
		c = styles.StatusWarningColor
	case log.LevelInfo:
		c = styles.StatusInfoColor
	default:
		c = styles.TextMutedColor
	}
	return lipgloss.NewStyle().Foreground(c).Render(entry)
}

func (m Model) filterHint() string {
	active := lipgloss.NewStyle().Foreground(styles.TextPrimaryColor).Bold(true)

	hints := []string{styles.MutedStyle.Render("[c] Clear")}
	for _, opt := range []struct {
		level log.Level
		label string
	}{
		{log.LevelDebug, "[d] Debug"},
		{log.LevelInfo, "[i] Info"},
		{log.LevelWarn, "[w] Warn"},
		{log.LevelError, "[e] Error"},
	} {
		if opt.level == m.minLevel {
			hints = append(hints, active.Render(opt.label))
		} else {
			hints = append(hints, styles.MutedStyle.Render(opt.label))
		}
	}
	return strings.Join(hints, "  ")
}
