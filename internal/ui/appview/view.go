package appview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zjrosen/appwatch/internal/keys"
	"github.com/zjrosen/appwatch/internal/ui/styles"
	"github.com/zjrosen/appwatch/internal/watcher"
)

type column struct {
	title string
	width int
}

var columns = []column{
	{"", 2},
	{"PID", 8},
	{"NAME", 22},
	{"BUNDLE", 32},
	{"POLICY", 11},
	{"STATE", 18},
	{"UP", 5},
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Starting..."
	}
	upper, lower := m.split()

	var lowerView string
	if m.logs.Visible() {
		lowerView = m.logs.View()
	} else {
		lowerView = styles.RenderPanel(m.renderEvents(lower-2), "Events", m.width, lower, false)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatus(),
		styles.RenderPanel(m.renderTable(upper-2), "Applications", m.width, upper, !m.logs.Visible()),
		lowerView,
		m.help.View(keys.Top),
	)
}

func (m Model) renderStatus() string {
	state := styles.KindStyle("launched").Render("live")
	if m.closed {
		state = styles.KindStyle("terminated").Render("closed")
	}
	return fmt.Sprintf(" appwatch  %s  %d running  %s",
		state, m.Running(), styles.MutedStyle.Render(m.source.ID()))
}

func (m Model) renderTable(height int) string {
	var header strings.Builder
	for _, c := range columns {
		header.WriteString(styles.PadRight(c.title, c.width))
	}
	lines := []string{styles.HeaderStyle.Render(header.String())}

	rows := m.visibleRows()
	if len(rows) == 0 {
		lines = append(lines, styles.MutedStyle.Italic(true).Render("No applications"))
		return strings.Join(lines, "\n")
	}

	// Keep the cursor in view.
	bodyHeight := max(height-1, 1)
	start := max(m.cursor-bodyHeight+1, 0)
	end := min(start+bodyHeight, len(rows))

	for i := start; i < end; i++ {
		lines = append(lines, m.renderRow(rows[i], i == m.cursor))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderRow(r *row, selected bool) string {
	indicator := "  "
	if selected {
		indicator = styles.SelectionIndicatorStyle.Render(">") + " "
	}

	name := r.app.Name
	if name == "" {
		name = "-"
	}
	end := m.now()
	if !r.terminatedAt.IsZero() {
		end = r.terminatedAt
	}

	cells := []string{
		fmt.Sprint(r.app.PID),
		name,
		r.app.BundleID,
		r.app.ActivationPolicy.String(),
		m.state(r),
		styles.FormatAge(end.Sub(r.launchedAt)),
	}

	var b strings.Builder
	b.WriteString(indicator)
	for i, cell := range cells {
		b.WriteString(styles.PadRight(cell, columns[i+1].width))
	}

	line := b.String()
	if r.app.Terminated {
		return styles.MutedStyle.Render(line)
	}
	return line
}

func (m Model) state(r *row) string {
	switch {
	case r.app.Terminated:
		return "terminated"
	case !r.app.FinishedLaunching:
		return "launching"
	}
	var parts []string
	if r.app.Handle == m.frontmost {
		parts = append(parts, "front")
	}
	if r.app.Hidden {
		parts = append(parts, "hidden")
	}
	if len(parts) == 0 {
		return "running"
	}
	return strings.Join(parts, ",")
}

func (m Model) renderEvents(height int) string {
	if len(m.events) == 0 {
		return styles.MutedStyle.Italic(true).Render("Waiting for events")
	}

	start := max(len(m.events)-height, 0)
	lines := make([]string, 0, len(m.events)-start)
	for _, e := range m.events[start:] {
		kind := e.event.Kind.String()
		lines = append(lines, fmt.Sprintf("%s %s %s",
			styles.MutedStyle.Render(e.at.Format("15:04:05")),
			styles.KindStyle(kind).Render(styles.PadRight(kind, 26)),
			describe(e.event),
		))
	}
	return strings.Join(lines, "\n")
}

func describe(ev watcher.Event) string {
	switch ev.Kind {
	case watcher.KindLaunched:
		names := make([]string, len(ev.Apps))
		for i, a := range ev.Apps {
			names[i] = a.String()
		}
		if len(names) == 0 {
			return "(none)"
		}
		return strings.Join(names, ", ")
	case watcher.KindActivationPolicyChanged:
		return fmt.Sprintf("%s -> %s", ev.App, ev.App.ActivationPolicy)
	default:
		return ev.App.String()
	}
}
