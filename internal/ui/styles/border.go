package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	borderTopLeft     = "╭"
	borderTopRight    = "╮"
	borderBottomLeft  = "╰"
	borderBottomRight = "╯"
	borderHorizontal  = "─"
	borderVertical    = "│"
)

// RenderPanel renders content in a rounded box of exactly width x height
// cells with title embedded in the top border: ╭─ Title ─────╮
func RenderPanel(content, title string, width, height int, focused bool) string {
	var borderColor lipgloss.TerminalColor = BorderDefaultColor
	if focused {
		borderColor = BorderFocusColor
	}
	borderStyle := lipgloss.NewStyle().Foreground(borderColor)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(TextPrimaryColor)

	innerWidth := max(width-2, 1)
	contentHeight := max(height-2, 1)

	lines := strings.Split(content, "\n")
	body := make([]string, contentHeight)
	for i := range contentHeight {
		var line string
		if i < len(lines) {
			line = lines[i]
		}
		if w := lipgloss.Width(line); w > innerWidth {
			line = TruncateString(line, innerWidth)
		} else if w < innerWidth {
			line += strings.Repeat(" ", innerWidth-w)
		}
		body[i] = borderStyle.Render(borderVertical) + line + borderStyle.Render(borderVertical)
	}

	var b strings.Builder
	b.WriteString(topBorder(title, innerWidth, borderStyle, titleStyle))
	b.WriteString("\n")
	b.WriteString(strings.Join(body, "\n"))
	b.WriteString("\n")
	b.WriteString(borderStyle.Render(borderBottomLeft + strings.Repeat(borderHorizontal, innerWidth) + borderBottomRight))
	return b.String()
}

func topBorder(title string, innerWidth int, borderStyle, titleStyle lipgloss.Style) string {
	// "─ " before and " ─" after the title at minimum.
	if title == "" || innerWidth < 4 {
		return borderStyle.Render(borderTopLeft + strings.Repeat(borderHorizontal, innerWidth) + borderTopRight)
	}

	title = TruncateString(title, innerWidth-4)
	remaining := max(innerWidth-3-lipgloss.Width(title), 0)

	return borderStyle.Render(borderTopLeft+borderHorizontal+" ") +
		titleStyle.Render(title) +
		borderStyle.Render(" "+strings.Repeat(borderHorizontal, remaining)+borderTopRight)
}
