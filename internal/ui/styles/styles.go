// Package styles contains Lip Gloss style definitions.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Text hierarchy
	TextPrimaryColor   = lipgloss.AdaptiveColor{Light: "#333333", Dark: "#CCCCCC"}
	TextSecondaryColor = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BBBBBB"}
	TextMutedColor     = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#696969"}

	BorderDefaultColor = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#696969"}
	BorderFocusColor   = lipgloss.AdaptiveColor{Light: "#1E66F5", Dark: "#89B4FA"}

	StatusSuccessColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	StatusWarningColor = lipgloss.AdaptiveColor{Light: "#DF8E1D", Dark: "#FECA57"}
	StatusErrorColor   = lipgloss.AdaptiveColor{Light: "#D20F39", Dark: "#FF8787"}
	StatusInfoColor    = lipgloss.AdaptiveColor{Light: "#179299", Dark: "#94E2D5"}

	SelectionIndicatorColor = lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"}
	SelectionIndicatorStyle = lipgloss.NewStyle().Bold(true).Foreground(SelectionIndicatorColor)

	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(TextSecondaryColor)
	MutedStyle  = lipgloss.NewStyle().Foreground(TextMutedColor)
)

// Event kind colors, keyed by the kind's wire name.
var kindColors = map[string]lipgloss.TerminalColor{
	"launched":                  StatusSuccessColor,
	"finished_launching":        StatusSuccessColor,
	"activated":                 BorderFocusColor,
	"terminated":                StatusErrorColor,
	"hidden":                    TextMutedColor,
	"unhidden":                  TextSecondaryColor,
	"activation_policy_changed": StatusWarningColor,
}

// KindStyle returns the style for an event kind name.
func KindStyle(kind string) lipgloss.Style {
	c, ok := kindColors[kind]
	if !ok {
		c = TextPrimaryColor
	}
	return lipgloss.NewStyle().Foreground(c)
}
