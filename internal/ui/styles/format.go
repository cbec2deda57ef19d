package styles

import (
	"fmt"
	"time"

	"github.com/mattn/go-runewidth"
)

// TruncateString truncates s to maxWidth terminal cells, adding an ellipsis
// if needed.
func TruncateString(s string, maxWidth int) string {
	if maxWidth < 1 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// PadRight pads s with spaces to exactly width cells, truncating first.
func PadRight(s string, width int) string {
	return runewidth.FillRight(TruncateString(s, width), width)
}

// FormatAge renders d compactly: 45s, 12m, 3h, 2d.
func FormatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
