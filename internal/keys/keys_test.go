package keys

import (
	"testing"

	"github.com/charmbracelet/bubbles/key"
	"github.com/stretchr/testify/require"
)

func TestTop_KeyAssignments(t *testing.T) {
	tests := []struct {
		name     string
		binding  key.Binding
		expected []string
	}{
		{"Up uses k and up", Top.Up, []string{"k", "up"}},
		{"Down uses j and down", Top.Down, []string{"j", "down"}},
		{"ToggleTerminated uses t", Top.ToggleTerminated, []string{"t"}},
		{"Logs uses ctrl+x", Top.Logs, []string{"ctrl+x"}},
		{"Quit uses q and ctrl+c", Top.Quit, []string{"q", "ctrl+c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.binding.Keys())
		})
	}
}

func TestTop_HelpCoversEveryBinding(t *testing.T) {
	var n int
	for _, group := range Top.FullHelp() {
		for _, b := range group {
			require.NotEmpty(t, b.Help().Key)
			require.NotEmpty(t, b.Help().Desc)
			n++
		}
	}
	require.Equal(t, 9, n)
	require.Len(t, Top.ShortHelp(), 6)
}

func TestLogView_CloseMatchesTopLogs(t *testing.T) {
	// The toggle key must also close the panel.
	for _, k := range Top.Logs.Keys() {
		require.Contains(t, LogView.Close.Keys(), k)
	}
}

func TestLogView_LevelKeysAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, b := range []key.Binding{LogView.LevelDebug, LogView.LevelInfo, LogView.LevelWarn, LogView.LevelError, LogView.Clear} {
		for _, k := range b.Keys() {
			require.False(t, seen[k], "key %q bound twice", k)
			seen[k] = true
		}
	}
}
