// Package keys contains keybinding definitions.
package keys

import "github.com/charmbracelet/bubbles/key"

// TopKeyMap holds the bindings of the live application table.
type TopKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding

	ToggleTerminated key.Binding
	ClearEvents      key.Binding
	Logs             key.Binding

	Help key.Binding
	Quit key.Binding
}

// ShortHelp implements help.KeyMap.
func (k TopKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.ToggleTerminated, k.Logs, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k TopKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom},
		{k.ToggleTerminated, k.ClearEvents, k.Logs},
		{k.Help, k.Quit},
	}
}

// LogViewKeyMap holds the bindings of the log panel.
type LogViewKeyMap struct {
	Clear      key.Binding
	LevelDebug key.Binding
	LevelInfo  key.Binding
	LevelWarn  key.Binding
	LevelError key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Top        key.Binding
	Bottom     key.Binding
	Close      key.Binding
}

// Top is the application table keymap.
var Top = TopKeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "move up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "move down"),
	),
	Top: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "first app"),
	),
	Bottom: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "last app"),
	),
	ToggleTerminated: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "show terminated"),
	),
	ClearEvents: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "clear events"),
	),
	Logs: key.NewBinding(
		key.WithKeys("ctrl+x"),
		key.WithHelp("ctrl+x", "logs"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// LogView is the log panel keymap.
var LogView = LogViewKeyMap{
	Clear:      key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
	LevelDebug: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "debug")),
	LevelInfo:  key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "info")),
	LevelWarn:  key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "warn")),
	LevelError: key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "error")),
	ScrollUp:   key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "scroll up")),
	ScrollDown: key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "scroll down")),
	Top:        key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "top")),
	Bottom:     key.NewBinding(key.WithKeys("G"), key.WithHelp("G", "bottom")),
	Close:      key.NewBinding(key.WithKeys("ctrl+x", "esc"), key.WithHelp("esc", "close")),
}
