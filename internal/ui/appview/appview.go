// Package appview is the live application table: one row per application the
// stream has launched, with a tail of recent lifecycle events below it.
package appview

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/zjrosen/appwatch/internal/keys"
	"github.com/zjrosen/appwatch/internal/log"
	"github.com/zjrosen/appwatch/internal/ui/logview"
	"github.com/zjrosen/appwatch/internal/watcher"
	"github.com/zjrosen/appwatch/internal/workspace"
)

const maxEvents = 200

// Source is the event stream the view renders.
type Source interface {
	ID() string
	C() <-chan watcher.Event
}

// EventMsg carries one stream event into Update.
type EventMsg watcher.Event

// StreamClosedMsg is sent once the stream's channel closes.
type StreamClosedMsg struct{}

type row struct {
	app          watcher.App
	launchedAt   time.Time
	terminatedAt time.Time
}

type entry struct {
	at    time.Time
	event watcher.Event
}

// Model is the top-level view state.
type Model struct {
	ctx    context.Context
	source Source
	now    func() time.Time

	rows      []*row
	byHandle  map[workspace.Handle]*row
	frontmost workspace.Handle
	events    []entry

	cursor         int
	showTerminated bool
	closed         bool

	logs     logview.Model
	listener *log.LogListener
	help     help.Model
	showHelp bool

	width  int
	height int
}

// Option configures a Model.
type Option func(*Model)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// New creates a view over source. Log entries are followed until ctx is done.
func New(ctx context.Context, source Source, opts ...Option) Model {
	m := Model{
		ctx:      ctx,
		source:   source,
		now:      time.Now,
		byHandle: make(map[workspace.Handle]*row),
		logs:     logview.New(),
		listener: log.NewListener(ctx),
		help:     help.New(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.next()}
	if m.listener != nil {
		cmds = append(cmds, m.listener.Listen())
	}
	return tea.Batch(cmds...)
}

// next waits for the following stream event.
func (m Model) next() tea.Cmd {
	ch := m.source.C()
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return StreamClosedMsg{}
		case ev, ok := <-ch:
			if !ok {
				return StreamClosedMsg{}
			}
			return EventMsg(ev)
		}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		_, lower := m.split()
		m.logs.SetSize(m.width, lower)
		return m, nil

	case EventMsg:
		m.apply(watcher.Event(msg))
		return m, m.next()

	case StreamClosedMsg:
		m.closed = true
		log.Info(log.CatUI, "stream closed", "instance", m.source.ID())
		return m, nil

	case log.LogEvent:
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)
		if m.listener != nil {
			return m, tea.Batch(cmd, m.listener.Listen())
		}
		return m, cmd

	case logview.CloseMsg:
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.logs.Visible() {
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)
		return m, cmd
	}

	visible := m.visibleRows()
	switch {
	case key.Matches(msg, keys.Top.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Top.Up):
		m.cursor = max(m.cursor-1, 0)
	case key.Matches(msg, keys.Top.Down):
		m.cursor = min(m.cursor+1, max(len(visible)-1, 0))
	case key.Matches(msg, keys.Top.Top):
		m.cursor = 0
	case key.Matches(msg, keys.Top.Bottom):
		m.cursor = max(len(visible)-1, 0)
	case key.Matches(msg, keys.Top.ToggleTerminated):
		m.showTerminated = !m.showTerminated
		m.cursor = min(m.cursor, max(len(m.visibleRows())-1, 0))
	case key.Matches(msg, keys.Top.ClearEvents):
		m.events = nil
	case key.Matches(msg, keys.Top.Logs):
		m.logs.Toggle()
	case key.Matches(msg, keys.Top.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
	}
	return m, nil
}

// apply folds ev into the table.
func (m *Model) apply(ev watcher.Event) {
	now := m.now()
	m.events = append(m.events, entry{at: now, event: ev})
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}

	if ev.Kind == watcher.KindLaunched {
		for _, a := range ev.Apps {
			m.upsert(a, now)
		}
		return
	}

	r := m.upsert(ev.App, now)
	switch ev.Kind {
	case watcher.KindActivated:
		m.frontmost = ev.App.Handle
	case watcher.KindTerminated:
		r.terminatedAt = now
		if m.frontmost == ev.App.Handle {
			m.frontmost = 0
		}
	}
}

func (m *Model) upsert(a watcher.App, now time.Time) *row {
	r, ok := m.byHandle[a.Handle]
	if !ok {
		r = &row{launchedAt: now}
		m.byHandle[a.Handle] = r
		m.rows = append(m.rows, r)
	}
	r.app = a
	return r
}

func (m Model) visibleRows() []*row {
	if m.showTerminated {
		return m.rows
	}
	out := make([]*row, 0, len(m.rows))
	for _, r := range m.rows {
		if !r.app.Terminated {
			out = append(out, r)
		}
	}
	return out
}

// Running returns the number of applications not yet terminated.
func (m Model) Running() int {
	var n int
	for _, r := range m.rows {
		if !r.app.Terminated {
			n++
		}
	}
	return n
}

// Selected returns the application under the cursor.
func (m Model) Selected() (watcher.App, bool) {
	rows := m.visibleRows()
	if m.cursor >= len(rows) {
		return watcher.App{}, false
	}
	return rows[m.cursor].app, true
}

// Closed reports whether the stream has ended.
func (m Model) Closed() bool { return m.closed }

// split returns the heights of the table panel and the lower panel.
func (m Model) split() (int, int) {
	avail := max(m.height-2, 2) // status line and help line
	upper := max(avail*3/5, 1)
	return upper, max(avail-upper, 1)
}
