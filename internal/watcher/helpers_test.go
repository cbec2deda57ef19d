package watcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/appwatch/internal/workspace/memory"
)

const (
	eventTimeout = 2 * time.Second
	quietPeriod  = 50 * time.Millisecond
)

type tb interface {
	require.TestingT
	Helper()
}

// sync waits until every task queued so far has run.
func (e *engine) sync() {
	done := make(chan struct{})
	if !e.tasks.Push(func() { close(done) }) {
		return
	}
	<-done
}

// openStream starts a stream that is closed when the test ends.
func openStream(t *testing.T, ws *memory.Workspace, opts Options) *Stream {
	t.Helper()
	s := startStream(t, ws, opts)
	t.Cleanup(s.Close)
	return s
}

// startStream starts a stream the caller must close.
func startStream(t tb, ws *memory.Workspace, opts Options) *Stream {
	t.Helper()
	opts.Workspace = ws
	s := NewClient(opts).Events(context.Background())
	s.e.sync()
	return s
}

func collect(t tb, s *Stream, n int) []Event {
	t.Helper()
	out := make([]Event, 0, n)
	for len(out) < n {
		select {
		case ev, ok := <-s.C():
			require.True(t, ok, "stream closed after %d of %d events", len(out), n)
			out = append(out, ev)
		case <-time.After(eventTimeout):
			require.Fail(t, fmt.Sprintf("timeout after %d of %d events: %v", len(out), n, describe(out)))
		}
	}
	return out
}

func assertNoMore(t tb, s *Stream) {
	t.Helper()
	s.e.sync()
	select {
	case ev, ok := <-s.C():
		if ok {
			require.Fail(t, "unexpected event", ev.String())
		}
	case <-time.After(quietPeriod):
	}
}

// describe renders events as "kind:handles" for compact comparison.
func describe(evs []Event) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		if ev.Kind == KindLaunched {
			hs := make([]string, len(ev.Apps))
			for j, a := range ev.Apps {
				hs[j] = fmt.Sprint(a.Handle)
			}
			out[i] = ev.Kind.String() + ":" + strings.Join(hs, ",")
			continue
		}
		out[i] = fmt.Sprintf("%s:%d", ev.Kind, ev.App.Handle)
	}
	return out
}

// fakeRecorder counts Recorder calls.
type fakeRecorder struct {
	mu         sync.Mutex
	events     map[string]int
	filtered   map[string]int
	registered int
	watchers   int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{events: map[string]int{}, filtered: map[string]int{}}
}

func (r *fakeRecorder) with(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

func (r *fakeRecorder) EventEmitted(kind string)          { r.with(func() { r.events[kind]++ }) }
func (r *fakeRecorder) ApplicationFiltered(reason string) { r.with(func() { r.filtered[reason]++ }) }
func (r *fakeRecorder) AppRegistered()                    { r.with(func() { r.registered++ }) }
func (r *fakeRecorder) AppUnregistered()                  { r.with(func() { r.registered-- }) }
func (r *fakeRecorder) WatcherStarted()                   { r.with(func() { r.watchers++ }) }
func (r *fakeRecorder) WatcherStopped()                   { r.with(func() { r.watchers-- }) }
