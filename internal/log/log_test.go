package log

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLog_FormatsLevelCategoryAndFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf)

	Info(CatWatcher, "engine started", "instance", "abc", "apps", 3)

	line := buf.String()
	require.Contains(t, line, "[INFO] [watcher] engine started")
	require.Contains(t, line, "instance=abc")
	require.Contains(t, line, "apps=3")
	require.True(t, strings.HasSuffix(line, "\n"))
}

func TestLog_OddFieldCount(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf)

	Warn(CatZombie, "short buffer", "pid")

	require.Contains(t, buf.String(), "pid=<missing>")
}

func TestLog_ErrorErr(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf)

	ErrorErr(CatFeed, "decode failed", errors.New("bad json"), "line", 4)
	ErrorErr(CatFeed, "nil error", nil)

	out := buf.String()
	require.Contains(t, out, "error=bad json")
	require.Contains(t, out, "error=<nil>")
}

func TestLog_MinLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf)
	SetMinLevel(LevelWarn)

	Debug(CatClassify, "hidden")
	Info(CatClassify, "hidden too")
	Error(CatClassify, "visible")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "visible")
}

func TestLog_Disabled(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf)
	SetEnabled(false)

	Error(CatConfig, "dropped")

	require.Empty(t, buf.String())
}

func TestGetRecentLogs_OrderAndBound(t *testing.T) {
	InitWithWriter(&bytes.Buffer{})

	for i := 0; i < recentCapacity+10; i++ {
		Debug(CatUI, "entry", "i", i)
	}

	recent := GetRecentLogs(3)
	require.Len(t, recent, 3)
	require.Contains(t, recent[0], "i=507")
	require.Contains(t, recent[2], "i=509")

	require.Len(t, GetRecentLogs(10000), recentCapacity)

	ClearBuffer()
	require.Empty(t, GetRecentLogs(10))
}

func TestNewListener_ReceivesEntries(t *testing.T) {
	InitWithWriter(&bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := NewListener(ctx)
	require.NotNil(t, listener)

	Info(CatMetrics, "listening", "addr", ":9090")

	done := make(chan LogEvent, 1)
	go func() {
		if ev, ok := listener.Listen()().(LogEvent); ok {
			done <- ev
		}
	}()

	select {
	case ev := <-done:
		require.Contains(t, ev.Payload, "[metrics] listening addr=:9090")
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for log event")
	}
}
