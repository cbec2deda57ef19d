package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func stubSpan(name string, status codes.Code) sdktrace.ReadOnlySpan {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return tracetest.SpanStub{
		Name: name,
		SpanContext: trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: trace.TraceID{1},
			SpanID:  trace.SpanID{2},
		}),
		StartTime: start,
		EndTime:   start.Add(1500 * time.Microsecond),
		Status:    sdktrace.Status{Code: status, Description: "boom"},
		Attributes: []attribute.KeyValue{
			attribute.String(AttrInstanceID, "w1"),
			attribute.Int(AttrCandidates, 4),
			attribute.Int(AttrLaunched, 3),
			attribute.Int(AttrRegistered, 0),
		},
		Events: []sdktrace.Event{{
			Name: EventFiltered,
			Time: start,
			Attributes: []attribute.KeyValue{
				attribute.Int64(AttrPID, 77),
				attribute.String(AttrBundleID, "com.example.Helper"),
				attribute.String(AttrFilter, "zombie"),
			},
		}},
	}.Snapshot()
}

func readRecords(t *testing.T, path string) []SpanRecord {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var out []SpanRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec SpanRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		out = append(out, rec)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestFileExporter_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "traces.jsonl")

	e, err := NewFileExporter(path)
	require.NoError(t, err)
	require.NoError(t, e.Shutdown(context.Background()))

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestFileExporter_WritesRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	e, err := NewFileExporter(path)
	require.NoError(t, err)

	require.NoError(t, e.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{
		stubSpan(SpanListChanged, codes.Ok),
		stubSpan(SpanTerminated, codes.Error),
	}))
	require.NoError(t, e.Shutdown(context.Background()))

	recs := readRecords(t, path)
	require.Len(t, recs, 2)

	first := recs[0]
	require.Equal(t, SpanListChanged, first.Span)
	require.Equal(t, "w1", first.Instance)
	require.InDelta(t, 1.5, first.DurationMs, 0.001)
	require.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), first.At)
	require.NotNil(t, first.Candidates)
	require.Equal(t, int64(4), *first.Candidates)
	require.Equal(t, int64(3), *first.Launched)
	require.NotNil(t, first.Registered, "zero counts are still written")
	require.Zero(t, *first.Registered)
	require.Equal(t, []FilteredRecord{{PID: 77, BundleID: "com.example.Helper", Reason: "zombie"}}, first.Filtered)
	require.Empty(t, first.Error)

	require.Equal(t, SpanTerminated, recs[1].Span)
	require.Equal(t, "boom", recs[1].Error)
}

func TestFileExporter_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")

	for i := 0; i < 2; i++ {
		e, err := NewFileExporter(path)
		require.NoError(t, err)
		require.NoError(t, e.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stubSpan("s", codes.Unset)}))
		require.NoError(t, e.Shutdown(context.Background()))
	}

	recs := readRecords(t, path)
	require.Len(t, recs, 2)
	require.Equal(t, "s", recs[1].Span)
	require.Empty(t, recs[1].Error)
}

func TestFileExporter_ShutdownIsIdempotent(t *testing.T) {
	e, err := NewFileExporter(filepath.Join(t.TempDir(), "traces.jsonl"))
	require.NoError(t, err)

	require.NoError(t, e.Shutdown(context.Background()))
	require.NoError(t, e.Shutdown(context.Background()))
	require.Error(t, e.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stubSpan("s", codes.Ok)}))
}
