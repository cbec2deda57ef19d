package tracing

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// FileExporter appends spans to a JSON-lines file, one span per line.
type FileExporter struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileExporter opens path for append, creating it and its parent
// directories as needed.
func NewFileExporter(path string) (*FileExporter, error) {
	cleanPath := filepath.Clean(path)

	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o750); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}

	file, err := os.OpenFile(cleanPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) // #nosec G304 -- path is cleaned above
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	return &FileExporter{file: file, enc: json.NewEncoder(file)}, nil
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *FileExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.file == nil {
		return fmt.Errorf("exporter is shut down")
	}
	for _, span := range spans {
		if err := e.enc.Encode(newSpanRecord(span)); err != nil {
			return fmt.Errorf("encode span: %w", err)
		}
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter. It is idempotent.
func (e *FileExporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.file == nil {
		return nil
	}
	err := e.file.Close()
	e.file = nil
	e.enc = nil
	return err
}

// SpanRecord is one exported watcher span, flattened for jq.
type SpanRecord struct {
	TraceID    string           `json:"trace_id"`
	Span       string           `json:"span"`
	At         time.Time        `json:"at"`
	DurationMs float64          `json:"duration_ms"`
	Instance   string           `json:"instance,omitempty"`
	PID        int64            `json:"pid,omitempty"`
	BundleID   string           `json:"bundle_id,omitempty"`
	Candidates *int64           `json:"candidates,omitempty"`
	Launched   *int64           `json:"launched,omitempty"`
	Registered *int64           `json:"registered,omitempty"`
	Filtered   []FilteredRecord `json:"filtered,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// FilteredRecord is an application dropped from a running list.
type FilteredRecord struct {
	PID      int64  `json:"pid"`
	BundleID string `json:"bundle_id,omitempty"`
	Reason   string `json:"reason"`
}

func newSpanRecord(span sdktrace.ReadOnlySpan) SpanRecord {
	rec := SpanRecord{
		TraceID:    span.SpanContext().TraceID().String(),
		Span:       span.Name(),
		At:         span.StartTime().UTC(),
		DurationMs: float64(span.EndTime().Sub(span.StartTime()).Microseconds()) / 1000.0,
	}
	if span.Status().Code == codes.Error {
		rec.Error = span.Status().Description
		if rec.Error == "" {
			rec.Error = "error"
		}
	}

	for _, kv := range span.Attributes() {
		switch kv.Key {
		case AttrInstanceID:
			rec.Instance = kv.Value.AsString()
		case AttrPID:
			rec.PID = kv.Value.AsInt64()
		case AttrBundleID:
			rec.BundleID = kv.Value.AsString()
		case AttrCandidates:
			rec.Candidates = count(kv)
		case AttrLaunched:
			rec.Launched = count(kv)
		case AttrRegistered:
			rec.Registered = count(kv)
		}
	}

	for _, evt := range span.Events() {
		if evt.Name != EventFiltered {
			continue
		}
		var f FilteredRecord
		for _, kv := range evt.Attributes {
			switch kv.Key {
			case AttrPID:
				f.PID = kv.Value.AsInt64()
			case AttrBundleID:
				f.BundleID = kv.Value.AsString()
			case AttrFilter:
				f.Reason = kv.Value.AsString()
			}
		}
		rec.Filtered = append(rec.Filtered, f)
	}
	return rec
}

func count(kv attribute.KeyValue) *int64 {
	n := kv.Value.AsInt64()
	return &n
}
