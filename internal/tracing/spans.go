package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanListChanged = "watcher.list_changed"
	SpanTerminated  = "watcher.terminated"
)

// Attribute keys.
const (
	AttrInstanceID = "watcher.instance_id"
	AttrCandidates = "watcher.candidates"
	AttrLaunched   = "watcher.launched"
	AttrRegistered = "watcher.registered"
	AttrPID        = "app.pid"
	AttrBundleID   = "app.bundle_id"
	AttrFilter     = "filter.reason"
)

// Span events.
const (
	EventFiltered = "app.filtered"
)

// StartListChanged opens the span covering one running-list delivery.
func StartListChanged(ctx context.Context, tracer trace.Tracer, instanceID string, candidates int) (context.Context, trace.Span) {
	return tracer.Start(ctx, SpanListChanged,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(AttrInstanceID, instanceID),
			attribute.Int(AttrCandidates, candidates),
		),
	)
}

// StartTerminated opens the span covering one termination.
func StartTerminated(ctx context.Context, tracer trace.Tracer, instanceID string, pid int32, bundleID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, SpanTerminated,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(AttrInstanceID, instanceID),
			attribute.Int64(AttrPID, int64(pid)),
			attribute.String(AttrBundleID, bundleID),
		),
	)
}

// RecordFiltered adds a span event for an application dropped by a filter.
func RecordFiltered(span trace.Span, pid int32, bundleID, reason string) {
	span.AddEvent(EventFiltered, trace.WithAttributes(
		attribute.Int64(AttrPID, int64(pid)),
		attribute.String(AttrBundleID, bundleID),
		attribute.String(AttrFilter, reason),
	))
}
