package watcher

import (
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/appwatch/internal/config"
	"github.com/zjrosen/appwatch/internal/flags"
	"github.com/zjrosen/appwatch/internal/workspace"
)

// Classifier decides whether a pid is a background pseudo-application.
// *procinfo.Classifier implements it.
type Classifier interface {
	IsPseudoApplication(pid int32) bool
}

// ZombieDetector decides whether a pid is a zombie.
// *sysctl.Detector implements it.
type ZombieDetector interface {
	IsZombie(pid int32) bool
}

// Recorder receives engine activity for metrics. *metrics.Metrics implements it.
type Recorder interface {
	EventEmitted(kind string)
	ApplicationFiltered(reason string)
	AppRegistered()
	AppUnregistered()
	WatcherStarted()
	WatcherStopped()
}

// Filter reasons reported to the Recorder and in span events.
const (
	ReasonSelf              = "self"
	ReasonTerminated        = "terminated"
	ReasonPseudoApplication = "pseudo_application"
	ReasonZombie            = "zombie"
	ReasonBundleMetadata    = "bundle_metadata"
)

// Options configures a Client.
type Options struct {
	// Workspace is the application-layer notification source. Required.
	Workspace workspace.Workspace

	// Classifier and Zombies default to answering false for every pid.
	Classifier Classifier
	Zombies    ZombieDetector

	// ExceptionBundleIDs are never dropped as pseudo-applications.
	// Nil means the default list; an empty non-nil slice means none.
	ExceptionBundleIDs []string

	Flags    *flags.Registry
	Tracer   trace.Tracer
	Recorder Recorder
}

type never struct{}

func (never) IsPseudoApplication(int32) bool { return false }
func (never) IsZombie(int32) bool            { return false }

type nopRecorder struct{}

func (nopRecorder) EventEmitted(string)        {}
func (nopRecorder) ApplicationFiltered(string) {}
func (nopRecorder) AppRegistered()             {}
func (nopRecorder) AppUnregistered()           {}
func (nopRecorder) WatcherStarted()            {}
func (nopRecorder) WatcherStopped()            {}

func (o Options) withDefaults() Options {
	if o.Classifier == nil {
		o.Classifier = never{}
	}
	if o.Zombies == nil {
		o.Zombies = never{}
	}
	if o.ExceptionBundleIDs == nil {
		o.ExceptionBundleIDs = []string{config.DefaultExceptionBundleID}
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("watcher")
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
	return o
}
