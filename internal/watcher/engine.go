package watcher

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zjrosen/appwatch/internal/flags"
	"github.com/zjrosen/appwatch/internal/invariant"
	"github.com/zjrosen/appwatch/internal/log"
	"github.com/zjrosen/appwatch/internal/procinfo"
	"github.com/zjrosen/appwatch/internal/pubsub"
	"github.com/zjrosen/appwatch/internal/tracing"
	"github.com/zjrosen/appwatch/internal/workspace"
)

// engine turns one set of workspace subscriptions into one event stream.
//
// Every OS callback only enqueues a task; tasks run one at a time on the loop
// goroutine, which is the only code that touches the registry, so property
// callbacks for one application are applied in the order they were delivered.
type engine struct {
	id   string
	opts Options

	exceptions map[string]struct{}
	self       workspace.Handle
	hasSelf    bool

	tasks    *pubsub.Queue[func()]
	out      *pubsub.Queue[Event]
	loopDone chan struct{}
	closed   chan struct{}
	stopOnce sync.Once

	// Set by start before any teardown task can be queued.
	listObs  workspace.Observation
	frontObs workspace.Observation

	// Loop-only state.
	registry  *Registry
	stopped   bool
	emitCount int
}

func newEngine(opts Options) *engine {
	e := &engine{
		id:         uuid.NewString(),
		opts:       opts,
		exceptions: make(map[string]struct{}, len(opts.ExceptionBundleIDs)),
		tasks:      pubsub.NewQueue[func()](),
		out:        pubsub.NewQueue[Event](),
		loopDone:   make(chan struct{}),
		closed:     make(chan struct{}),
		registry:   newRegistry(),
	}
	for _, id := range opts.ExceptionBundleIDs {
		e.exceptions[id] = struct{}{}
	}
	if self := opts.Workspace.CurrentApplication(); self != nil {
		e.self, e.hasSelf = self.Handle(), true
	}
	return e
}

// start runs the loop and installs the workspace subscriptions. Both fire
// immediately, so the first list task is queued ahead of the first frontmost
// task.
func (e *engine) start() {
	go e.loop()

	e.listObs = e.opts.Workspace.ObserveRunningApplications(true, func(apps []workspace.Application) {
		e.submit(func() { e.handleList(apps) })
	})
	e.frontObs = e.opts.Workspace.ObserveFrontmostApplication(true, func(app workspace.Application) {
		e.submit(func() { e.handleFrontmost(app) })
	})

	e.opts.Recorder.WatcherStarted()
	log.Info(log.CatWatcher, "Watcher started", "instance", e.id, "exceptions", len(e.exceptions))
}

func (e *engine) loop() {
	defer close(e.loopDone)
	for task := range e.tasks.Out() {
		if e.stopped {
			continue
		}
		task()
	}
}

// submit enqueues fn for the loop. Callbacks that race with teardown are
// dropped.
func (e *engine) submit(fn func()) {
	if !e.tasks.Push(fn) {
		log.Debug(log.CatWatcher, "Callback after teardown ignored", "instance", e.id)
	}
}

// stop tears the engine down synchronously. It is idempotent.
func (e *engine) stop() {
	e.stopOnce.Do(func() {
		done := make(chan struct{})
		e.submit(func() {
			e.teardown()
			close(done)
		})
		<-done

		e.tasks.Close()
		<-e.loopDone
		e.out.Close()
		close(e.closed)

		e.opts.Recorder.WatcherStopped()
		log.Info(log.CatWatcher, "Watcher stopped", "instance", e.id, "events", e.emitCount)
	})
}

func (e *engine) teardown() {
	if e.listObs != nil {
		e.listObs.Invalidate()
	}
	if e.frontObs != nil {
		e.frontObs.Invalidate()
	}
	n := e.registry.drain()
	for range n {
		e.opts.Recorder.AppUnregistered()
	}
	e.stopped = true
	log.Debug(log.CatRegistry, "Registry drained", "instance", e.id, "apps", n)
}

func (e *engine) emit(ev Event) {
	e.out.Push(ev)
	e.emitCount++
	e.opts.Recorder.EventEmitted(ev.Kind.String())
	log.Debug(log.CatWatcher, "Event", "instance", e.id, "event", ev.String())
}

func (e *engine) handleList(apps []workspace.Application) {
	_, span := tracing.StartListChanged(context.Background(), e.opts.Tracer, e.id, len(apps))
	defer span.End()

	survivors := make([]workspace.Application, 0, len(apps))
	for _, app := range apps {
		if reason, skip := e.filter(app); skip {
			log.Debug(log.CatWatcher, "Skipping application",
				"reason", reason, "pid", app.PID(), "bundle", app.BundleIdentifier())
			e.opts.Recorder.ApplicationFiltered(reason)
			tracing.RecordFiltered(span, int32(app.PID()), app.BundleIdentifier(), reason)
			continue
		}
		survivors = append(survivors, app)
	}

	snapshots := make([]App, len(survivors))
	for i, app := range survivors {
		snapshots[i] = Snapshot(app)
	}
	e.emit(Event{Kind: KindLaunched, Apps: snapshots})

	registered := 0
	for _, app := range survivors {
		if e.registry.Contains(app.Handle()) {
			continue
		}
		e.register(app)
		registered++
	}

	span.SetAttributes(
		attribute.Int(tracing.AttrLaunched, len(survivors)),
		attribute.Int(tracing.AttrRegistered, registered),
	)
}

// filter reports whether app must be dropped from a launched list, and why.
func (e *engine) filter(app workspace.Application) (string, bool) {
	if e.hasSelf && app.Handle() == e.self {
		return ReasonSelf, true
	}
	// The running list can lag behind the terminated flag.
	if app.IsTerminated() {
		return ReasonTerminated, true
	}

	pid := int32(app.PID())
	_, exempt := e.exceptions[app.BundleIdentifier()]

	if !exempt && e.opts.Classifier.IsPseudoApplication(pid) {
		return ReasonPseudoApplication, true
	}
	if e.opts.Zombies.IsZombie(pid) {
		return ReasonZombie, true
	}
	if !exempt && e.opts.Flags.Enabled(flags.FlagMetadataClassifier) && declaresXPC(app) {
		return ReasonBundleMetadata, true
	}
	return "", false
}

func declaresXPC(app workspace.Application) bool {
	md, ok := app.(workspace.BundleMetadata)
	if !ok {
		return false
	}
	pkg, ok := md.BundlePackageType()
	return ok && pkg == procinfo.TypeXPC.String()
}

func (e *engine) register(app workspace.Application) {
	b := &bundle{app: app}
	added := e.registry.add(b)
	invariant.Check(added, log.CatRegistry, "application registered twice", "pid", app.PID())
	if !added {
		return
	}
	e.opts.Recorder.AppRegistered()

	for _, p := range workspace.Properties {
		b.observations[p] = app.Observe(p, false, func(c workspace.Change) {
			e.submit(func() { e.handleChange(b, c) })
		})
	}
	log.Debug(log.CatRegistry, "Registered application",
		"instance", e.id, "pid", app.PID(), "bundle", app.BundleIdentifier(), "apps", e.registry.Len())

	// The finished-launching observer skips the current value, so read it
	// here; launchReported absorbs a change callback that races with the read.
	if app.IsFinishedLaunching() {
		e.reportFinishedLaunching(b)
	}
	// A termination between filter and Observe has no callback to deliver it.
	if app.IsTerminated() {
		e.terminate(b)
	}
}

func (e *engine) handleChange(b *bundle, c workspace.Change) {
	if cur, ok := e.registry.get(b.app.Handle()); !ok || cur != b {
		log.Debug(log.CatRegistry, "Change for unregistered application ignored",
			"property", c.Property, "pid", b.app.PID())
		return
	}

	switch c.Property {
	case workspace.PropertyFinishedLaunching:
		if c.Flag {
			e.reportFinishedLaunching(b)
		}
	case workspace.PropertyActivationPolicy:
		snap := Snapshot(b.app)
		snap.ActivationPolicy = c.Policy
		e.emit(Event{Kind: KindActivationPolicyChanged, App: snap})
	case workspace.PropertyHidden:
		snap := Snapshot(b.app)
		snap.Hidden = c.Flag
		kind := KindUnhidden
		if c.Flag {
			kind = KindHidden
		}
		e.emit(Event{Kind: kind, App: snap})
	case workspace.PropertyTerminated:
		if !c.Flag {
			log.Debug(log.CatWatcher, "Terminated change without the flag ignored", "pid", b.app.PID())
			return
		}
		e.terminate(b)
	}
}

func (e *engine) reportFinishedLaunching(b *bundle) {
	if b.launchReported {
		return
	}
	b.launchReported = true

	snap := Snapshot(b.app)
	snap.FinishedLaunching = true
	e.emit(Event{Kind: KindFinishedLaunching, App: snap})
}

// terminate removes b from the registry, cancels its subscriptions and then
// emits Terminated. Later signals for the same application find no entry.
func (e *engine) terminate(b *bundle) {
	h := b.app.Handle()
	if _, ok := e.registry.remove(h); !ok {
		log.Debug(log.CatRegistry, "Duplicate termination ignored", "pid", b.app.PID())
		return
	}
	e.opts.Recorder.AppUnregistered()

	_, span := tracing.StartTerminated(context.Background(), e.opts.Tracer, e.id, int32(b.app.PID()), b.app.BundleIdentifier())
	span.SetAttributes(attribute.Int(tracing.AttrRegistered, e.registry.Len()))
	defer span.End()

	snap := Snapshot(b.app)
	snap.Terminated = true
	e.emit(Event{Kind: KindTerminated, App: snap})
}

func (e *engine) handleFrontmost(app workspace.Application) {
	if app == nil {
		return
	}
	if !e.registry.Contains(app.Handle()) {
		log.Debug(log.CatWatcher, "Frontmost application not registered",
			"pid", app.PID(), "bundle", app.BundleIdentifier())
		return
	}
	e.emit(Event{Kind: KindActivated, App: Snapshot(app)})
}
