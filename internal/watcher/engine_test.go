package watcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zjrosen/appwatch/internal/flags"
	"github.com/zjrosen/appwatch/internal/procinfo"
	"github.com/zjrosen/appwatch/internal/sysctl"
	"github.com/zjrosen/appwatch/internal/tracing"
	"github.com/zjrosen/appwatch/internal/workspace"
	"github.com/zjrosen/appwatch/internal/workspace/memory"
)

// liveOptions wires the classifier and zombie detector to the memory
// workspace, the way the CLI wires them to the OS.
func liveOptions(ws *memory.Workspace) Options {
	return Options{
		Classifier: procinfo.NewClassifier(ws),
		Zombies:    sysctl.NewDetector(ws),
	}
}

func TestEngine_LaunchFinishActivateOrder(t *testing.T) {
	ws := memory.New()
	a := ws.NewApp(memory.AppSpec{Handle: 1, PID: 100, BundleID: "com.example.A", FinishedLaunching: true})
	ws.SetRunning(a)
	ws.SetFrontmost(a)

	s := openStream(t, ws, liveOptions(ws))

	evs := collect(t, s, 3)
	require.Equal(t, []string{"launched:1", "finished_launching:1", "activated:1"}, describe(evs))
	require.Equal(t, "com.example.A", evs[0].Apps[0].BundleID)
	require.True(t, evs[1].App.FinishedLaunching)
	assertNoMore(t, s)
}

func TestEngine_FinishedLaunchingLater_ReportedOnce(t *testing.T) {
	ws := memory.New()
	a := ws.NewApp(memory.AppSpec{Handle: 1, PID: 100})
	ws.SetRunning(a)

	s := openStream(t, ws, liveOptions(ws))
	require.Equal(t, []string{"launched:1"}, describe(collect(t, s, 1)))
	assertNoMore(t, s)

	a.SetFinishedLaunching(true)
	a.Notify(workspace.PropertyFinishedLaunching)

	require.Equal(t, []string{"finished_launching:1"}, describe(collect(t, s, 1)))
	assertNoMore(t, s)
}

func TestEngine_PropertyEvents(t *testing.T) {
	ws := memory.New()
	a := ws.NewApp(memory.AppSpec{Handle: 1, PID: 100})
	ws.SetRunning(a)

	s := openStream(t, ws, liveOptions(ws))
	collect(t, s, 1)

	a.SetActivationPolicy(workspace.PolicyAccessory)
	a.SetHidden(true)
	a.SetHidden(false)

	evs := collect(t, s, 3)
	require.Equal(t, []string{"activation_policy_changed:1", "hidden:1", "unhidden:1"}, describe(evs))
	require.Equal(t, workspace.PolicyAccessory, evs[0].App.ActivationPolicy)
	require.True(t, evs[1].App.Hidden)
	require.False(t, evs[2].App.Hidden)
}

func TestEngine_Termination(t *testing.T) {
	ws := memory.New()
	a := ws.NewApp(memory.AppSpec{Handle: 1, PID: 100})
	ws.SetRunning(a)

	s := openStream(t, ws, liveOptions(ws))
	collect(t, s, 1)
	for _, p := range workspace.Properties {
		require.Equal(t, 1, a.ObserverCount(p), p.String())
	}

	a.Terminate()

	evs := collect(t, s, 1)
	require.Equal(t, []string{"terminated:1"}, describe(evs))
	require.True(t, evs[0].App.Terminated)

	s.e.sync()
	require.Zero(t, s.e.registry.Len())
	for _, p := range workspace.Properties {
		require.Zero(t, a.ObserverCount(p), p.String())
	}
}

func TestEngine_SecondTerminationIsNoop(t *testing.T) {
	ws := memory.New()
	a := ws.NewApp(memory.AppSpec{Handle: 1, PID: 100})
	ws.SetRunning(a)

	s := openStream(t, ws, liveOptions(ws))
	collect(t, s, 1)

	// Two deliveries queued before the first is applied.
	b, ok := s.e.registry.get(1)
	require.True(t, ok)
	change := workspace.Change{Property: workspace.PropertyTerminated, Flag: true}
	s.e.submit(func() { s.e.handleChange(b, change) })
	s.e.submit(func() { s.e.handleChange(b, change) })

	require.Equal(t, []string{"terminated:1"}, describe(collect(t, s, 1)))
	assertNoMore(t, s)
}

func TestEngine_HiddenAfterTerminationIgnored(t *testing.T) {
	ws := memory.New()
	a := ws.NewApp(memory.AppSpec{Handle: 1, PID: 100})
	ws.SetRunning(a)

	s := openStream(t, ws, liveOptions(ws))
	collect(t, s, 1)

	b, _ := s.e.registry.get(1)
	a.Terminate()
	s.e.submit(func() {
		s.e.handleChange(b, workspace.Change{Property: workspace.PropertyHidden, Flag: true})
	})
	a.SetHidden(true)

	require.Equal(t, []string{"terminated:1"}, describe(collect(t, s, 1)))
	assertNoMore(t, s)
}

func TestEngine_DuplicateListDeliveryRegistersOnce(t *testing.T) {
	ws := memory.New()
	a := ws.NewApp(memory.AppSpec{Handle: 1, PID: 100})
	b := ws.NewApp(memory.AppSpec{Handle: 2, PID: 200})
	ws.SetRunning(a)

	s := openStream(t, ws, liveOptions(ws))
	collect(t, s, 1)

	ws.SetRunning(a)
	ws.Launch(b)

	require.Equal(t, []string{"launched:1", "launched:1,2"}, describe(collect(t, s, 2)))
	s.e.sync()
	require.Equal(t, []workspace.Handle{1, 2}, s.e.registry.Handles())
	require.Equal(t, 1, a.ObserverCount(workspace.PropertyHidden))
	require.Equal(t, 1, b.ObserverCount(workspace.PropertyHidden))
}

func TestEngine_EmptyListStillLaunches(t *testing.T) {
	ws := memory.New()
	s := openStream(t, ws, liveOptions(ws))

	evs := collect(t, s, 1)
	require.Equal(t, KindLaunched, evs[0].Kind)
	require.Empty(t, evs[0].Apps)
}

func TestEngine_SkipsSelfByHandle(t *testing.T) {
	ws := memory.New()
	self := ws.NewApp(memory.AppSpec{Handle: 1, PID: 100})
	samePID := ws.NewApp(memory.AppSpec{Handle: 2, PID: 100})
	ws.SetSelf(self)
	ws.SetRunning(self, samePID)

	s := openStream(t, ws, Options{})

	require.Equal(t, []string{"launched:2"}, describe(collect(t, s, 1)))
	require.Zero(t, self.ObserverCount(workspace.PropertyTerminated))
}

func TestEngine_SkipsPseudoApplications(t *testing.T) {
	ws := memory.New()
	helper := ws.NewApp(memory.AppSpec{Handle: 1, PID: 100, BundleID: "com.example.Helper", ProcessType: "XPC!"})
	passwords := ws.NewApp(memory.AppSpec{Handle: 2, PID: 200, BundleID: "com.apple.Passwords", ProcessType: "XPC!"})
	regular := ws.NewApp(memory.AppSpec{Handle: 3, PID: 300, BundleID: "com.example.App"})
	ws.SetRunning(helper, passwords, regular)

	rec := newFakeRecorder()
	opts := liveOptions(ws)
	opts.Recorder = rec
	s := openStream(t, ws, opts)

	require.Equal(t, []string{"launched:2,3"}, describe(collect(t, s, 1)))
	s.e.sync()
	require.Equal(t, 1, rec.filtered[ReasonPseudoApplication])
	require.Equal(t, 2, rec.registered)
}

func TestEngine_CustomExceptionsReplaceDefault(t *testing.T) {
	ws := memory.New()
	passwords := ws.NewApp(memory.AppSpec{Handle: 1, PID: 100, BundleID: "com.apple.Passwords", ProcessType: "XPC!"})
	custom := ws.NewApp(memory.AppSpec{Handle: 2, PID: 200, BundleID: "com.example.Panel", ProcessType: "XPC!"})
	ws.SetRunning(passwords, custom)

	opts := liveOptions(ws)
	opts.ExceptionBundleIDs = []string{"com.example.Panel"}
	s := openStream(t, ws, opts)

	require.Equal(t, []string{"launched:2"}, describe(collect(t, s, 1)))
}

func TestEngine_SkipsZombies(t *testing.T) {
	ws := memory.New()
	zombie := ws.NewApp(memory.AppSpec{Handle: 1, PID: 100, Zombie: true})
	alive := ws.NewApp(memory.AppSpec{Handle: 2, PID: 200})
	ws.SetRunning(zombie, alive)

	rec := newFakeRecorder()
	opts := liveOptions(ws)
	opts.Recorder = rec
	s := openStream(t, ws, opts)

	require.Equal(t, []string{"launched:2"}, describe(collect(t, s, 1)))
	s.e.sync()
	require.Equal(t, 1, rec.filtered[ReasonZombie])
}

// shortTable answers every query with a truncated record.
type shortTable struct{}

func (shortTable) Query(_ [4]int32, size int) (sysctl.ProcRecord, int, error) {
	return sysctl.ProcRecord{Stat: sysctl.StateZombie}, size - 1, nil
}

func TestEngine_ShortProcessRecordRegisters(t *testing.T) {
	ws := memory.New()
	a := ws.NewApp(memory.AppSpec{Handle: 1, PID: 100})
	ws.SetRunning(a)

	opts := liveOptions(ws)
	opts.Zombies = sysctl.NewDetector(shortTable{})
	s := openStream(t, ws, opts)

	require.Equal(t, []string{"launched:1"}, describe(collect(t, s, 1)))
	s.e.sync()
	require.True(t, s.e.registry.Contains(1))
}

func TestEngine_MetadataFilterBehindFlag(t *testing.T) {
	newWorkspace := func() *memory.Workspace {
		ws := memory.New()
		ws.SetRunning(
			ws.NewApp(memory.AppSpec{Handle: 1, PID: 100, PackageType: "XPC!"}),
			ws.NewApp(memory.AppSpec{Handle: 2, PID: 200, PackageType: "APPL"}),
			ws.NewApp(memory.AppSpec{Handle: 3, PID: 300, PackageType: "XPC!", BundleID: "com.apple.Passwords"}),
		)
		return ws
	}

	t.Run("off", func(t *testing.T) {
		ws := newWorkspace()
		s := openStream(t, ws, liveOptions(ws))
		require.Equal(t, []string{"launched:1,2,3"}, describe(collect(t, s, 1)))
	})

	t.Run("on", func(t *testing.T) {
		ws := newWorkspace()
		opts := liveOptions(ws)
		opts.Flags = flags.New(map[string]bool{flags.FlagMetadataClassifier: true})
		s := openStream(t, ws, opts)
		require.Equal(t, []string{"launched:2,3"}, describe(collect(t, s, 1)))
	})
}

func TestEngine_Frontmost(t *testing.T) {
	ws := memory.New()
	a := ws.NewApp(memory.AppSpec{Handle: 1, PID: 100})
	b := ws.NewApp(memory.AppSpec{Handle: 2, PID: 200})
	stranger := ws.NewApp(memory.AppSpec{Handle: 3, PID: 300})
	ws.SetRunning(a, b)
	ws.SetFrontmost(a)

	s := openStream(t, ws, liveOptions(ws))
	require.Equal(t, []string{"launched:1,2", "activated:1"}, describe(collect(t, s, 2)))

	ws.SetFrontmost(b)
	ws.SetFrontmost(nil)
	ws.SetFrontmost(stranger)
	ws.SetFrontmost(a)

	require.Equal(t, []string{"activated:2", "activated:1"}, describe(collect(t, s, 2)))
	assertNoMore(t, s)
}

func TestEngine_FrontmostBeforeRegistration(t *testing.T) {
	ws := memory.New()
	a := ws.NewApp(memory.AppSpec{Handle: 1, PID: 100})
	ws.SetFrontmost(a)

	s := openStream(t, ws, liveOptions(ws))
	require.Equal(t, []string{"launched:"}, describe(collect(t, s, 1)))
	assertNoMore(t, s)
}

func TestEngine_AlreadyTerminatedCandidateIsFiltered(t *testing.T) {
	ws := memory.New()
	a := ws.NewApp(memory.AppSpec{Handle: 1, PID: 100})
	a.Terminate()
	ws.SetRunning(a)

	rec := newFakeRecorder()
	s := openStream(t, ws, Options{Recorder: rec})

	require.Equal(t, []string{"launched:"}, describe(collect(t, s, 1)))
	assertNoMore(t, s)
	require.Zero(t, s.e.registry.Len())
	require.Zero(t, a.ObserverCount(workspace.PropertyTerminated))
	require.Equal(t, 1, rec.filtered[ReasonTerminated])
}

func TestEngine_TerminatedAppInLaterListIsNotReRegistered(t *testing.T) {
	ws := memory.New()
	a := ws.NewApp(memory.AppSpec{Handle: 1, PID: 100})
	b := ws.NewApp(memory.AppSpec{Handle: 2, PID: 200})
	ws.SetRunning(a)

	s := openStream(t, ws, Options{})
	require.Equal(t, []string{"launched:1"}, describe(collect(t, s, 1)))

	a.Terminate()
	require.Equal(t, []string{"terminated:1"}, describe(collect(t, s, 1)))

	// The list still carries a after its termination.
	ws.SetRunning(a, b)

	require.Equal(t, []string{"launched:2"}, describe(collect(t, s, 1)))
	assertNoMore(t, s)
	require.Zero(t, a.ObserverCount(workspace.PropertyHidden))
	require.Equal(t, 1, b.ObserverCount(workspace.PropertyHidden))
	require.Equal(t, 1, s.e.registry.Len())
}

func TestEngine_TerminatedChangeWithoutFlagIsIgnored(t *testing.T) {
	ws := memory.New()
	a := ws.NewApp(memory.AppSpec{Handle: 1, PID: 100})
	ws.SetRunning(a)

	s := openStream(t, ws, Options{})
	collect(t, s, 1)

	a.Notify(workspace.PropertyTerminated)
	assertNoMore(t, s)
	require.Equal(t, 1, s.e.registry.Len())

	a.Terminate()
	require.Equal(t, []string{"terminated:1"}, describe(collect(t, s, 1)))
}

func TestEngine_Tracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ws := memory.New()
	a := ws.NewApp(memory.AppSpec{Handle: 1, PID: 100})
	z := ws.NewApp(memory.AppSpec{Handle: 2, PID: 200, Zombie: true})
	ws.SetRunning(a, z)

	opts := liveOptions(ws)
	opts.Tracer = tp.Tracer("test")
	s := openStream(t, ws, opts)
	collect(t, s, 1)

	a.Terminate()
	collect(t, s, 1)
	s.e.sync()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, tracing.SpanListChanged, spans[0].Name)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, tracing.EventFiltered, spans[0].Events[0].Name)
	assert.Equal(t, tracing.SpanTerminated, spans[1].Name)
}

func TestStream_CloseInvalidatesOnlyItsOwnSubscriptions(t *testing.T) {
	ws := memory.New()
	a := ws.NewApp(memory.AppSpec{Handle: 1, PID: 100})
	ws.SetRunning(a)

	first := openStream(t, ws, liveOptions(ws))
	second := openStream(t, ws, liveOptions(ws))
	collect(t, first, 1)
	collect(t, second, 1)
	require.Equal(t, 4, ws.ObserverCount())
	require.Equal(t, 2, a.ObserverCount(workspace.PropertyHidden))

	first.Close()
	first.Close()

	require.Equal(t, 2, ws.ObserverCount())
	require.Equal(t, 1, a.ObserverCount(workspace.PropertyHidden))

	_, ok := <-first.C()
	require.False(t, ok, "closed stream channel must be closed")

	a.SetHidden(true)
	require.Equal(t, []string{"hidden:1"}, describe(collect(t, second, 1)))
}

func TestStream_StreamsAreIndependent(t *testing.T) {
	ws := memory.New()
	a := ws.NewApp(memory.AppSpec{Handle: 1, PID: 100})
	ws.SetRunning(a)

	first := openStream(t, ws, Options{})
	collect(t, first, 1)
	a.SetHidden(true)
	collect(t, first, 1)

	// No replay: the second stream starts from the current list.
	second := openStream(t, ws, Options{})
	require.Equal(t, []string{"launched:1"}, describe(collect(t, second, 1)))
	assertNoMore(t, second)
	require.NotEqual(t, first.ID(), second.ID())
}

func TestStream_ContextCancelCloses(t *testing.T) {
	ws := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	s := NewClient(Options{Workspace: ws}).Events(ctx)

	cancel()

	select {
	case <-s.Done():
	case <-time.After(eventTimeout):
		require.Fail(t, "stream not closed after cancel")
	}
	require.Zero(t, ws.ObserverCount())

	for range s.C() {
	}
}

func TestStream_Next(t *testing.T) {
	ws := memory.New()
	s := openStream(t, ws, Options{})

	ev, ok := s.Next(context.Background())
	require.True(t, ok)
	require.Equal(t, KindLaunched, ev.Kind)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok = s.Next(ctx)
	require.False(t, ok)
}

func TestClient_RecorderLifecycle(t *testing.T) {
	ws := memory.New()
	a := ws.NewApp(memory.AppSpec{Handle: 1, PID: 100})
	ws.SetRunning(a)

	rec := newFakeRecorder()
	s := NewClient(Options{Workspace: ws, Recorder: rec}).Events(context.Background())
	collect(t, s, 1)
	s.e.sync()
	require.Equal(t, 1, rec.watchers)
	require.Equal(t, 1, rec.registered)
	require.Equal(t, 1, rec.events["launched"])

	s.Close()
	require.Zero(t, rec.watchers)
	require.Zero(t, rec.registered)
}

func TestNewClient_RequiresWorkspace(t *testing.T) {
	require.Panics(t, func() { NewClient(Options{}) })
}
