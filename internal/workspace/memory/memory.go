// Package memory is an in-process application layer. It implements
// workspace.Workspace together with the descriptor lookup and process-table
// collaborators, so the watcher can run against scripted or fed notifications
// and be tested deterministically.
//
// Callbacks run synchronously on the goroutine that made the change, the way
// key-value observation does on the real application layer.
package memory

import (
	"slices"
	"sync"

	"github.com/zjrosen/appwatch/internal/procinfo"
	"github.com/zjrosen/appwatch/internal/sysctl"
	"github.com/zjrosen/appwatch/internal/workspace"
)

// observer is one subscription. deliver and Invalidate share a mutex, so once
// Invalidate returns no callback for this observer is running or will start.
type observer[T any] struct {
	mu     sync.Mutex
	active bool
	fn     func(T)
}

func newObserver[T any](fn func(T)) *observer[T] {
	return &observer[T]{active: true, fn: fn}
}

func (o *observer[T]) deliver(v T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active {
		o.fn(v)
	}
}

func (o *observer[T]) Invalidate() {
	o.mu.Lock()
	o.active = false
	o.mu.Unlock()
}

func (o *observer[T]) isActive() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// live filters out invalidated observers. Callers hold the owning lock.
func live[T any](obs []*observer[T]) []*observer[T] {
	return slices.DeleteFunc(obs, func(o *observer[T]) bool { return !o.isActive() })
}

// Workspace is an in-memory application layer.
type Workspace struct {
	mu        sync.Mutex
	running   []*App
	byHandle  map[workspace.Handle]*App
	frontmost *App
	self      *App
	listObs   []*observer[[]workspace.Application]
	frontObs  []*observer[workspace.Application]
}

var (
	_ workspace.Workspace = (*Workspace)(nil)
	_ procinfo.Lookup     = (*Workspace)(nil)
	_ sysctl.Table        = (*Workspace)(nil)
)

// New creates an empty workspace.
func New() *Workspace {
	return &Workspace{
		byHandle: make(map[workspace.Handle]*App),
	}
}

// NewApp creates an application known to the workspace. It is not running
// until passed to SetRunning or Launch.
func (w *Workspace) NewApp(spec AppSpec) *App {
	a := newApp(spec)
	a.ws = w

	w.mu.Lock()
	w.byHandle[a.handle] = a
	w.mu.Unlock()
	return a
}

// App returns the application with handle h.
func (w *Workspace) App(h workspace.Handle) (*App, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.byHandle[h]
	return a, ok
}

// SetSelf declares the watcher's own application.
func (w *Workspace) SetSelf(a *App) {
	w.mu.Lock()
	w.self = a
	w.mu.Unlock()
}

// CurrentApplication implements workspace.Workspace.
func (w *Workspace) CurrentApplication() workspace.Application {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.self == nil {
		return nil
	}
	return w.self
}

// Running returns the current running list.
func (w *Workspace) Running() []*App {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.running)
}

// SetRunning replaces the running list and notifies list observers.
func (w *Workspace) SetRunning(apps ...*App) {
	w.mu.Lock()
	w.running = slices.Clone(apps)
	for _, a := range apps {
		w.byHandle[a.handle] = a
	}
	list, obs := w.snapshotListLocked()
	w.mu.Unlock()

	for _, o := range obs {
		o.deliver(list)
	}
}

// Launch appends a to the running list and notifies list observers.
func (w *Workspace) Launch(a *App) {
	w.mu.Lock()
	w.running = append(w.running, a)
	w.byHandle[a.handle] = a
	list, obs := w.snapshotListLocked()
	w.mu.Unlock()

	for _, o := range obs {
		o.deliver(list)
	}
}

// SetFrontmost changes the frontmost application (nil for none) and notifies
// frontmost observers.
func (w *Workspace) SetFrontmost(a *App) {
	w.mu.Lock()
	w.frontmost = a
	w.frontObs = live(w.frontObs)
	obs := slices.Clone(w.frontObs)
	front := w.frontmostLocked()
	w.mu.Unlock()

	for _, o := range obs {
		o.deliver(front)
	}
}

// ObserveRunningApplications implements workspace.Workspace.
func (w *Workspace) ObserveRunningApplications(initial bool, fn func([]workspace.Application)) workspace.Observation {
	o := newObserver(fn)

	w.mu.Lock()
	w.listObs = append(live(w.listObs), o)
	list := w.listLocked()
	w.mu.Unlock()

	if initial {
		o.deliver(list)
	}
	return o
}

// ObserveFrontmostApplication implements workspace.Workspace.
func (w *Workspace) ObserveFrontmostApplication(initial bool, fn func(workspace.Application)) workspace.Observation {
	o := newObserver(fn)

	w.mu.Lock()
	w.frontObs = append(live(w.frontObs), o)
	front := w.frontmostLocked()
	w.mu.Unlock()

	if initial {
		o.deliver(front)
	}
	return o
}

// ObserverCount returns the number of live workspace-level observers.
func (w *Workspace) ObserverCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listObs = live(w.listObs)
	w.frontObs = live(w.frontObs)
	return len(w.listObs) + len(w.frontObs)
}

// remove drops a from the running list without a list notification;
// the application layer reports terminations through the terminated
// property, not as a new launched list.
func (w *Workspace) remove(a *App) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.running = slices.DeleteFunc(w.running, func(r *App) bool { return r == a })
	if w.frontmost == a {
		w.frontmost = nil
	}
}

func (w *Workspace) snapshotListLocked() ([]workspace.Application, []*observer[[]workspace.Application]) {
	w.listObs = live(w.listObs)
	return w.listLocked(), slices.Clone(w.listObs)
}

func (w *Workspace) listLocked() []workspace.Application {
	list := make([]workspace.Application, len(w.running))
	for i, a := range w.running {
		list[i] = a
	}
	return list
}

func (w *Workspace) frontmostLocked() workspace.Application {
	if w.frontmost == nil {
		return nil
	}
	return w.frontmost
}

func (w *Workspace) byPIDLocked(pid int32) *App {
	for _, a := range w.byHandle {
		if int32(a.pid) == pid && !a.IsTerminated() {
			return a
		}
	}
	return nil
}

// ResolveSerial implements procinfo.Lookup. The serial encodes the handle.
func (w *Workspace) ResolveSerial(pid int32) (procinfo.Serial, procinfo.Status) {
	w.mu.Lock()
	a := w.byPIDLocked(pid)
	w.mu.Unlock()

	if a == nil {
		return procinfo.Serial{}, procinfo.StatusProcNotFound
	}
	return procinfo.Serial{High: uint32(a.handle >> 32), Low: uint32(a.handle)}, procinfo.StatusOK
}

// FetchDescriptor implements procinfo.Lookup.
func (w *Workspace) FetchDescriptor(serial procinfo.Serial) (procinfo.Descriptor, procinfo.Status) {
	h := workspace.Handle(uint64(serial.High)<<32 | uint64(serial.Low))
	a, ok := w.App(h)
	if !ok {
		return procinfo.Descriptor{}, procinfo.StatusProcNotFound
	}
	return procinfo.Descriptor{Type: a.ProcessType()}, procinfo.StatusOK
}

// Query implements sysctl.Table. Unknown pids produce an empty record, the
// way the kernel answers for a reaped process.
func (w *Workspace) Query(mib [4]int32, size int) (sysctl.ProcRecord, int, error) {
	w.mu.Lock()
	a := w.byPIDLocked(mib[3])
	w.mu.Unlock()

	if a == nil {
		return sysctl.ProcRecord{}, 0, nil
	}
	if a.IsZombie() {
		return sysctl.ProcRecord{Stat: sysctl.StateZombie}, size, nil
	}
	return sysctl.ProcRecord{Stat: sysctl.StateRun}, size, nil
}
