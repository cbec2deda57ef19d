package memory

import (
	"sync"

	"github.com/zjrosen/appwatch/internal/procinfo"
	"github.com/zjrosen/appwatch/internal/workspace"
)

// AppSpec describes an application to create.
type AppSpec struct {
	Handle            workspace.Handle
	PID               workspace.PID
	BundleID          string
	Name              string
	FinishedLaunching bool
	Policy            workspace.ActivationPolicy
	Hidden            bool

	// ProcessType is the descriptor type code; empty means "APPL".
	ProcessType string
	// PackageType is the bundle's declared package type; empty means unknown.
	PackageType string
	Zombie      bool
}

// App is an in-memory running application.
type App struct {
	handle   workspace.Handle
	pid      workspace.PID
	bundleID string
	name     string

	mu                sync.Mutex
	finishedLaunching bool
	policy            workspace.ActivationPolicy
	hidden            bool
	terminated        bool
	processType       procinfo.TypeCode
	packageType       string
	zombie            bool
	observers         map[workspace.Property][]*observer[workspace.Change]

	ws *Workspace
}

var (
	_ workspace.Application    = (*App)(nil)
	_ workspace.BundleMetadata = (*App)(nil)
)

func newApp(spec AppSpec) *App {
	processType := procinfo.TypeApplication
	if spec.ProcessType != "" {
		processType = procinfo.FourCC(spec.ProcessType)
	}
	return &App{
		handle:            spec.Handle,
		pid:               spec.PID,
		bundleID:          spec.BundleID,
		name:              spec.Name,
		finishedLaunching: spec.FinishedLaunching,
		policy:            spec.Policy,
		hidden:            spec.Hidden,
		processType:       processType,
		packageType:       spec.PackageType,
		zombie:            spec.Zombie,
		observers:         make(map[workspace.Property][]*observer[workspace.Change]),
	}
}

func (a *App) Handle() workspace.Handle { return a.handle }
func (a *App) PID() workspace.PID       { return a.pid }
func (a *App) BundleIdentifier() string { return a.bundleID }
func (a *App) LocalizedName() string    { return a.name }

func (a *App) IsFinishedLaunching() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finishedLaunching
}

func (a *App) ActivationPolicy() workspace.ActivationPolicy {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.policy
}

func (a *App) IsHidden() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hidden
}

func (a *App) IsTerminated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.terminated
}

// ProcessType returns the descriptor type code.
func (a *App) ProcessType() procinfo.TypeCode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.processType
}

// BundlePackageType implements workspace.BundleMetadata.
func (a *App) BundlePackageType() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.packageType, a.packageType != ""
}

// IsZombie reports the simulated zombie state.
func (a *App) IsZombie() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.zombie
}

// SetZombie changes the simulated zombie state. It produces no notification.
func (a *App) SetZombie(zombie bool) {
	a.mu.Lock()
	a.zombie = zombie
	a.mu.Unlock()
}

// Observe implements workspace.Application.
func (a *App) Observe(p workspace.Property, initial bool, fn func(workspace.Change)) workspace.Observation {
	o := newObserver(fn)

	a.mu.Lock()
	a.observers[p] = append(live(a.observers[p]), o)
	current := a.changeLocked(p)
	a.mu.Unlock()

	if initial {
		o.deliver(current)
	}
	return o
}

// ObserverCount returns the number of live observers for p.
func (a *App) ObserverCount(p workspace.Property) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers[p] = live(a.observers[p])
	return len(a.observers[p])
}

// SetFinishedLaunching changes the finished-launching flag.
func (a *App) SetFinishedLaunching(v bool) {
	a.set(workspace.PropertyFinishedLaunching, func() { a.finishedLaunching = v })
}

// SetActivationPolicy changes the activation policy.
func (a *App) SetActivationPolicy(p workspace.ActivationPolicy) {
	a.set(workspace.PropertyActivationPolicy, func() { a.policy = p })
}

// SetHidden changes the hidden flag.
func (a *App) SetHidden(v bool) {
	a.set(workspace.PropertyHidden, func() { a.hidden = v })
}

// Terminate marks the application terminated, notifies terminated observers
// and drops it from its workspace's running list.
func (a *App) Terminate() {
	a.set(workspace.PropertyTerminated, func() { a.terminated = true })

	a.mu.Lock()
	ws := a.ws
	a.mu.Unlock()
	if ws != nil {
		ws.remove(a)
	}
}

// Notify re-delivers the current value of p to its observers without
// changing it, as a duplicate OS notification would.
func (a *App) Notify(p workspace.Property) {
	a.set(p, func() {})
}

func (a *App) set(p workspace.Property, mutate func()) {
	a.mu.Lock()
	mutate()
	a.observers[p] = live(a.observers[p])
	obs := append([]*observer[workspace.Change](nil), a.observers[p]...)
	change := a.changeLocked(p)
	a.mu.Unlock()

	for _, o := range obs {
		o.deliver(change)
	}
}

func (a *App) changeLocked(p workspace.Property) workspace.Change {
	c := workspace.Change{Property: p}
	switch p {
	case workspace.PropertyFinishedLaunching:
		c.Flag = a.finishedLaunching
	case workspace.PropertyActivationPolicy:
		c.Policy = a.policy
	case workspace.PropertyHidden:
		c.Flag = a.hidden
	case workspace.PropertyTerminated:
		c.Flag = a.terminated
	}
	return c
}
