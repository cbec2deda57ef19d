package watcher

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zjrosen/appwatch/internal/workspace"
)

// EventKind tags an Event.
type EventKind int

const (
	KindLaunched EventKind = iota
	KindFinishedLaunching
	KindActivated
	KindTerminated
	KindHidden
	KindUnhidden
	KindActivationPolicyChanged
)

// Kinds lists every event kind.
var Kinds = [...]EventKind{
	KindLaunched,
	KindFinishedLaunching,
	KindActivated,
	KindTerminated,
	KindHidden,
	KindUnhidden,
	KindActivationPolicyChanged,
}

func (k EventKind) String() string {
	switch k {
	case KindLaunched:
		return "launched"
	case KindFinishedLaunching:
		return "finished_launching"
	case KindActivated:
		return "activated"
	case KindTerminated:
		return "terminated"
	case KindHidden:
		return "hidden"
	case KindUnhidden:
		return "unhidden"
	case KindActivationPolicyChanged:
		return "activation_policy_changed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// App is an immutable snapshot of an application taken when an event was
// produced.
type App struct {
	Handle            workspace.Handle           `json:"handle"`
	PID               workspace.PID              `json:"pid"`
	BundleID          string                     `json:"bundle_id,omitempty"`
	Name              string                     `json:"name,omitempty"`
	FinishedLaunching bool                       `json:"finished_launching"`
	ActivationPolicy  workspace.ActivationPolicy `json:"activation_policy"`
	Hidden            bool                       `json:"hidden"`
	Terminated        bool                       `json:"terminated"`
}

// Snapshot copies the current state of a.
func Snapshot(a workspace.Application) App {
	return App{
		Handle:            a.Handle(),
		PID:               a.PID(),
		BundleID:          a.BundleIdentifier(),
		Name:              a.LocalizedName(),
		FinishedLaunching: a.IsFinishedLaunching(),
		ActivationPolicy:  a.ActivationPolicy(),
		Hidden:            a.IsHidden(),
		Terminated:        a.IsTerminated(),
	}
}

func (a App) String() string {
	name := a.Name
	if name == "" {
		name = a.BundleID
	}
	return fmt.Sprintf("%s(%d)", name, a.PID)
}

// Event is one lifecycle event. Launched carries Apps; every other kind
// carries App.
type Event struct {
	Kind EventKind
	Apps []App
	App  App
}

func (e Event) String() string {
	if e.Kind != KindLaunched {
		return fmt.Sprintf("%s %s", e.Kind, e.App)
	}
	names := make([]string, len(e.Apps))
	for i, a := range e.Apps {
		names[i] = a.String()
	}
	return fmt.Sprintf("%s [%s]", e.Kind, strings.Join(names, ", "))
}

type eventJSON struct {
	Kind EventKind `json:"kind"`
	Apps []App     `json:"apps,omitempty"`
	App  *App      `json:"app,omitempty"`
}

// MarshalJSON emits {"kind":..., "apps":[...]} for Launched and
// {"kind":..., "app":{...}} otherwise.
func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{Kind: e.Kind}
	if e.Kind == KindLaunched {
		out.Apps = e.Apps
		if out.Apps == nil {
			out.Apps = []App{}
		}
	} else {
		app := e.App
		out.App = &app
	}
	return json.Marshal(out)
}
