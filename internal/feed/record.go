// Package feed drives an in-memory workspace from recorded notifications:
// JSON lines appended to a file by a bridge process, or a YAML script.
package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/zjrosen/appwatch/internal/workspace"
	"github.com/zjrosen/appwatch/internal/workspace/memory"
)

var (
	// ErrUnknownOp is returned for a record whose op is not recognized.
	ErrUnknownOp = errors.New("unknown op")
	// ErrUnknownHandle is returned when a record names an application that
	// was never declared.
	ErrUnknownHandle = errors.New("unknown handle")
	// ErrInvalidRecord is returned for a record with missing or malformed fields.
	ErrInvalidRecord = errors.New("invalid record")
)

// Ops.
const (
	OpSelf      = "self"
	OpApps      = "apps"
	OpLaunch    = "launch"
	OpFrontmost = "frontmost"
	OpSet       = "set"
	OpNotify    = "notify"
	OpZombie    = "zombie"
)

// AppRecord declares an application.
type AppRecord struct {
	Handle            uint64 `json:"handle" yaml:"handle"`
	PID               int32  `json:"pid,omitempty" yaml:"pid"`
	BundleID          string `json:"bundle_id,omitempty" yaml:"bundle_id"`
	Name              string `json:"name,omitempty" yaml:"name"`
	FinishedLaunching bool   `json:"finished_launching,omitempty" yaml:"finished_launching"`
	ActivationPolicy  string `json:"activation_policy,omitempty" yaml:"activation_policy"`
	Hidden            bool   `json:"hidden,omitempty" yaml:"hidden"`
	ProcessType       string `json:"process_type,omitempty" yaml:"process_type"`
	PackageType       string `json:"package_type,omitempty" yaml:"package_type"`
	Zombie            bool   `json:"zombie,omitempty" yaml:"zombie"`
}

// Record is one notification.
//
//	{"op":"apps","apps":[{"handle":1,"pid":501,"bundle_id":"com.apple.finder"}]}
//	{"op":"frontmost","handle":1}
//	{"op":"set","handle":1,"property":"hidden","value":true}
type Record struct {
	Op        string `json:"op" yaml:"op"`
	AppRecord `yaml:",inline"`
	Apps      []AppRecord `json:"apps,omitempty" yaml:"apps"`
	Property  string      `json:"property,omitempty" yaml:"property"`
	Value     any         `json:"value,omitempty" yaml:"value"`
}

// DecodeLine parses one JSON line. Unknown fields are rejected.
func DecodeLine(line []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields()

	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return rec, nil
}

// Apply performs rec against ws. Property changes notify observers
// synchronously, the way the OS delivers them.
func Apply(ws *memory.Workspace, rec Record) error {
	switch rec.Op {
	case OpSelf:
		app, err := declare(ws, rec.AppRecord)
		if err != nil {
			return err
		}
		ws.SetSelf(app)

	case OpApps:
		apps := make([]*memory.App, 0, len(rec.Apps))
		for _, r := range rec.Apps {
			app, err := declare(ws, r)
			if err != nil {
				return err
			}
			apps = append(apps, app)
		}
		ws.SetRunning(apps...)

	case OpLaunch:
		app, err := declare(ws, rec.AppRecord)
		if err != nil {
			return err
		}
		ws.Launch(app)

	case OpFrontmost:
		if rec.Handle == 0 {
			ws.SetFrontmost(nil)
			return nil
		}
		app, err := lookup(ws, rec.Handle)
		if err != nil {
			return err
		}
		ws.SetFrontmost(app)

	case OpSet:
		app, err := lookup(ws, rec.Handle)
		if err != nil {
			return err
		}
		return set(app, rec.Property, rec.Value)

	case OpNotify:
		app, err := lookup(ws, rec.Handle)
		if err != nil {
			return err
		}
		p, ok := workspace.ParseProperty(rec.Property)
		if !ok {
			return fmt.Errorf("%w: unknown property %q", ErrInvalidRecord, rec.Property)
		}
		if p == workspace.PropertyTerminated && !app.IsTerminated() {
			return fmt.Errorf("%w: terminated notify for a live application", ErrInvalidRecord)
		}
		app.Notify(p)

	case OpZombie:
		app, err := lookup(ws, rec.Handle)
		if err != nil {
			return err
		}
		zombie, err := flagValue(rec.Value, true)
		if err != nil {
			return err
		}
		app.SetZombie(zombie)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownOp, rec.Op)
	}
	return nil
}

func set(app *memory.App, property string, value any) error {
	p, ok := workspace.ParseProperty(property)
	if !ok {
		return fmt.Errorf("%w: unknown property %q", ErrInvalidRecord, property)
	}

	switch p {
	case workspace.PropertyActivationPolicy:
		s, _ := value.(string)
		policy, ok := workspace.ParseActivationPolicy(s)
		if !ok {
			return fmt.Errorf("%w: activation_policy %v", ErrInvalidRecord, value)
		}
		app.SetActivationPolicy(policy)
		return nil
	}

	flag, err := flagValue(value, true)
	if err != nil {
		return err
	}
	switch p {
	case workspace.PropertyFinishedLaunching:
		app.SetFinishedLaunching(flag)
	case workspace.PropertyHidden:
		app.SetHidden(flag)
	case workspace.PropertyTerminated:
		if !flag {
			return fmt.Errorf("%w: terminated cannot be cleared", ErrInvalidRecord)
		}
		app.Terminate()
	}
	return nil
}

// flagValue accepts a bool, a boolean string, or nil for def.
func flagValue(v any, def bool) (bool, error) {
	switch x := v.(type) {
	case nil:
		return def, nil
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return false, fmt.Errorf("%w: value %q is not a boolean", ErrInvalidRecord, x)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%w: value %v is not a boolean", ErrInvalidRecord, v)
	}
}

// declare returns the app for r.Handle, creating it on first sight. Later
// declarations of a known handle keep the original attributes.
func declare(ws *memory.Workspace, r AppRecord) (*memory.App, error) {
	if r.Handle == 0 {
		return nil, fmt.Errorf("%w: handle is required", ErrInvalidRecord)
	}
	if app, ok := ws.App(workspace.Handle(r.Handle)); ok {
		return app, nil
	}

	policy, ok := workspace.ParseActivationPolicy(r.ActivationPolicy)
	if !ok {
		return nil, fmt.Errorf("%w: activation_policy %q", ErrInvalidRecord, r.ActivationPolicy)
	}
	return ws.NewApp(memory.AppSpec{
		Handle:            workspace.Handle(r.Handle),
		PID:               workspace.PID(r.PID),
		BundleID:          r.BundleID,
		Name:              r.Name,
		FinishedLaunching: r.FinishedLaunching,
		Policy:            policy,
		Hidden:            r.Hidden,
		ProcessType:       r.ProcessType,
		PackageType:       r.PackageType,
		Zombie:            r.Zombie,
	}), nil
}

func lookup(ws *memory.Workspace, h uint64) (*memory.App, error) {
	app, ok := ws.App(workspace.Handle(h))
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	return app, nil
}
