// Package workspace defines the OS application-layer collaborator the watcher
// consumes: a live list of running applications, the frontmost application,
// and per-application property observation.
//
// Implementations deliver callbacks on their own goroutines. Consumers must not
// do blocking work inside a callback.
package workspace

import "fmt"

// PID is an OS process identifier.
type PID int32

// Handle is the opaque identity of one running application instance.
// Two Application values with the same Handle are the same live process;
// PIDs may be recycled, handles are not.
type Handle uint64

// ActivationPolicy mirrors the application-layer activation policy.
type ActivationPolicy int

const (
	PolicyRegular ActivationPolicy = iota
	PolicyAccessory
	PolicyProhibited
)

func (p ActivationPolicy) String() string {
	switch p {
	case PolicyRegular:
		return "regular"
	case PolicyAccessory:
		return "accessory"
	case PolicyProhibited:
		return "prohibited"
	default:
		return "unknown"
	}
}

// ParseActivationPolicy is the inverse of ActivationPolicy.String.
func ParseActivationPolicy(s string) (ActivationPolicy, bool) {
	switch s {
	case "regular", "":
		return PolicyRegular, true
	case "accessory":
		return PolicyAccessory, true
	case "prohibited":
		return PolicyProhibited, true
	default:
		return PolicyRegular, false
	}
}

// MarshalText encodes the policy by name.
func (p ActivationPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a policy name.
func (p *ActivationPolicy) UnmarshalText(b []byte) error {
	v, ok := ParseActivationPolicy(string(b))
	if !ok {
		return fmt.Errorf("unknown activation policy %q", b)
	}
	*p = v
	return nil
}

// Property names one of the four observable application attributes.
type Property int

const (
	PropertyFinishedLaunching Property = iota
	PropertyActivationPolicy
	PropertyHidden
	PropertyTerminated
)

// Properties lists every observable property in subscription order.
var Properties = [...]Property{
	PropertyFinishedLaunching,
	PropertyActivationPolicy,
	PropertyHidden,
	PropertyTerminated,
}

func (p Property) String() string {
	switch p {
	case PropertyFinishedLaunching:
		return "finished_launching"
	case PropertyActivationPolicy:
		return "activation_policy"
	case PropertyHidden:
		return "hidden"
	case PropertyTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ParseProperty is the inverse of Property.String.
func ParseProperty(s string) (Property, bool) {
	for _, p := range Properties {
		if p.String() == s {
			return p, true
		}
	}
	return 0, false
}

// Change is the new value delivered to a property observer.
// Flag carries boolean properties; Policy carries PropertyActivationPolicy.
type Change struct {
	Property Property
	Flag     bool
	Policy   ActivationPolicy
}

// Observation is a live subscription.
type Observation interface {
	// Invalidate stops the subscription. It is idempotent, and no callback
	// for this subscription starts after it returns.
	Invalidate()
}

// Application is a running application as presented by the OS.
type Application interface {
	Handle() Handle
	PID() PID
	BundleIdentifier() string
	LocalizedName() string

	IsFinishedLaunching() bool
	ActivationPolicy() ActivationPolicy
	IsHidden() bool
	IsTerminated() bool

	// Observe subscribes fn to changes of p. When initial is set, fn is also
	// called once with the current value before Observe returns.
	Observe(p Property, initial bool, fn func(Change)) Observation
}

// BundleMetadata is implemented by applications that can report their bundle's
// declared package type (CFBundlePackageType, e.g. "APPL" or "XPC!").
type BundleMetadata interface {
	BundlePackageType() (string, bool)
}

// Workspace is the application-layer notification source.
type Workspace interface {
	// ObserveRunningApplications delivers the full running list on every change,
	// and once immediately when initial is set.
	ObserveRunningApplications(initial bool, fn func([]Application)) Observation

	// ObserveFrontmostApplication delivers the frontmost application (nil for
	// none) on every change, and once immediately when initial is set.
	ObserveFrontmostApplication(initial bool, fn func(Application)) Observation

	// CurrentApplication returns the watcher's own process, or nil if it is
	// not an application-layer process.
	CurrentApplication() Application
}
