package watcher

import (
	"slices"

	"github.com/zjrosen/appwatch/internal/workspace"
)

// bundle is the set of property subscriptions for one registered application.
type bundle struct {
	app          workspace.Application
	observations [len(workspace.Properties)]workspace.Observation

	// launchReported dedupes FinishedLaunching between the registration-time
	// read and the change callback.
	launchReported bool
	cancelled      bool
}

// cancel invalidates every subscription. Only the first call has an effect.
func (b *bundle) cancel() bool {
	if b.cancelled {
		return false
	}
	b.cancelled = true
	for _, obs := range b.observations {
		if obs != nil {
			obs.Invalidate()
		}
	}
	return true
}

// Registry maps live applications to their subscription bundles. It is only
// touched from the engine's task loop.
type Registry struct {
	entries map[workspace.Handle]*bundle
}

func newRegistry() *Registry {
	return &Registry{entries: make(map[workspace.Handle]*bundle)}
}

// Len returns the number of registered applications.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Contains reports whether h is registered.
func (r *Registry) Contains(h workspace.Handle) bool {
	_, ok := r.entries[h]
	return ok
}

// Handles returns the registered handles in ascending order.
func (r *Registry) Handles() []workspace.Handle {
	hs := make([]workspace.Handle, 0, len(r.entries))
	for h := range r.entries {
		hs = append(hs, h)
	}
	slices.Sort(hs)
	return hs
}

func (r *Registry) get(h workspace.Handle) (*bundle, bool) {
	b, ok := r.entries[h]
	return b, ok
}

// add inserts b. It returns false, leaving the registry unchanged, if the
// handle is already present.
func (r *Registry) add(b *bundle) bool {
	h := b.app.Handle()
	if _, ok := r.entries[h]; ok {
		return false
	}
	r.entries[h] = b
	return true
}

// remove deletes h and cancels its bundle. It is the only teardown path for a
// single application; a second call for the same handle returns false.
func (r *Registry) remove(h workspace.Handle) (*bundle, bool) {
	b, ok := r.entries[h]
	if !ok {
		return nil, false
	}
	delete(r.entries, h)
	b.cancel()
	return b, true
}

// drain cancels and removes every entry.
func (r *Registry) drain() int {
	n := len(r.entries)
	for h, b := range r.entries {
		b.cancel()
		delete(r.entries, h)
	}
	return n
}
