// Package watcher turns application-layer notifications into an ordered
// stream of application lifecycle events.
//
// Each stream owns an engine: the workspace subscriptions, a registry of
// per-application subscription bundles, and a serialized task loop. Pseudo
// applications, zombies and the watcher's own process are filtered out before
// registration.
package watcher

import "context"

// Client creates event streams over one workspace.
type Client struct {
	opts Options
}

// NewClient returns a Client. It panics if opts.Workspace is nil.
func NewClient(opts Options) *Client {
	if opts.Workspace == nil {
		panic("watcher: Options.Workspace is required")
	}
	return &Client{opts: opts.withDefaults()}
}

// Events starts a new, independent engine and returns its stream. The stream
// sees events from its own subscription onward. It is closed by Stream.Close
// or when ctx is cancelled.
func (c *Client) Events(ctx context.Context) *Stream {
	e := newEngine(c.opts)
	e.start()

	go func() {
		select {
		case <-ctx.Done():
			e.stop()
		case <-e.closed:
		}
	}()

	return &Stream{e: e}
}
