package watcher

import "context"

// Stream is one ordered, cancellable sequence of lifecycle events.
type Stream struct {
	e *engine
}

// ID returns the stream's instance identifier, as used in logs and spans.
func (s *Stream) ID() string {
	return s.e.id
}

// C returns the event channel. It is closed after Close or context
// cancellation; events not yet read at that point are discarded.
func (s *Stream) C() <-chan Event {
	return s.e.out.Out()
}

// Next blocks for the next event. It returns false once the stream is closed
// or ctx is done.
func (s *Stream) Next(ctx context.Context) (Event, bool) {
	select {
	case ev, ok := <-s.C():
		return ev, ok
	case <-ctx.Done():
		return Event{}, false
	}
}

// Close invalidates this stream's workspace subscriptions and every
// application subscription it installed. No callback is processed after Close
// returns. Safe to call more than once and from any goroutine.
func (s *Stream) Close() {
	s.e.stop()
}

// Done is closed once the stream has been torn down.
func (s *Stream) Done() <-chan struct{} {
	return s.e.closed
}
