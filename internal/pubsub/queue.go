package pubsub

import "sync"

// Queue is an unbounded FIFO mailbox.
// Push never blocks; items are delivered on Out in the order they were pushed.
// A consumer that stops reading makes the queue grow.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	signal chan struct{}
	out    chan T
	done   chan struct{}
	closed bool
}

// NewQueue creates a queue and starts its delivery goroutine.
func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{
		signal: make(chan struct{}, 1),
		out:    make(chan T),
		done:   make(chan struct{}),
	}
	go q.pump()
	return q
}

// Push appends v to the queue. Returns false if the queue is closed.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
		// pump already has a wakeup queued
	}
	return true
}

// Out returns the delivery channel. It is closed after Close.
func (q *Queue[T]) Out() <-chan T {
	return q.out
}

// Len returns the number of items not yet handed to the delivery goroutine.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting items and discards anything still pending.
// Safe to call more than once.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.items = nil
	close(q.done)
}

func (q *Queue[T]) pump() {
	defer close(q.out)

	for {
		select {
		case <-q.done:
			return
		case <-q.signal:
		}

		for {
			v, ok := q.pop()
			if !ok {
				break
			}
			select {
			case q.out <- v:
			case <-q.done:
				return
			}
		}
	}
}

func (q *Queue[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.closed || len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}
