package pubsub

import (
	"context"
	"sync"
	"time"
)

// Broker is a generic pub/sub event broker.
// Every subscriber gets its own unbounded Queue, so Publish never blocks
// and never drops; a slow subscriber only delays itself.
type Broker[T any] struct {
	subs map[*Queue[Event[T]]]struct{}
	mu   sync.RWMutex
	done chan struct{}
}

// NewBroker creates a new broker.
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{
		subs: make(map[*Queue[Event[T]]]struct{}),
		done: make(chan struct{}),
	}
}

// Subscribe creates a new subscription channel.
// The channel is automatically closed when ctx is cancelled.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Check if broker is closed
	select {
	case <-b.done:
		ch := make(chan Event[T])
		close(ch)
		return ch
	default:
	}

	sub := NewQueue[Event[T]]()
	b.subs[sub] = struct{}{}

	// Cleanup goroutine
	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
			return // Close already released every queue
		}
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		sub.Close()
	}()

	return sub.Out()
}

// Publish sends an event to all subscribers.
func (b *Broker[T]) Publish(eventType EventType, payload T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	select {
	case <-b.done:
		return
	default:
	}

	event := Event[T]{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	for sub := range b.subs {
		sub.Push(event)
	}
}

// Close shuts down the broker and all subscriber channels.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return // Already closed
	default:
	}

	close(b.done)
	for sub := range b.subs {
		sub.Close()
	}
	b.subs = nil
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
