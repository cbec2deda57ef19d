package pubsub

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueue_DeliversInOrder(t *testing.T) {
	q := NewQueue[int]()
	defer q.Close()

	for i := 0; i < 100; i++ {
		require.True(t, q.Push(i))
	}

	for i := 0; i < 100; i++ {
		select {
		case v := <-q.Out():
			require.Equal(t, i, v)
		case <-time.After(time.Second):
			require.Fail(t, "timeout waiting for item", "index %d", i)
		}
	}
}

func TestQueue_PushAfterCloseFails(t *testing.T) {
	q := NewQueue[string]()
	q.Close()
	q.Close() // idempotent

	require.False(t, q.Push("late"))

	select {
	case _, ok := <-q.Out():
		require.False(t, ok, "out should be closed")
	case <-time.After(time.Second):
		require.Fail(t, "out not closed after Close")
	}
}

func TestQueue_CloseDiscardsPending(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 10; i++ {
		q.Push(i)
	}
	q.Close()
	require.Equal(t, 0, q.Len())

	// At most the item already handed to the pump can still arrive.
	count := 0
	for range q.Out() {
		count++
	}
	require.LessOrEqual(t, count, 1)
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue[int]()
	defer q.Close()

	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(i)
			}
		}()
	}
	wg.Wait()

	for i := 0; i < producers*perProducer; i++ {
		select {
		case <-q.Out():
		case <-time.After(time.Second):
			require.Fail(t, "timeout draining queue", "received %d", i)
		}
	}
}
