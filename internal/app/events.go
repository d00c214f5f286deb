package app

import (
	"context"
	"sync"
	"time"
)

// eventQueue is an unbounded FIFO of work for the loop goroutine.
// post never blocks, so it is safe from any goroutine including the loop.
type eventQueue struct {
	mu     sync.Mutex
	items  []func()
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{signal: make(chan struct{}, 1)}
}

func (q *eventQueue) post(fn func()) {
	q.mu.Lock()
	q.items = append(q.items, fn)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// drain runs everything queued, including work posted while draining.
func (q *eventQueue) drain() {
	for {
		q.mu.Lock()
		items := q.items
		q.items = nil
		q.mu.Unlock()

		if len(items) == 0 {
			return
		}
		for _, fn := range items {
			fn()
		}
	}
}

// wait suspends the loop for d while running queued events.
// It returns false if ctx is cancelled first.
func (q *eventQueue) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-q.signal:
			q.drain()
		case <-timer.C:
			q.drain()
			return true
		}
	}
}
