package events

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned to producers once the consumer has gone away, and to
// the consumer after Close.
var ErrClosed = errors.New("event queue closed")

// Queue is an unbounded multi-producer, single-consumer FIFO.
// Push never blocks; events from one producer keep their order.
type Queue struct {
	mu     sync.Mutex
	items  []Event
	closed bool

	// ready holds a token while items is non-empty.
	ready chan struct{}
	done  chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push appends ev. It fails with ErrClosed after Close.
func (q *Queue) Push(ev Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, ev)

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// Pop removes the oldest event, waiting until one is available, ctx is done
// or the queue is closed.
func (q *Queue) Pop(ctx context.Context) (Event, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return Event{}, ErrClosed
		}
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items[0] = Event{}
			q.items = q.items[1:]
			if len(q.items) > 0 {
				select {
				case q.ready <- struct{}{}:
				default:
				}
			}
			q.mu.Unlock()
			return ev, nil
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-q.done:
			return Event{}, ErrClosed
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close discards queued events and rejects further pushes. It is safe to
// call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.items = nil
	close(q.done)
}
