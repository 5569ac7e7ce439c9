package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/terakael/flowrs/internal/tui/model"
)

// ErrQueueClosed is returned by Push and Pop after Close.
var ErrQueueClosed = errors.New("command queue closed")

// Queue is a FIFO of commands with one producer (the event loop) and one
// consumer (the worker). With capacity 0 it is unbounded; otherwise Push
// waits for room instead of dropping.
type Queue struct {
	mu       sync.Mutex
	items    []model.Command
	capacity int
	closed   bool

	ready chan struct{}
	space chan struct{}
}

// NewQueue returns a queue holding at most capacity commands, or any
// number when capacity <= 0.
func NewQueue(capacity int) *Queue {
	return &Queue{
		capacity: max(capacity, 0),
		ready:    make(chan struct{}, 1),
		space:    make(chan struct{}, 1),
	}
}

// Push appends cmd, waiting while a bounded queue is full.
func (q *Queue) Push(ctx context.Context, cmd model.Command) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrQueueClosed
		}
		if q.capacity == 0 || len(q.items) < q.capacity {
			q.items = append(q.items, cmd)
			q.mu.Unlock()
			signal(q.ready)
			return nil
		}
		q.mu.Unlock()

		select {
		case <-q.space:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pop removes the oldest command, waiting until one is available.
// Commands queued before Close are still delivered.
func (q *Queue) Pop(ctx context.Context) (model.Command, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			cmd := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			signal(q.space)
			return cmd, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting commands and wakes any waiter.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	signal(q.ready)
	signal(q.space)
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
