// Package queue buffers outbound replies between the update handler and the
// delivery workers.
package queue

import (
	"context"
	"sync"

	"github.com/okian/scorebot/internal/domain/model"
	"github.com/okian/scorebot/pkg/metrics"
)

const defaultCapacity = 1024

// Reply is the payload type flowing through the queue.
type Reply = model.Reply

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a reply without blocking. It returns ErrFull when the
	// queue is at capacity and ErrClosed after Close.
	Enqueue(ctx context.Context, r Reply) error

	// Dequeue returns the channel consumers receive replies from. It is
	// closed once the queue is closed and drained.
	Dequeue() <-chan Reply

	// Len returns the current number of queued replies.
	Len() int

	// Close stops accepting replies. Queued replies stay readable.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	replies  chan Reply
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.replies = make(chan Reply, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a reply to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, r Reply) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return err
	}

	select {
	case q.replies <- r:
		metrics.RecordReplyEnqueued()
		metrics.UpdateQueueSize(len(q.replies))
		return nil
	default:
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns the receive side of the buffer.
func (q *InMemoryQueue) Dequeue() <-chan Reply {
	return q.replies
}

// Len returns the current number of queued replies.
func (q *InMemoryQueue) Len() int {
	size := len(q.replies)
	metrics.UpdateQueueSize(size)
	return size
}

// Close stops accepting replies; consumers drain what is left.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.replies)
	q.closed = true
	return nil
}

// IsClosed reports whether Close has been called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
