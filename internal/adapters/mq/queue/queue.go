// Package queue carries session commands to the worker that owns the session.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/upsetlens/internal/adapters/repository"
	"github.com/okian/upsetlens/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Command is one mutation of one session. Apply runs on the worker goroutine
// that owns the session; its error is sent on Reply, which must be buffered.
type Command struct {
	SessionID string
	Name      string
	Apply     func(s *repository.Session) error
	Enqueued  time.Time
	Reply     chan error
}

// NewCommand builds a command with a buffered reply channel.
func NewCommand(sessionID, name string, apply func(s *repository.Session) error) Command {
	return Command{
		SessionID: sessionID,
		Name:      name,
		Apply:     apply,
		Enqueued:  time.Now(),
		Reply:     make(chan error, 1),
	}
}

// Queue provides non-blocking enqueue and channel-based dequeue.
type Queue interface {
	// Enqueue adds a command. It returns ErrBackpressure when full and
	// ErrStopped after Close.
	Enqueue(ctx context.Context, c Command) error
	// Dequeue returns the channel commands are delivered on. It is closed
	// when the queue is closed and drained. Once ctx is done the queue is
	// closed and every pending command is answered with ErrStopped.
	Dequeue(ctx context.Context) <-chan Command
	// Len returns the number of pending commands.
	Len(ctx context.Context) int
	// Close stops accepting commands.
	Close() error
	// IsClosed reports whether Close was called.
	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	commands chan Command
	capacity int
	name     string

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		name:     "0",
	}
	for _, opt := range opts {
		opt(q)
	}
	q.commands = make(chan Command, q.capacity)
	metrics.UpdateCommandQueueSize(q.name, 0)
	return q
}

// Enqueue implements Queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, c Command) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordCommandRejected("stopped")
		return ErrStopped
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordCommandRejected("context_cancelled")
		return err
	}
	select {
	case q.commands <- c:
		metrics.UpdateCommandQueueSize(q.name, len(q.commands))
		return nil
	case <-ctx.Done():
		metrics.RecordCommandRejected("context_cancelled")
		return ctx.Err()
	default:
		metrics.RecordCommandRejected("backpressure")
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrBackpressure
	}
}

// Dequeue implements Queue.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Command {
	out := make(chan Command)
	go func() {
		defer close(out)
		for c := range q.commands {
			select {
			case out <- c:
				metrics.UpdateCommandQueueSize(q.name, len(q.commands))
			case <-ctx.Done():
				c.Reply <- ErrStopped
				q.abandon()
				return
			}
		}
	}()
	return out
}

// abandon closes the queue and answers every pending command.
func (q *InMemoryQueue) abandon() {
	_ = q.Close()
	for c := range q.commands {
		metrics.RecordCommandRejected("stopped")
		c.Reply <- ErrStopped
	}
	metrics.UpdateCommandQueueSize(q.name, 0)
}

// Len implements Queue.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	return len(q.commands)
}

// Close implements Queue. Pending commands are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.commands)
	q.closed = true
	return nil
}

// IsClosed implements Queue.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
