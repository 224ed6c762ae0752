// Package queue holds pending sync requests between the places that ask for
// a sync (scheduler, HTTP, start-up) and the single worker that runs it.
//
// Syncs are idempotent refreshes of the same upstream data, so the queue is
// small and a full queue coalesces new triggers into the pending one.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dlystyr/fantasypl-mcp/pkg/metrics"
)

const defaultCapacity = 1

// Trigger sources.
const (
	SourceSchedule = "schedule"
	SourceAPI      = "api"
	SourceStartup  = "startup"
	SourceTool     = "tool"
)

// Trigger is one request to refresh the canonical store.
type Trigger struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	RequestedAt time.Time `json:"requested_at"`
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue records a sync request. A full queue returns the pending
	// trigger together with ErrCoalesced.
	Enqueue(ctx context.Context, source string) (Trigger, error)

	// Dequeue returns a channel that will receive triggers as they become
	// available. The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Trigger

	// Len returns the current number of pending triggers.
	Len() int

	// Close stops accepting triggers and closes the dequeue channel.
	Close() error
}

// SyncQueue implements Queue using a buffered channel.
type SyncQueue struct {
	triggers chan Trigger
	capacity int
	now      func() time.Time

	mu      sync.RWMutex
	closed  bool
	pending Trigger
}

// NewSyncQueue creates a queue with the given options.
func NewSyncQueue(opts ...Option) *SyncQueue {
	q := &SyncQueue{
		capacity: defaultCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.triggers = make(chan Trigger, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue implements Queue.
func (q *SyncQueue) Enqueue(ctx context.Context, source string) (Trigger, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		metrics.RecordQueueDropped("closed")
		return Trigger{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueDropped("cancelled")
		return Trigger{}, err
	}

	t := Trigger{ID: uuid.NewString(), Source: source, RequestedAt: q.now().UTC()}
	select {
	case q.triggers <- t:
		q.pending = t
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.triggers))
		return t, nil
	default:
		metrics.RecordQueueDropped("coalesced")
		return q.pending, ErrCoalesced
	}
}

// Dequeue implements Queue.
func (q *SyncQueue) Dequeue(ctx context.Context) <-chan Trigger {
	out := make(chan Trigger)
	go func() {
		defer close(out)
		for t := range q.triggers {
			metrics.UpdateQueueSize(len(q.triggers))
			select {
			case out <- t:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len implements Queue.
func (q *SyncQueue) Len() int {
	size := len(q.triggers)
	metrics.UpdateQueueSize(size)
	return size
}

// Close implements Queue.
func (q *SyncQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.triggers)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *SyncQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
