package queue

import "time"

// Option applies a configuration option to the SyncQueue.
type Option func(*SyncQueue)

// WithCapacity sets how many triggers may wait behind the running sync.
func WithCapacity(capacity int) Option {
	return func(q *SyncQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithClock overrides the clock used to stamp triggers.
func WithClock(now func() time.Time) Option {
	return func(q *SyncQueue) {
		if now != nil {
			q.now = now
		}
	}
}
