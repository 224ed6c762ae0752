package queue

import "errors"

// Sentinel errors for enqueue failures.
var (
	ErrClosed    = errors.New("sync queue closed")
	ErrCoalesced = errors.New("sync already pending")
)
