// Package cache provides the read-through result cache and its transports.
package cache

import (
	"context"
	"time"
)

// Backend stores opaque values under string keys with a time to live.
type Backend interface {
	// Get returns the value stored under key and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// SetNX stores value under key unless a live value already exists.
	// It reports whether the value was stored.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Close releases the backend's resources.
	Close() error
}
