package cache

import (
	"time"

	"github.com/dlystyr/fantasypl-mcp/pkg/logger"
)

// Option configures a ReadThrough.
type Option func(*ReadThrough)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *ReadThrough) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithKeyPrefix sets the namespace prepended to every key.
func WithKeyPrefix(prefix string) Option {
	return func(c *ReadThrough) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithTTL sets the default entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *ReadThrough) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithOperationTTLs overrides the lifetime per operation name.
func WithOperationTTLs(ttls map[string]time.Duration) Option {
	return func(c *ReadThrough) {
		for op, ttl := range ttls {
			if ttl > 0 {
				c.opTTLs[op] = ttl
			}
		}
	}
}

// WithCooldown sets how long the backend is bypassed after a failure.
func WithCooldown(d time.Duration) Option {
	return func(c *ReadThrough) {
		if d >= 0 {
			c.cooldown = d
		}
	}
}

// WithClock overrides the clock used for the cooldown.
func WithClock(now func() time.Time) Option {
	return func(c *ReadThrough) {
		if now != nil {
			c.now = now
		}
	}
}
