package repository

import "github.com/dlystyr/fantasypl-mcp/pkg/logger"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithPersister writes every commit through p before it becomes visible.
func WithPersister(p Persister) Option {
	return func(s *MemoryStore) {
		if p != nil {
			s.persister = p
		}
	}
}

// WithRetainedEpochs sets how many committed snapshots stay reachable via At.
func WithRetainedEpochs(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.retain = n
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *MemoryStore) {
		if l != nil {
			s.logger = l
		}
	}
}
