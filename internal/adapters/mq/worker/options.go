package worker

import (
	"time"

	"github.com/dlystyr/fantasypl-mcp/pkg/logger"
)

// Option applies a configuration option to the SyncWorker.
type Option func(*SyncWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *SyncWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *SyncWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithRunTimeout bounds a single sync run.
func WithRunTimeout(d time.Duration) Option {
	return func(w *SyncWorker) {
		if d > 0 {
			w.runTimeout = d
		}
	}
}

// WithResultHook is called after every run, successful or not.
func WithResultHook(fn func(Result)) Option {
	return func(w *SyncWorker) {
		w.hook = fn
	}
}
