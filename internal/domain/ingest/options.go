package ingest

import (
	"time"

	"github.com/dlystyr/fantasypl-mcp/pkg/logger"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRetryPolicy sets the policy applied to every upstream fetch.
func WithRetryPolicy(rp RetryPolicy) Option {
	return func(p *Pipeline) {
		p.retry = rp
	}
}

// WithHistoryTopN sets how many players, by total points, get their
// per-gameweek history refreshed each run. Zero disables history fetches.
func WithHistoryTopN(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.historyTopN = n
		}
	}
}

// WithHistoryConcurrency bounds concurrent history fetches.
func WithHistoryConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.historyConcurrency = n
		}
	}
}

// WithEpochListener registers listeners called after each commit.
func WithEpochListener(ls ...EpochListener) Option {
	return func(p *Pipeline) {
		for _, l := range ls {
			if l != nil {
				p.listeners = append(p.listeners, l)
			}
		}
	}
}

// WithNotifier sets the sink for failed-run reports.
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) {
		if n != nil {
			p.notifier = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}
