// Package worker runs queued sync triggers one at a time.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dlystyr/fantasypl-mcp/internal/adapters/mq/queue"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/ingest"
	"github.com/dlystyr/fantasypl-mcp/pkg/logger"
	"github.com/dlystyr/fantasypl-mcp/pkg/metrics"
)

const defaultRunTimeout = 5 * time.Minute

// Syncer runs one ingestion pass.
type Syncer interface {
	Sync(ctx context.Context) (ingest.Report, error)
}

// Queue defines how the worker receives triggers.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Trigger
}

// Result pairs a trigger with the run it caused.
type Result struct {
	Trigger queue.Trigger `json:"trigger"`
	Report  ingest.Report `json:"report"`
	Took    time.Duration `json:"took"`
}

// SyncWorker drains the sync queue with a single goroutine, so at most one
// sync is in flight.
type SyncWorker struct {
	queue      Queue
	syncer     Syncer
	name       string
	runTimeout time.Duration
	hook       func(Result)

	running atomic.Bool
	runs    atomic.Int64
	last    atomic.Pointer[Result]

	stopOnce sync.Once
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewSyncWorker creates a worker with configuration options.
func NewSyncWorker(q Queue, syncer Syncer, opts ...Option) *SyncWorker {
	w := &SyncWorker{
		queue:      q,
		syncer:     syncer,
		name:       "sync-worker",
		runTimeout: defaultRunTimeout,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Named("sync-worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run consumes triggers until ctx is cancelled, Shutdown is called or the
// queue is closed.
func (w *SyncWorker) Run(ctx context.Context) {
	defer close(w.done)

	triggers := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case t, ok := <-triggers:
			if !ok {
				return
			}
			w.process(ctx, t)
		}
	}
}

func (w *SyncWorker) process(ctx context.Context, t queue.Trigger) {
	runCtx, cancel := context.WithTimeout(ctx, w.runTimeout)
	defer cancel()

	w.running.Store(true)
	defer w.running.Store(false)

	start := time.Now()
	report, err := w.syncer.Sync(runCtx)
	res := Result{Trigger: t, Report: report, Took: time.Since(start)}
	w.runs.Add(1)
	w.last.Store(&res)

	fields := []logger.Field{
		logger.String("worker", w.name),
		logger.String("trigger", t.ID),
		logger.String("source", t.Source),
		logger.String("run_id", report.RunID),
		logger.Duration("took", res.Took),
	}
	if err != nil {
		metrics.RecordErrorByComponent("worker", string(fault.KindOf(err)))
		w.logger.Error(ctx, "sync run failed", append(fields, logger.Error(err))...)
	} else {
		w.logger.Info(ctx, "sync run finished",
			append(fields, logger.Int64("epoch", int64(report.Epoch)), logger.Bool("committed", report.Committed))...)
	}

	if w.hook != nil {
		w.hook(res)
	}
}

// Running reports whether a sync is in flight.
func (w *SyncWorker) Running() bool { return w.running.Load() }

// Runs is the number of completed runs.
func (w *SyncWorker) Runs() int64 { return w.runs.Load() }

// Last returns the most recent result.
func (w *SyncWorker) Last() (Result, bool) {
	if r := w.last.Load(); r != nil {
		return *r, true
	}
	return Result{}, false
}

// Shutdown stops the worker after the run in flight, if any, returns.
func (w *SyncWorker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out", logger.String("worker", w.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
