package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dlystyr/fantasypl-mcp/internal/adapters/cache"
	"github.com/dlystyr/fantasypl-mcp/internal/adapters/mq/queue"
	"github.com/dlystyr/fantasypl-mcp/internal/adapters/mq/worker"
	"github.com/dlystyr/fantasypl-mcp/internal/adapters/notify"
	"github.com/dlystyr/fantasypl-mcp/internal/adapters/repository"
	"github.com/dlystyr/fantasypl-mcp/internal/adapters/scheduler"
	"github.com/dlystyr/fantasypl-mcp/internal/adapters/upstream"
	"github.com/dlystyr/fantasypl-mcp/internal/config"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/analytics"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/ingest"
	"github.com/dlystyr/fantasypl-mcp/pkg/logger"
)

// App owns every long-lived component built from configuration.
type App struct {
	Store     *repository.MemoryStore
	Pipeline  *ingest.Pipeline
	Cache     *cache.ReadThrough
	Queue     *queue.SyncQueue
	Worker    *worker.SyncWorker
	Scheduler *scheduler.Scheduler
	Service   *Service

	runOnStart bool
	cancel     context.CancelFunc
	logger     logger.Logger
}

// BuildOption customizes Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	source    ingest.Source
	notifier  ingest.Notifier
	listeners []ingest.EpochListener
	logger    logger.Logger
}

// WithSource replaces the FPL API client.
func WithSource(src ingest.Source) BuildOption {
	return func(o *buildOptions) { o.source = src }
}

// WithNotifier replaces the configured notifier.
func WithNotifier(n ingest.Notifier) BuildOption {
	return func(o *buildOptions) { o.notifier = n }
}

// WithEpochListeners adds listeners told about every committed epoch.
func WithEpochListeners(ls ...ingest.EpochListener) BuildOption {
	return func(o *buildOptions) { o.listeners = append(o.listeners, ls...) }
}

// WithAppLogger sets the base logger.
func WithAppLogger(l logger.Logger) BuildOption {
	return func(o *buildOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Build wires the store, ingestion pipeline, cache, sync queue, worker,
// scheduler and service from cfg. The persisted snapshot, if any, is
// restored and announced to every epoch listener before Build returns.
func Build(ctx context.Context, cfg *config.Config, opts ...BuildOption) (_ *App, err error) {
	o := buildOptions{logger: logger.Get()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger

	var closers []func() error
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i]()
			}
		}
	}()

	storeOpts := []repository.Option{repository.WithLogger(log.Named("repository"))}
	switch cfg.Store.Driver {
	case config.DriverPostgres, config.DriverSQLite:
		persister, err := repository.OpenSQL(ctx, repository.Dialect(cfg.Store.Driver), cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
		}
		storeOpts = append(storeOpts, repository.WithPersister(persister))
	}
	store := repository.NewMemoryStore(storeOpts...)
	closers = append(closers, store.Close)
	if err := store.Restore(ctx); err != nil {
		return nil, err
	}

	backend, err := cache.Open(cfg.Cache)
	if err != nil {
		return nil, err
	}
	rt := cache.New(backend,
		cache.WithLogger(log.Named("cache")),
		cache.WithKeyPrefix(cfg.Cache.KeyPrefix),
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithOperationTTLs(cfg.Cache.OperationTTLs),
		cache.WithCooldown(cfg.Cache.Cooldown),
	)
	closers = append(closers, rt.Close)
	listeners := append([]ingest.EpochListener{rt}, o.listeners...)
	if snap, err := store.Current(ctx); err == nil {
		for _, l := range listeners {
			l.EpochAdvanced(ctx, snap)
		}
	}

	source := o.source
	if source == nil {
		source = upstream.New(
			upstream.WithBaseURL(cfg.Upstream.BaseURL),
			upstream.WithUserAgent(cfg.Upstream.UserAgent),
			upstream.WithTimeout(cfg.Upstream.RequestTimeout),
			upstream.WithMaxBodyBytes(cfg.Upstream.MaxBodyBytes),
			upstream.WithLogger(log.Named("upstream")),
		)
	}

	notifier := o.notifier
	if notifier == nil {
		notifier, err = notify.New(cfg.Telegram, log.Named("notify"))
		if err != nil {
			return nil, err
		}
	}

	pipeline := ingest.NewPipeline(source, store,
		ingest.WithLogger(log.Named("ingest")),
		ingest.WithRetryPolicy(ingest.RetryPolicy{
			MaxAttempts:    cfg.Upstream.MaxAttempts,
			BaseDelay:      cfg.Upstream.BackoffBase,
			MaxDelay:       cfg.Upstream.BackoffMax,
			AttemptTimeout: cfg.Upstream.RequestTimeout,
		}),
		ingest.WithHistoryTopN(cfg.Sync.HistoryTopN),
		ingest.WithHistoryConcurrency(cfg.Sync.HistoryConcurrency),
		ingest.WithEpochListener(listeners...),
		ingest.WithNotifier(notifier),
	)

	q := queue.NewSyncQueue(queue.WithCapacity(cfg.Sync.QueueSize))
	w := worker.NewSyncWorker(q, pipeline,
		worker.WithLogger(log.Named("sync-worker")),
		worker.WithRunTimeout(cfg.Sync.RunTimeout),
	)

	a := &App{
		Store:      store,
		Pipeline:   pipeline,
		Cache:      rt,
		Queue:      q,
		Worker:     w,
		runOnStart: cfg.Sync.RunOnStart,
		logger:     log.Named("app"),
	}

	svcOpts := []Option{
		WithLogger(log.Named("service")),
		WithCache(rt),
		WithEntrySource(source),
		WithSyncQueue(q),
		WithSyncState(w),
		WithReports(pipeline),
	}
	if cfg.Schedule.Enabled {
		sched, err := scheduler.New(cfg.Schedule, q,
			scheduler.WithLogger(log.Named("scheduler")),
			scheduler.WithRunOnStart(cfg.Sync.RunOnStart),
		)
		if err != nil {
			return nil, err
		}
		a.Scheduler = sched
		svcOpts = append(svcOpts, WithJobs(sched))
	}

	a.Service = New(store, analytics.New(analytics.Config(cfg.Analytics)), svcOpts...)
	return a, nil
}

// Start runs the sync worker and the scheduler. Without a scheduler the
// start-up sync, when enabled, is queued directly.
func (a *App) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	go a.Worker.Run(runCtx)

	switch {
	case a.Scheduler != nil:
		a.Scheduler.Start(ctx)
	case a.runOnStart:
		if _, err := a.Queue.Enqueue(ctx, queue.SourceStartup); err != nil && !errors.Is(err, queue.ErrCoalesced) {
			a.logger.Error(ctx, "failed to enqueue start-up sync", logger.Error(err))
		}
	}
	a.logger.Info(ctx, "app started",
		logger.Int64("epoch", int64(a.Store.Epoch())),
		logger.Bool("scheduler", a.Scheduler != nil))
}

// Stop halts scheduling, drains the worker and closes the cache and store.
func (a *App) Stop(ctx context.Context) error {
	var errs []error
	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
	}
	_ = a.Queue.Close()
	if a.cancel != nil {
		if err := a.Worker.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		a.cancel()
	}
	if err := a.Cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close cache: %w", err))
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	a.logger.Info(ctx, "app stopped")
	return errors.Join(errs...)
}
