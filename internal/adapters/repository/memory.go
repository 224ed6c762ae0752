package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
	"github.com/dlystyr/fantasypl-mcp/pkg/logger"
	"github.com/dlystyr/fantasypl-mcp/pkg/metrics"
)

const defaultRetainedEpochs = 2

// MemoryStore publishes committed snapshots through an atomic pointer.
// Readers never block and always see one complete epoch; the swap in Commit
// is the only point at which a new epoch becomes visible.
type MemoryStore struct {
	mu        sync.Mutex // serializes writers
	current   atomic.Pointer[model.Snapshot]
	recent    atomic.Pointer[[]*model.Snapshot]
	retain    int
	persister Persister
	logger    logger.Logger
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		retain: defaultRetainedEpochs,
		logger: logger.Named("repository"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads the latest persisted snapshot, if any, and publishes it.
// It is a no-op without a persister or when nothing was persisted yet.
func (s *MemoryStore) Restore(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	snap, err := s.persister.Load(ctx)
	if err != nil {
		if fault.Is(err, fault.KindNoData) {
			return nil
		}
		return fault.Wrap(fault.KindInternal, "restore snapshot", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish(snap.Seal())
	metrics.UpdateSyncEpoch(int64(snap.Epoch), snap.CommittedAt.Unix())
	s.logger.Info(ctx, "snapshot restored",
		logger.Int64("epoch", int64(snap.Epoch)),
		logger.String("run_id", snap.RunID))
	return nil
}

// Current implements Store.
func (s *MemoryStore) Current(_ context.Context) (*model.Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, fault.New(fault.KindNoData, "current snapshot", "no epoch has been committed yet")
	}
	return snap, nil
}

// At implements Store.
func (s *MemoryStore) At(_ context.Context, epoch model.Epoch) (*model.Snapshot, error) {
	if recent := s.recent.Load(); recent != nil {
		for _, snap := range *recent {
			if snap.Epoch == epoch {
				return snap, nil
			}
		}
	}
	return nil, fault.New(fault.KindNoData, "snapshot at epoch", "epoch %d is not retained", epoch).With("epoch", epoch)
}

// Epoch implements Store.
func (s *MemoryStore) Epoch() model.Epoch {
	if snap := s.current.Load(); snap != nil {
		return snap.Epoch
	}
	return 0
}

// Commit implements Store. With a persister configured, the snapshot is
// written durably first; a persist failure leaves the current epoch unchanged.
func (s *MemoryStore) Commit(ctx context.Context, snap *model.Snapshot) error {
	const op = "commit snapshot"
	if snap == nil {
		return fault.Wrap(fault.KindInternal, op, ErrNilSnapshot)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	want := s.Epoch() + 1
	if snap.Epoch != want {
		metrics.RecordErrorByComponent("repository", "epoch_conflict")
		fe := &fault.Error{Kind: fault.KindInternal, Op: op, Err: ErrEpochConflict}
		return fe.With("want", int64(want)).With("got", int64(snap.Epoch))
	}
	if err := ctx.Err(); err != nil {
		return fault.Wrap(fault.KindCancelled, op, err)
	}

	snap.Seal()
	if s.persister != nil {
		start := time.Now()
		if err := s.persister.Persist(ctx, snap); err != nil {
			metrics.RecordErrorByComponent("repository", "persist")
			return fault.Wrap(fault.KindInternal, op, err)
		}
		s.logger.Debug(ctx, "snapshot persisted",
			logger.Int64("epoch", int64(snap.Epoch)),
			logger.Duration("took", time.Since(start)))
	}
	s.publish(snap)
	return nil
}

// publish swaps the current pointer and rotates the retained window.
// Callers hold s.mu.
func (s *MemoryStore) publish(snap *model.Snapshot) {
	var next []*model.Snapshot
	if recent := s.recent.Load(); recent != nil {
		next = append(next, *recent...)
	}
	next = append(next, snap)
	if len(next) > s.retain {
		next = next[len(next)-s.retain:]
	}
	s.recent.Store(&next)
	s.current.Store(snap)
}

// Close releases the persister.
func (s *MemoryStore) Close() error {
	if s.persister == nil {
		return nil
	}
	return s.persister.Close()
}
