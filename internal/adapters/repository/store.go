// Package repository holds the canonical store: the committed snapshot of
// every entity, versioned by sync epoch.
package repository

import (
	"context"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
)

// Store provides the canonical state to readers and the single writer.
type Store interface {
	// Current returns the latest committed snapshot, or a no_data error
	// before the first commit.
	Current(ctx context.Context) (*model.Snapshot, error)
	// At returns a retained snapshot of an earlier epoch.
	At(ctx context.Context, epoch model.Epoch) (*model.Snapshot, error)
	// Epoch returns the latest committed epoch, zero before the first commit.
	Epoch() model.Epoch
	// Commit publishes snap as the new current epoch. snap.Epoch must be
	// exactly one above the current epoch.
	Commit(ctx context.Context, snap *model.Snapshot) error
}

// Persister durably writes committed snapshots and restores the latest one.
type Persister interface {
	Persist(ctx context.Context, snap *model.Snapshot) error
	Load(ctx context.Context) (*model.Snapshot, error)
	Close() error
}
