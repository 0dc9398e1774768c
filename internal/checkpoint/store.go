// Package checkpoint persists durable snapshots of batch progress so an
// interrupted run can resume without re-executing finished work.
package checkpoint

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/signal-watch/signalwatch/internal/model"
)

// ErrCorrupt marks a checkpoint that cannot be trusted: unreadable payload,
// schema-version mismatch, or inconsistent sequence. Resume must fail closed
// on it rather than guess.
var ErrCorrupt = eris.New("checkpoint: corrupt or incompatible snapshot")

// Store is the persistence contract for checkpoints. Save replaces any prior
// snapshot for the same run; LoadLatest returns (nil, nil) when no snapshot
// exists. Writes are serialized by the implementation.
type Store interface {
	Save(ctx context.Context, cp *model.Checkpoint) error
	LoadLatest(ctx context.Context) (*model.Checkpoint, error)
	// Archive marks a run's checkpoints as consumed once the run completes;
	// archived snapshots are never returned by LoadLatest.
	Archive(ctx context.Context, runID string) error
	Close() error
}
