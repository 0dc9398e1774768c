// Package cache holds prior scan results so repeat lookups short-circuit the
// registry entirely. The distributed remote-store implementation lives
// outside the core; this package defines the contract plus the local
// memory- and SQLite-backed implementations.
package cache

import (
	"context"

	"github.com/signal-watch/signalwatch/internal/model"
)

// ResultCache stores finished per-entity reports keyed by entity number plus
// a scan-options signature. Get returns (nil, nil) on a miss.
type ResultCache interface {
	Get(ctx context.Context, key string) (*model.EntityReport, error)
	Put(ctx context.Context, key string, report *model.EntityReport) error
}

// Key builds a cache key from an entity number and an options signature, so
// scans with different settings never serve each other's results.
func Key(entityNumber, signature string) string {
	return entityNumber + "/" + signature
}
