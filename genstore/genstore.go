// Package genstore invalidates by bumping per-key generation counters instead
// of deleting values. Readers that stamp entries with the generation they saw
// treat an entry as stale once its generation moves.
package genstore

import (
	"context"
	"time"

	"github.com/unkn0wn-root/cacherefresh"
)

// GenStore abstracts where generations live.
// Local keeps them in process, Redis shares them between processes.
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, key string) (uint64, error)
	// Bump increments the generations of keys as one operation.
	Bump(ctx context.Context, keys ...string) error
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}

type invalidator struct{ gs GenStore }

// Invalidator adapts gs to cacherefresh.Invalidator: a batch is invalidated
// by bumping the generation of every key in it.
func Invalidator(gs GenStore) cacherefresh.Invalidator { return invalidator{gs: gs} }

func (i invalidator) Invalidate(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return cacherefresh.ErrEmptyKeys
	}
	return i.gs.Bump(ctx, keys...)
}
