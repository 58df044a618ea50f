// Package store adapts caches the process can reach directly (Redis, or an
// in-process Ristretto, BigCache or LRU) to cacherefresh.Invalidator: a batch
// is invalidated by deleting its keys.
//
// Deleting a key that is not present counts as success.
//
// The in-process stores serve programs that embed the scheduler next to their
// own cache, for example to drop pages after a content import:
//
//	pages, _ := hlru.New[string, []byte](4096)
//	opts := cacherefresh.DefaultOptions()
//	opts.Invalidator = lru.Wrap(pages)
//	s, _ := cacherefresh.New(opts)
//	failures, err := s.Update(ctx, changedKeys)
package store

import (
	"context"

	"github.com/unkn0wn-root/cacherefresh"
)

// Store is an Invalidator that owns resources.
type Store interface {
	cacherefresh.Invalidator

	// Close releases resources. Safe to call more than once.
	Close(ctx context.Context) error
}
