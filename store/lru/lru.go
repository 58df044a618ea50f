package lru

import (
	"context"

	hlru "github.com/hashicorp/golang-lru/v2"

	"github.com/unkn0wn-root/cacherefresh"
	"github.com/unkn0wn-root/cacherefresh/store"
)

// Store invalidates keys of a caller-owned hashicorp LRU.
type Store[V any] struct {
	c *hlru.Cache[string, V]
}

var _ store.Store = (*Store[int])(nil)

func Wrap[V any](c *hlru.Cache[string, V]) *Store[V] { return &Store[V]{c: c} }

func (p *Store[V]) Invalidate(_ context.Context, keys []string) error {
	if len(keys) == 0 {
		return cacherefresh.ErrEmptyKeys
	}
	for _, k := range keys {
		p.c.Remove(k)
	}
	return nil
}

// Close is a no-op; the LRU belongs to the caller.
func (p *Store[V]) Close(context.Context) error { return nil }
