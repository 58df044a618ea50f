package ristretto

import (
	"context"
	"errors"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/cacherefresh"
	"github.com/unkn0wn-root/cacherefresh/store"
)

// Store invalidates keys of an in-process Ristretto cache.
type Store struct {
	c     *rc.Cache
	owned bool
}

var _ store.Store = (*Store)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool

	// IgnoreInternalCost charges only the cost passed to Set, not the
	// per-item bookkeeping ristretto adds on top.
	IgnoreInternalCost bool
}

// New creates and owns a Ristretto cache.
func New(cfg Config) (*Store, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,

		IgnoreInternalCost: cfg.IgnoreInternalCost,
	})
	if err != nil {
		return nil, err
	}
	return &Store{c: c, owned: true}, nil
}

// Wrap invalidates keys of a cache owned by the caller; Close leaves it open.
func Wrap(c *rc.Cache) *Store { return &Store{c: c} }

// Cache exposes the underlying cache so the application can keep using it.
func (p *Store) Cache() *rc.Cache { return p.c }

func (p *Store) Invalidate(_ context.Context, keys []string) error {
	if len(keys) == 0 {
		return cacherefresh.ErrEmptyKeys
	}
	for _, k := range keys {
		p.c.Del(k)
	}
	return nil
}

func (p *Store) Close(_ context.Context) error {
	if p.owned {
		p.c.Close()
	}
	return nil
}
