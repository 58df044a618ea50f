package bigcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	bc "github.com/allegro/bigcache/v3"
	"go.uber.org/multierr"

	"github.com/unkn0wn-root/cacherefresh"
	"github.com/unkn0wn-root/cacherefresh/store"
)

// Store invalidates keys of an in-process BigCache.
type Store struct {
	c     *bc.BigCache
	owned bool
}

var _ store.Store = (*Store)(nil)

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

// New creates and owns a BigCache.
func New(ctx context.Context, cfg Config) (*Store, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &Store{c: c, owned: true}, nil
}

// Wrap invalidates keys of a cache owned by the caller; Close leaves it open.
func Wrap(c *bc.BigCache) *Store { return &Store{c: c} }

func (p *Store) Cache() *bc.BigCache { return p.c }

// Invalidate deletes every key of the batch; the errors of all failed
// deletes are combined.
func (p *Store) Invalidate(_ context.Context, keys []string) error {
	if len(keys) == 0 {
		return cacherefresh.ErrEmptyKeys
	}
	var errs error
	for _, k := range keys {
		if err := p.c.Delete(k); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
			errs = multierr.Append(errs, fmt.Errorf("delete %q: %w", k, err))
		}
	}
	return errs
}

func (p *Store) Close(_ context.Context) error {
	if p.owned {
		return p.c.Close()
	}
	return nil
}
