package cacherefresh

import "context"

// Invalidator submits one batch of keys to the remote cache.
//
// A nil error means every key in the batch was invalidated. Any other outcome,
// whether the remote side rejected some keys or the request never arrived,
// is reported as a non-nil error. Implementations must return ErrEmptyKeys
// for an empty batch without contacting the remote side.
type Invalidator interface {
	Invalidate(ctx context.Context, keys []string) error
}

// InvalidatorFunc adapts a plain function to Invalidator.
type InvalidatorFunc func(ctx context.Context, keys []string) error

func (f InvalidatorFunc) Invalidate(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return ErrEmptyKeys
	}
	return f(ctx, keys)
}
