// Package cacherefresh invalidates entries of a remote cache in batches and
// isolates the keys the remote side refuses, without giving up on the rest of
// the batch.
//
// Components:
//   - Invalidator: one remote mutation that accepts a non-empty list of keys
//     (e.g. graphql.Client, store/redis, genstore.Invalidator, or an
//     in-process cache via store/lru, store/ristretto and store/bigcache).
//   - Scheduler: cuts the key list into pages and drives them through the
//     Invalidator. A failing page is bisected until the bad keys are isolated;
//     a failing single key is retried up to MaxRetries times.
//
// Order:
//
//	pages are pushed left to right onto a LIFO queue
//	a failing page [a b c d e] becomes [a b c] [d e], pushed in that order
//	so [d e] is fully resolved before [a b c] is touched
//
// Usage:
//
//	opts := cacherefresh.DefaultOptions()
//	opts.Invalidator = client // e.g. graphql.New(...)
//	s, _ := cacherefresh.New(opts)
//	failures, err := s.Update(ctx, keys)
//	if err == nil && failures.Succeeded() { ... }
package cacherefresh
