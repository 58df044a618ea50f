package cacherefresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/unkn0wn-root/cacherefresh/internal/util"
)

// Scheduler drives batches of keys through an Invalidator.
//
// Each Update owns its work queue, and its RPCs are issued one at a time.
type Scheduler struct {
	inv        Invalidator
	pageSize   int
	maxRetries int
	newBackOff func() backoff.BackOff
	log        Logger
	hooks      Hooks
}

func New(opts Options) (*Scheduler, error) {
	if opts.Invalidator == nil {
		return nil, fmt.Errorf("cacherefresh: invalidator is required")
	}
	if opts.PageSize < 0 {
		return nil, fmt.Errorf("cacherefresh: page size must not be negative, got %d", opts.PageSize)
	}
	if opts.MaxRetries < 0 {
		return nil, fmt.Errorf("cacherefresh: max retries must not be negative, got %d", opts.MaxRetries)
	}
	if opts.RetryDelay < 0 {
		return nil, fmt.Errorf("cacherefresh: retry delay must not be negative, got %s", opts.RetryDelay)
	}

	s := &Scheduler{
		inv:        opts.Invalidator,
		maxRetries: opts.MaxRetries,
		newBackOff: opts.NewBackOff,
	}

	// defaults
	s.pageSize = coalesce(opts.PageSize, DefaultPageSize)
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	if s.newBackOff == nil {
		delay := opts.RetryDelay
		s.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(delay) }
	}
	return s, nil
}

// Update invalidates keys and returns the batches that could not be
// invalidated. Every distinct key is either invalidated or appears in exactly
// one returned Failure. The only error is ErrEmptyKeys.
//
// ctx is handed to every Invalidator call. Cancelling it does not abort the
// update: retry waits end early and the remaining keys are still attempted
// and reported.
func (s *Scheduler) Update(ctx context.Context, keys []string) (Failures, error) {
	if len(keys) == 0 {
		return nil, ErrEmptyKeys
	}
	uniq := distinct(keys)
	if dropped := len(keys) - len(uniq); dropped > 0 {
		s.log.Debug("dropped duplicate keys", Fields{"dropped": dropped})
	}

	pages := paginate(uniq, s.pageSize)
	q := newWorkQueue(len(pages))
	for _, p := range pages {
		q.push(&task{keys: p})
	}
	s.log.Info("cache update started", Fields{"keys": len(uniq), "pages": len(pages), "pageSize": s.pageSize})

	var (
		failures Failures
		calls    int
	)
	for q.len() > 0 {
		t := q.pop()
		err := s.invalidate(ctx, t.keys)
		calls++
		if err == nil {
			s.log.Debug("batch invalidated", Fields{"batch": util.BatchID(t.keys), "size": len(t.keys)})
			s.hooks.BatchSucceeded(len(t.keys))
			continue
		}

		if len(t.keys) > 1 {
			first, second := bisect(t.keys)
			s.log.Debug("batch failed, splitting", Fields{
				"batch": util.BatchID(t.keys), "size": len(t.keys), "err": err,
			})
			s.hooks.BatchSplit(len(t.keys), err)
			// second half is popped first
			q.push(&task{keys: first})
			q.push(&task{keys: second})
			continue
		}

		key := t.keys[0]
		if delay, ok := s.nextRetry(t); ok {
			t.attempts++
			s.log.Info("key failed, retrying", Fields{"key": key, "attempt": t.attempts, "delay": delay, "err": err})
			s.hooks.RetryScheduled(key, t.attempts, err)
			wait(ctx, delay)
			q.push(t)
			continue
		}

		s.log.Warn("key failed, giving up", Fields{"key": key, "attempts": t.attempts + 1, "err": err})
		s.hooks.KeyAbandoned(key, t.attempts+1, err)
		failures = append(failures, Failure{Keys: t.keys, Err: err})
	}

	if failures.Succeeded() {
		s.log.Info("cache update finished", Fields{"keys": len(uniq), "calls": calls})
	} else {
		s.log.Warn("cache update finished with failures", Fields{
			"keys": len(uniq), "calls": calls, "failed": len(failures),
		})
	}
	return failures, nil
}

// invalidate calls the Invalidator and turns every non-success outcome,
// panics included, into a *RemoteError.
func (s *Scheduler) invalidate(ctx context.Context, keys []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{v: r}
		}
		if err != nil {
			var re *RemoteError
			if !errors.As(err, &re) {
				err = &RemoteError{Keys: keys, Err: err}
			}
		}
	}()
	return s.inv.Invalidate(ctx, keys)
}

// nextRetry reports whether the singleton t may be retried and how long to wait first.
func (s *Scheduler) nextRetry(t *task) (time.Duration, bool) {
	if t.attempts >= s.maxRetries {
		return 0, false
	}
	if t.retry == nil {
		t.retry = s.newBackOff()
	}
	d := t.retry.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	return d, true
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
