// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{RetryEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	opts := cacherefresh.DefaultOptions()
//	opts.Hooks = hooks // or `raw` if you don't want async
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/cacherefresh"
)

// Hooks forwards events to inner on background workers. Events are dropped
// when the queue is full so the scheduler never waits on a slow sink.
type Hooks struct {
	inner   cacherefresh.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

var _ cacherefresh.Hooks = (*Hooks)(nil)

func New(inner cacherefresh.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped returns how many events were discarded because the queue was full.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	defer func() {
		// send on closed queue after Close
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) BatchSucceeded(n int)        { h.try(func() { h.inner.BatchSucceeded(n) }) }
func (h *Hooks) BatchSplit(n int, err error) { h.try(func() { h.inner.BatchSplit(n, err) }) }
func (h *Hooks) RetryScheduled(k string, a int, err error) {
	h.try(func() { h.inner.RetryScheduled(k, a, err) })
}
func (h *Hooks) KeyAbandoned(k string, a int, err error) {
	h.try(func() { h.inner.KeyAbandoned(k, a, err) })
}
