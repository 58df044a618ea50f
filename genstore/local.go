package genstore

import (
	"context"
	"sync"
	"time"
)

type generation struct {
	n       uint64
	touched time.Time
}

// Local keeps generations in memory. Entries not bumped for longer than the
// retention are dropped by a background sweep and read back as 0. A swept key
// restarts above the highest generation ever swept, so a reader's old stamp
// never matches again.
type Local struct {
	mu    sync.RWMutex
	gens  map[string]generation
	floor uint64 // highest generation dropped by Cleanup

	stop context.CancelFunc
	done chan struct{}
	once sync.Once
}

var _ GenStore = (*Local)(nil)

// NewLocal returns an in-process store. The sweep runs every interval when both
// interval and retention are positive.
func NewLocal(interval, retention time.Duration) *Local {
	s := &Local{gens: make(map[string]generation)}
	if interval <= 0 || retention <= 0 {
		return s
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				s.Cleanup(retention)
			case <-ctx.Done():
				return
			}
		}
	}()
	return s
}

func (s *Local) Snapshot(_ context.Context, key string) (uint64, error) {
	s.mu.RLock()
	g := s.gens[key]
	s.mu.RUnlock()
	return g.n, nil
}

// Bump advances every key under one lock, so a batch is visible all at once.
func (s *Local) Bump(_ context.Context, keys ...string) error {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		g, ok := s.gens[k]
		if !ok {
			g.n = s.floor
		}
		s.gens[k] = generation{n: g.n + 1, touched: now}
	}
	return nil
}

// Len reports how many keys currently carry a generation.
func (s *Local) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.gens)
}

func (s *Local) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, g := range s.gens {
		if g.touched.Before(cutoff) {
			s.floor = max(s.floor, g.n)
			delete(s.gens, k)
		}
	}
}

// Close stops the sweep. Safe to call more than once.
func (s *Local) Close(context.Context) error {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
			<-s.done
		}
	})
	return nil
}
