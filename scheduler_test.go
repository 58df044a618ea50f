package cacherefresh

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// fakeRemote records every batch it receives. A batch fails while it contains
// a key for which fail returns true.
type fakeRemote struct {
	calls [][]string
	fail  func(key string, attempt int) bool
	seen  map[string]int // per-key count of batches containing the key
}

func newFakeRemote(fail func(key string, attempt int) bool) *fakeRemote {
	return &fakeRemote{fail: fail, seen: make(map[string]int)}
}

func (r *fakeRemote) Invalidate(_ context.Context, keys []string) error {
	if len(keys) == 0 {
		return ErrEmptyKeys
	}
	r.calls = append(r.calls, append([]string(nil), keys...))
	var bad []string
	for _, k := range keys {
		r.seen[k]++
		if r.fail != nil && r.fail(k, r.seen[k]) {
			bad = append(bad, k)
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("Something went wrong while updating value of %q", strings.Join(bad, ","))
	}
	return nil
}

func failAlways(keys ...string) func(string, int) bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return func(k string, _ int) bool { return set[k] }
}

func makeKeys(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("k%d", i)
	}
	return out
}

func newTestScheduler(t *testing.T, inv Invalidator, optsOpt func(*Options)) *Scheduler {
	t.Helper()
	opts := DefaultOptions()
	opts.Invalidator = inv
	opts.RetryDelay = 0
	if optsOpt != nil {
		optsOpt(&opts)
	}
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func failureKeys(f Failures) [][]string {
	out := make([][]string, len(f))
	for i, fl := range f {
		out[i] = fl.Keys
	}
	return out
}

// ==============================
// Construction
// ==============================

func TestNewValidatesOptions(t *testing.T) {
	inv := newFakeRemote(nil)
	cases := map[string]Options{
		"no invalidator":    {},
		"negative page":     {Invalidator: inv, PageSize: -1},
		"negative retries":  {Invalidator: inv, MaxRetries: -1},
		"negative duration": {Invalidator: inv, RetryDelay: -time.Second},
	}
	for name, opts := range cases {
		if _, err := New(opts); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	s, err := New(Options{Invalidator: inv})
	if err != nil {
		t.Fatalf("New zero options: %v", err)
	}
	if s.pageSize != DefaultPageSize {
		t.Fatalf("pageSize = %d, want default %d", s.pageSize, DefaultPageSize)
	}
	if s.maxRetries != 0 {
		t.Fatalf("maxRetries = %d, want 0 taken as given", s.maxRetries)
	}
}

// ==============================
// Preconditions and happy path
// ==============================

func TestUpdateEmptyKeys(t *testing.T) {
	remote := newFakeRemote(nil)
	s := newTestScheduler(t, remote, nil)

	for _, keys := range [][]string{nil, {}} {
		f, err := s.Update(context.Background(), keys)
		if !errors.Is(err, ErrEmptyKeys) {
			t.Fatalf("Update(%v) err = %v, want ErrEmptyKeys", keys, err)
		}
		if f != nil {
			t.Fatalf("Update(%v) failures = %v, want nil", keys, f)
		}
	}
	if len(remote.calls) != 0 {
		t.Fatalf("expected zero RPCs, got %d", len(remote.calls))
	}
}

func TestUpdateAllSucceed(t *testing.T) {
	for _, pageSize := range []int{1, 2, 5, 10, 25, 100} {
		remote := newFakeRemote(nil)
		s := newTestScheduler(t, remote, func(o *Options) { o.PageSize = pageSize })

		keys := makeKeys(25)
		f, err := s.Update(context.Background(), keys)
		if err != nil {
			t.Fatalf("pageSize=%d: Update: %v", pageSize, err)
		}
		if !f.Succeeded() || f.Err() != nil {
			t.Fatalf("pageSize=%d: expected success, got %v", pageSize, failureKeys(f))
		}
		wantCalls := (len(keys) + pageSize - 1) / pageSize
		if len(remote.calls) != wantCalls {
			t.Fatalf("pageSize=%d: calls = %d, want %d", pageSize, len(remote.calls), wantCalls)
		}
		for _, c := range remote.calls {
			if len(c) > pageSize {
				t.Fatalf("pageSize=%d: batch of %d keys", pageSize, len(c))
			}
		}
	}
}

func TestUpdatePagesArePoppedLastFirst(t *testing.T) {
	remote := newFakeRemote(nil)
	s := newTestScheduler(t, remote, func(o *Options) { o.PageSize = 5 })

	if _, err := s.Update(context.Background(), makeKeys(11)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	want := [][]string{
		{"k10"},
		{"k5", "k6", "k7", "k8", "k9"},
		{"k0", "k1", "k2", "k3", "k4"},
	}
	if !reflect.DeepEqual(remote.calls, want) {
		t.Fatalf("calls = %v, want %v", remote.calls, want)
	}
}

func TestUpdateDropsDuplicateKeys(t *testing.T) {
	remote := newFakeRemote(nil)
	s := newTestScheduler(t, remote, nil)

	in := []string{"a", "b", "a", "c", "b"}
	if _, err := s.Update(context.Background(), in); err != nil {
		t.Fatalf("Update: %v", err)
	}
	want := [][]string{{"a", "b", "c"}}
	if !reflect.DeepEqual(remote.calls, want) {
		t.Fatalf("calls = %v, want %v", remote.calls, want)
	}
	if !reflect.DeepEqual(in, []string{"a", "b", "a", "c", "b"}) {
		t.Fatalf("input mutated: %v", in)
	}
}

// ==============================
// Bisection
// ==============================

func TestBisectionIsolatesSingleBadKey(t *testing.T) {
	remote := newFakeRemote(failAlways("k20"))
	s := newTestScheduler(t, remote, func(o *Options) { o.PageSize = 10 })

	f, err := s.Update(context.Background(), makeKeys(25))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := failureKeys(f); !reflect.DeepEqual(got, [][]string{{"k20"}}) {
		t.Fatalf("failures = %v, want [[k20]]", got)
	}
	if !strings.Contains(f[0].Err.Error(), `Something went wrong while updating value of "k20"`) {
		t.Fatalf("unexpected error message: %v", f[0].Err)
	}
	var re *RemoteError
	if !errors.As(f[0].Err, &re) || !reflect.DeepEqual(re.Keys, []string{"k20"}) {
		t.Fatalf("expected *RemoteError for k20, got %#v", f[0].Err)
	}
}

func TestBisectionExactCallSequence(t *testing.T) {
	remote := newFakeRemote(failAlways("d"))
	s := newTestScheduler(t, remote, func(o *Options) {
		o.PageSize = 4
		o.MaxRetries = 2
	})

	f, err := s.Update(context.Background(), []string{"a", "b", "c", "d"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	want := [][]string{
		{"a", "b", "c", "d"},
		{"c", "d"},
		{"d"}, {"d"}, {"d"},
		{"c"},
		{"a", "b"},
	}
	if !reflect.DeepEqual(remote.calls, want) {
		t.Fatalf("calls = %v, want %v", remote.calls, want)
	}
	if got := failureKeys(f); !reflect.DeepEqual(got, [][]string{{"d"}}) {
		t.Fatalf("failures = %v", got)
	}
}

func TestOddBatchFirstHalfTakesExtraKey(t *testing.T) {
	first, second := bisect([]string{"a", "b", "c", "d", "e"})
	if !reflect.DeepEqual(first, []string{"a", "b", "c"}) || !reflect.DeepEqual(second, []string{"d", "e"}) {
		t.Fatalf("bisect = %v %v", first, second)
	}
	// appending to the first half must not clobber the second
	_ = append(first, "x")
	if second[0] != "d" {
		t.Fatalf("halves share capacity")
	}
}

func TestFailureOrderRightHalfFirst(t *testing.T) {
	remote := newFakeRemote(failAlways("k1", "k7"))
	s := newTestScheduler(t, remote, func(o *Options) { o.PageSize = 5 })

	f, err := s.Update(context.Background(), makeKeys(11))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := failureKeys(f); !reflect.DeepEqual(got, [][]string{{"k7"}, {"k1"}}) {
		t.Fatalf("failures = %v, want [[k7] [k1]]", got)
	}
	if !reflect.DeepEqual(f.Keys(), []string{"k7", "k1"}) {
		t.Fatalf("Keys() = %v", f.Keys())
	}
	if f.Succeeded() || f.Err() == nil {
		t.Fatalf("expected failed update")
	}
}

func TestWithinBatchRightFailuresReportedFirst(t *testing.T) {
	remote := newFakeRemote(failAlways("a", "h"))
	s := newTestScheduler(t, remote, func(o *Options) { o.PageSize = 8 })

	f, err := s.Update(context.Background(), []string{"a", "b", "c", "d", "e", "f", "g", "h"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := failureKeys(f); !reflect.DeepEqual(got, [][]string{{"h"}, {"a"}}) {
		t.Fatalf("failures = %v, want [[h] [a]]", got)
	}
}

// TestEveryKeyAccountedOnce checks that each key is either reported once or
// was part of a successful batch, for a spread of failure patterns.
func TestEveryKeyAccountedOnce(t *testing.T) {
	patterns := [][]string{
		nil,
		{"k0"},
		{"k0", "k1", "k2"},
		{"k3", "k9", "k16", "k22"},
		makeKeys(23),
	}
	for _, pageSize := range []int{1, 3, 7, 100} {
		for _, bad := range patterns {
			remote := newFakeRemote(failAlways(bad...))
			s := newTestScheduler(t, remote, func(o *Options) {
				o.PageSize = pageSize
				o.MaxRetries = 1
			})
			keys := makeKeys(23)
			f, err := s.Update(context.Background(), keys)
			if err != nil {
				t.Fatalf("Update: %v", err)
			}

			reported := map[string]int{}
			for _, k := range f.Keys() {
				reported[k]++
			}
			succeeded := map[string]bool{}
			for _, c := range remote.calls {
				ok := true
				for _, k := range c {
					if failAlways(bad...)(k, 0) {
						ok = false
					}
				}
				if ok {
					for _, k := range c {
						succeeded[k] = true
					}
				}
			}
			for _, k := range keys {
				n := reported[k]
				if succeeded[k] && n != 0 {
					t.Fatalf("page=%d bad=%v: %s both invalidated and reported", pageSize, bad, k)
				}
				if !succeeded[k] && n != 1 {
					t.Fatalf("page=%d bad=%v: %s reported %d times", pageSize, bad, k, n)
				}
			}
			got := f.Keys()
			sort.Strings(got)
			want := append([]string(nil), bad...)
			sort.Strings(want)
			if len(want) == 0 {
				want = nil
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("page=%d: reported %v, want %v", pageSize, got, want)
			}
		}
	}
}

// ==============================
// Retries
// ==============================

func TestSingletonRecoversOnLastRetry(t *testing.T) {
	const maxRetries = 3
	remote := newFakeRemote(func(k string, attempt int) bool { return attempt <= maxRetries })
	s := newTestScheduler(t, remote, func(o *Options) { o.MaxRetries = maxRetries })

	f, err := s.Update(context.Background(), []string{"only"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !f.Succeeded() {
		t.Fatalf("expected success, got %v", failureKeys(f))
	}
	if len(remote.calls) != maxRetries+1 {
		t.Fatalf("calls = %d, want %d", len(remote.calls), maxRetries+1)
	}
}

func TestSingletonFailsAfterAllRetries(t *testing.T) {
	for _, maxRetries := range []int{0, 1, 3} {
		remote := newFakeRemote(failAlways("only"))
		s := newTestScheduler(t, remote, func(o *Options) { o.MaxRetries = maxRetries })

		f, err := s.Update(context.Background(), []string{"only"})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if len(f) != 1 || !reflect.DeepEqual(f[0].Keys, []string{"only"}) {
			t.Fatalf("maxRetries=%d: failures = %v", maxRetries, failureKeys(f))
		}
		if len(remote.calls) != maxRetries+1 {
			t.Fatalf("maxRetries=%d: calls = %d, want %d", maxRetries, len(remote.calls), maxRetries+1)
		}
	}
}

func TestLastObservedErrorIsReported(t *testing.T) {
	n := 0
	inv := InvalidatorFunc(func(context.Context, []string) error {
		n++
		return fmt.Errorf("attempt %d", n)
	})
	s := newTestScheduler(t, inv, func(o *Options) { o.MaxRetries = 2 })

	f, err := s.Update(context.Background(), []string{"x"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(f) != 1 || !strings.Contains(f[0].Err.Error(), "attempt 3") {
		t.Fatalf("expected last error, got %v", f)
	}
}

func TestRetryWaitsRetryDelay(t *testing.T) {
	remote := newFakeRemote(failAlways("x"))
	s := newTestScheduler(t, remote, func(o *Options) {
		o.MaxRetries = 2
		o.RetryDelay = 20 * time.Millisecond
	})

	start := time.Now()
	if _, err := s.Update(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if el := time.Since(start); el < 40*time.Millisecond {
		t.Fatalf("Update returned after %v, want >= 40ms of retry delay", el)
	}
}

func TestBackOffStopEndsRetriesEarly(t *testing.T) {
	remote := newFakeRemote(failAlways("x"))
	s := newTestScheduler(t, remote, func(o *Options) {
		o.MaxRetries = 5
		o.NewBackOff = func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 1)
		}
	})

	f, err := s.Update(context.Background(), []string{"x"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(f) != 1 || len(remote.calls) != 2 {
		t.Fatalf("failures=%d calls=%d, want 1 and 2", len(f), len(remote.calls))
	}
}

func TestCancelledContextStillReportsEveryKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inv := InvalidatorFunc(func(ctx context.Context, _ []string) error { return ctx.Err() })
	s := newTestScheduler(t, inv, func(o *Options) {
		o.PageSize = 2
		o.MaxRetries = 1
		o.RetryDelay = time.Hour
	})

	done := make(chan Failures, 1)
	go func() {
		f, _ := s.Update(ctx, []string{"a", "b", "c"})
		done <- f
	}()
	select {
	case f := <-done:
		if got := failureKeys(f); !reflect.DeepEqual(got, [][]string{{"c"}, {"b"}, {"a"}}) {
			t.Fatalf("failures = %v", got)
		}
		if !errors.Is(f[0].Err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", f[0].Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Update blocked on retry delay despite cancelled context")
	}
}

// ==============================
// Error normalization and hooks
// ==============================

func TestPanickingInvalidatorIsTreatedAsFailure(t *testing.T) {
	inv := InvalidatorFunc(func(_ context.Context, keys []string) error {
		for _, k := range keys {
			if k == "boom" {
				panic("transport exploded")
			}
		}
		return nil
	})
	s := newTestScheduler(t, inv, func(o *Options) { o.MaxRetries = 1 })

	f, err := s.Update(context.Background(), []string{"a", "boom", "c"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := failureKeys(f); !reflect.DeepEqual(got, [][]string{{"boom"}}) {
		t.Fatalf("failures = %v", got)
	}
	if !strings.Contains(f[0].Err.Error(), "transport exploded") {
		t.Fatalf("panic value lost: %v", f[0].Err)
	}
}

type recordingHooks struct {
	NopHooks
	succeeded, split int
	retries          []string
	abandoned        []string
}

func (h *recordingHooks) BatchSucceeded(int)    { h.succeeded++ }
func (h *recordingHooks) BatchSplit(int, error) { h.split++ }
func (h *recordingHooks) RetryScheduled(k string, attempt int, _ error) {
	h.retries = append(h.retries, fmt.Sprintf("%s#%d", k, attempt))
}
func (h *recordingHooks) KeyAbandoned(k string, attempts int, _ error) {
	h.abandoned = append(h.abandoned, fmt.Sprintf("%s#%d", k, attempts))
}

type countingLogger struct {
	NopLogger
	warns int
}

func (l *countingLogger) Warn(string, Fields) { l.warns++ }

func TestHooksAndLogger(t *testing.T) {
	remote := newFakeRemote(failAlways("d"))
	hooks := &recordingHooks{}
	logger := &countingLogger{}
	s := newTestScheduler(t, remote, func(o *Options) {
		o.PageSize = 4
		o.MaxRetries = 2
		o.Hooks = hooks
		o.Logger = logger
	})

	if _, err := s.Update(context.Background(), []string{"a", "b", "c", "d"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if hooks.split != 2 || hooks.succeeded != 2 {
		t.Fatalf("split=%d succeeded=%d, want 2 and 2", hooks.split, hooks.succeeded)
	}
	if !reflect.DeepEqual(hooks.retries, []string{"d#1", "d#2"}) {
		t.Fatalf("retries = %v", hooks.retries)
	}
	if !reflect.DeepEqual(hooks.abandoned, []string{"d#3"}) {
		t.Fatalf("abandoned = %v", hooks.abandoned)
	}
	if logger.warns != 2 {
		t.Fatalf("warns = %d, want 2 (give up + summary)", logger.warns)
	}
}

func TestInvalidatorFuncRejectsEmptyBatch(t *testing.T) {
	called := false
	inv := InvalidatorFunc(func(context.Context, []string) error { called = true; return nil })
	if err := inv.Invalidate(context.Background(), nil); !errors.Is(err, ErrEmptyKeys) {
		t.Fatalf("err = %v, want ErrEmptyKeys", err)
	}
	if called {
		t.Fatalf("function called with empty batch")
	}
}
