package cacherefresh

import "go.uber.org/multierr"

// Failure is a batch the scheduler could not invalidate after exhausting
// bisection and retries. Err is the last error observed for Keys.
type Failure struct {
	Keys []string
	Err  error
}

// Failures lists unresolved batches in the order they were given up on.
type Failures []Failure

// Succeeded reports whether every key was invalidated.
func (f Failures) Succeeded() bool { return len(f) == 0 }

// Keys returns the keys of all failures, in report order.
func (f Failures) Keys() []string {
	var out []string
	for _, fl := range f {
		out = append(out, fl.Keys...)
	}
	return out
}

// Err combines the errors of all failures; nil when the update succeeded.
func (f Failures) Err() error {
	var err error
	for _, fl := range f {
		err = multierr.Append(err, fl.Err)
	}
	return err
}
