package cacherefresh

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Options tune the behavior of the Scheduler.
// Only Invalidator is required. Start from DefaultOptions for the stock retry policy.
type Options struct {
	// Required
	Invalidator Invalidator

	PageSize   int           // keys per initial batch; 0 => 100
	MaxRetries int           // retries per single failing key; taken as given, 0 => no retries
	RetryDelay time.Duration // wait before each retry; taken as given, 0 => retry immediately

	// NewBackOff builds the retry schedule of one failing key. It is called once
	// per key that reaches the retry stage. nil => constant RetryDelay.
	// MaxRetries still caps the number of retries; backoff.Stop ends them early.
	NewBackOff func() backoff.BackOff

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used
}

// DefaultOptions returns the stock policy: pages of 100 keys, 3 retries, 1s apart.
func DefaultOptions() Options {
	return Options{
		PageSize:   DefaultPageSize,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
	}
}
