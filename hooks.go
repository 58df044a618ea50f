package cacherefresh

// Hooks lightweight callbacks for high-signal scheduler events.
// Implementations MUST be cheap and non-blocking.
// The scheduler calls them between RPCs.
type Hooks interface {
	// A batch of size keys was invalidated.
	BatchSucceeded(size int)

	// A batch of size > 1 keys failed and was split in two.
	BatchSplit(size int, err error)

	// A single key failed and will be retried; attempt is the retry number (1-based).
	RetryScheduled(key string, attempt int, err error)

	// A single key failed after all retries and is reported as a Failure.
	KeyAbandoned(key string, attempts int, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) BatchSucceeded(int)                {}
func (NopHooks) BatchSplit(int, error)             {}
func (NopHooks) RetryScheduled(string, int, error) {}
func (NopHooks) KeyAbandoned(string, int, error)   {}
