package cacherefresh

import (
	"errors"
	"fmt"
)

// ErrEmptyKeys is returned when an update or an Invalidator is called
// without keys. Nothing is sent to the remote side.
var ErrEmptyKeys = errors.New("cacherefresh: no keys to invalidate")

// RemoteError is any non-success outcome of an Invalidator call: a rejection
// reported by the remote side, a transport failure or a recovered panic.
// The scheduler does not tell them apart.
type RemoteError struct {
	Keys []string
	Err  error
}

func (e *RemoteError) Error() string {
	switch len(e.Keys) {
	case 0:
		return fmt.Sprintf("invalidate: %v", e.Err)
	case 1:
		return fmt.Sprintf("invalidate %q: %v", e.Keys[0], e.Err)
	default:
		return fmt.Sprintf("invalidate %d keys (%q..%q): %v",
			len(e.Keys), e.Keys[0], e.Keys[len(e.Keys)-1], e.Err)
	}
}

func (e *RemoteError) Unwrap() error { return e.Err }

// panicError carries a value recovered from a panicking Invalidator.
type panicError struct {
	v any
}

func (e panicError) Error() string { return fmt.Sprintf("invalidator panic: %v", e.v) }
