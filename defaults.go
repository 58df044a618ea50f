package cacherefresh

import "time"

const (
	DefaultPageSize   = 100
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
