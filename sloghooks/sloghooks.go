package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/cacherefresh"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SuccessEvery uint64
	RetryEvery   uint64
	// Optional key redactor. nil logs keys as is; use HashKey to hide them.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	successCtr atomic.Uint64
	retryCtr   atomic.Uint64
}

var _ cacherefresh.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

// HashKey is a redactor that logs a SHA-256 prefix instead of the key.
func HashKey(k string) string {
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return k
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) BatchSucceeded(size int) {
	if h.l == nil || !sample(h.opts.SuccessEvery, &h.successCtr) {
		return
	}
	h.l.Debug("cacherefresh.batch_succeeded", "size", size)
}

func (h *Hooks) BatchSplit(size int, err error) {
	if h.l == nil {
		return
	}
	h.l.Info("cacherefresh.batch_split",
		"size", size,
		"err", err)
}

func (h *Hooks) RetryScheduled(key string, attempt int, err error) {
	if h.l == nil || !sample(h.opts.RetryEvery, &h.retryCtr) {
		return
	}
	h.l.Warn("cacherefresh.retry_scheduled",
		"key", h.redact(key),
		"attempt", attempt,
		"err", err)
}

func (h *Hooks) KeyAbandoned(key string, attempts int, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("cacherefresh.key_abandoned",
		"key", h.redact(key),
		"attempts", attempts,
		"err", err)
}
