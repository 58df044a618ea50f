// Package promhooks exports scheduler events as Prometheus counters.
package promhooks

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/cacherefresh"
)

// Hooks counts scheduler events. The zero value is not usable; use New.
type Hooks struct {
	batches   *prometheus.CounterVec
	keys      prometheus.Counter
	retries   prometheus.Counter
	abandoned prometheus.Counter
	batchSize prometheus.Histogram
}

var _ cacherefresh.Hooks = (*Hooks)(nil)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Hooks, error) {
	h := &Hooks{
		batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cacherefresh_batches_total",
				Help: "Number of invalidation batches sent, by outcome.",
			},
			[]string{"outcome"},
		),
		keys: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cacherefresh_invalidated_keys_total",
				Help: "Number of keys invalidated successfully.",
			},
		),
		retries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cacherefresh_key_retries_total",
				Help: "Number of retries of single failing keys.",
			},
		),
		abandoned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cacherefresh_abandoned_keys_total",
				Help: "Number of keys given up on after all retries.",
			},
		),
		batchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cacherefresh_batch_size",
				Help:    "Number of keys per invalidation batch.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
	}
	for _, c := range []prometheus.Collector{h.batches, h.keys, h.retries, h.abandoned, h.batchSize} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) BatchSucceeded(size int) {
	h.batches.WithLabelValues("success").Inc()
	h.keys.Add(float64(size))
	h.batchSize.Observe(float64(size))
}

func (h *Hooks) BatchSplit(size int, _ error) {
	h.batches.WithLabelValues("split").Inc()
	h.batchSize.Observe(float64(size))
}

func (h *Hooks) RetryScheduled(string, int, error) {
	h.batches.WithLabelValues("retry").Inc()
	h.retries.Inc()
	h.batchSize.Observe(1)
}

func (h *Hooks) KeyAbandoned(string, int, error) {
	h.batches.WithLabelValues("abandoned").Inc()
	h.abandoned.Inc()
	h.batchSize.Observe(1)
}
