// Package promhooks counts removalcache failures with Prometheus counters.
package promhooks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	rc "github.com/unkn0wn-root/removalcache"
)

const namespace = "removalcache"

type Hooks struct {
	OpFailures       *prometheus.CounterVec
	ExpireFailures   prometheus.Counter
	AsyncDrops       *prometheus.CounterVec
	TruncateFailures *prometheus.CounterVec
}

var _ rc.Hooks = (*Hooks)(nil)

// New creates the counters and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default handler.
func New(reg prometheus.Registerer) (*Hooks, error) {
	h := &Hooks{
		OpFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "op_failures_total",
				Help:      "Store operations that failed, by operation",
			}, []string{"op"}),
		ExpireFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "expire_failures_total",
				Help:      "Hash or set writes left without a ttl because expire failed",
			}),
		AsyncDrops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "async_dropped_total",
				Help:      "Fire-and-forget writes that never ran, by operation",
			}, []string{"op"}),
		TruncateFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "truncate_failures_total",
				Help:      "Enumeration or delete failures during truncate, by pattern",
			}, []string{"pattern"}),
	}
	for _, c := range []prometheus.Collector{h.OpFailures, h.ExpireFailures, h.AsyncDrops, h.TruncateFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) OpFailed(op, _ string, _ error) { h.OpFailures.WithLabelValues(op).Inc() }
func (h *Hooks) AsyncDropped(op, _ string)      { h.AsyncDrops.WithLabelValues(op).Inc() }

func (h *Hooks) ExpireFailed(string, time.Duration, error) { h.ExpireFailures.Inc() }

func (h *Hooks) TruncateFailed(pattern, _ string, _ error) {
	h.TruncateFailures.WithLabelValues(pattern).Inc()
}
