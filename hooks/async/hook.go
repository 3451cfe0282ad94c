// Package asynchook runs removalcache hooks on a small worker pool so a slow
// hook never stalls a store call.
//
// usage:
//
//	raw := sloghooks.New(slog.New(zapslog.NewHandler(core)), sloghooks.Options{OpFailedEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	store, _ := removalcache.New(removalcache.Options{
//	    Provider: provider,
//	    Hooks:    hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync/atomic"
	"time"

	rc "github.com/unkn0wn-root/removalcache"
	"github.com/unkn0wn-root/removalcache/internal/dispatch"
)

type Hooks struct {
	inner   rc.Hooks
	pool    *dispatch.Pool
	dropped atomic.Uint64
}

var _ rc.Hooks = (*Hooks)(nil)

// New starts workers goroutines draining a queue of qlen events.
// Events arriving while the queue is full are dropped.
func New(inner rc.Hooks, workers, qlen int) *Hooks {
	return &Hooks{inner: inner, pool: dispatch.New(workers, qlen)}
}

// Close delivers queued events and stops the workers.
func (h *Hooks) Close() { h.pool.Close() }

// Dropped returns how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	if !h.pool.Submit(f) {
		h.dropped.Add(1)
	}
}

func (h *Hooks) OpFailed(op, key string, err error) { h.try(func() { h.inner.OpFailed(op, key, err) }) }
func (h *Hooks) AsyncDropped(op, key string)        { h.try(func() { h.inner.AsyncDropped(op, key) }) }
func (h *Hooks) ExpireFailed(key string, ttl time.Duration, err error) {
	h.try(func() { h.inner.ExpireFailed(key, ttl, err) })
}
func (h *Hooks) TruncateFailed(pattern, key string, err error) {
	h.try(func() { h.inner.TruncateFailed(pattern, key, err) })
}
