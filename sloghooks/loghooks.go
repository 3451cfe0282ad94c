// Package sloghooks reports removalcache failures through log/slog with
// sampling and key redaction.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	rc "github.com/unkn0wn-root/removalcache"
)

type Options struct {
	// Sampling to avoid floods during an outage; 0/1 = log all.
	OpFailedEvery     uint64
	AsyncDroppedEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	opFailedCtr atomic.Uint64
	droppedCtr  atomic.Uint64
}

var _ rc.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if k == "" {
		return ""
	}
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) OpFailed(op, key string, err error) {
	if h.l == nil || !sample(h.opts.OpFailedEvery, &h.opFailedCtr) {
		return
	}
	h.l.Warn("removalcache.op_failed",
		"op", op,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) ExpireFailed(key string, ttl time.Duration, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("removalcache.expire_failed",
		"key", h.redact(key),
		"ttl", ttl,
		"err", err)
}

func (h *Hooks) AsyncDropped(op, key string) {
	if h.l == nil || !sample(h.opts.AsyncDroppedEvery, &h.droppedCtr) {
		return
	}
	h.l.Info("removalcache.async_dropped",
		"op", op,
		"key", h.redact(key))
}

func (h *Hooks) TruncateFailed(pattern, key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("removalcache.truncate_failed",
		"pattern", pattern,
		"key", h.redact(key),
		"err", err)
}
