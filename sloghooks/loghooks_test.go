package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	rc "github.com/unkn0wn-root/removalcache"
)

func newTestHooks(opts Options) (*Hooks, *bytes.Buffer) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(l, opts), &buf
}

func TestHooks_RedactsKeys(t *testing.T) {
	h, buf := newTestHooks(Options{})
	h.OpFailed(rc.OpGetHash, "o3_hash:secret-request", errors.New("boom"))

	out := buf.String()
	if strings.Contains(out, "secret-request") {
		t.Fatalf("key leaked: %s", out)
	}
	if !strings.Contains(out, "removalcache.op_failed") || !strings.Contains(out, "op=get_hash") {
		t.Fatalf("unexpected line: %s", out)
	}
}

func TestHooks_CustomRedact(t *testing.T) {
	h, buf := newTestHooks(Options{Redact: func(string) string { return "REDACTED" }})
	h.TruncateFailed("o1_delimited:*", "o1_delimited:x", errors.New("boom"))
	if !strings.Contains(buf.String(), "key=REDACTED") {
		t.Fatalf("custom redactor not used: %s", buf.String())
	}
}

func TestHooks_Sampling(t *testing.T) {
	h, buf := newTestHooks(Options{AsyncDroppedEvery: 5})
	for i := 0; i < 10; i++ {
		h.AsyncDropped(rc.OpSetHash, "k")
	}
	if n := strings.Count(buf.String(), "removalcache.async_dropped"); n != 2 {
		t.Fatalf("logged %d lines, want 2", n)
	}
}

func TestHooks_NilLogger(t *testing.T) {
	h := New(nil, Options{})
	h.OpFailed("op", "k", nil)
	h.ExpireFailed("k", 0, nil)
	h.AsyncDropped("op", "k")
	h.TruncateFailed("p", "k", nil)
}
