package ristretto

import (
	"context"
	"errors"
	"testing"

	"github.com/unkn0wn-root/removalcache/internal/providertest"
	pr "github.com/unkn0wn-root/removalcache/provider"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(Config{NumCounters: 1e4, MaxCost: 1e3, BufferItems: 64})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestConformance(t *testing.T) {
	providertest.Run(t, providertest.Caps{Expiry: true}, func(t *testing.T) pr.Provider {
		return newTestProvider(t)
	})
}

func TestInvalidConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error for zero config")
	}
}

func TestNotAnEnumerator(t *testing.T) {
	var p pr.Provider = newTestProvider(t)
	if _, ok := p.(pr.Enumerator); ok {
		t.Fatalf("ristretto provider must not claim enumeration")
	}
}

func TestHSetKeepsTTLFree(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	if err := p.HSet(ctx, "h", map[string]string{"a": "1"}); err != nil {
		t.Fatalf("HSet: %v", err)
	}
	if ttl := p.remaining("h"); ttl != 0 {
		t.Fatalf("HSet attached ttl %v", ttl)
	}
	if err := p.SAdd(ctx, "h", "x"); !errors.Is(err, ErrWrongType) {
		t.Fatalf("SAdd on hash: got %v want ErrWrongType", err)
	}
}
