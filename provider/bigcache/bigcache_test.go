package bigcache

import (
	"context"
	"testing"
	"time"

	"github.com/unkn0wn-root/removalcache/internal/providertest"
	pr "github.com/unkn0wn-root/removalcache/provider"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(Config{LifeWindow: 10 * time.Minute, MaxEntriesInWindow: 1000, MaxEntrySize: 256})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestConformance(t *testing.T) {
	providertest.Run(t, providertest.Caps{Enumeration: true}, func(t *testing.T) pr.Provider {
		return newTestProvider(t)
	})
}

func TestExpireIsIgnored(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	if err := p.SAdd(ctx, "m", "a"); err != nil {
		t.Fatal(err)
	}
	if err := p.Expire(ctx, "m", time.Nanosecond); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	time.Sleep(time.Millisecond)
	got, err := p.SMembers(ctx, "m", pr.PreferPrimary)
	if err != nil || len(got) != 1 {
		t.Fatalf("SMembers = %v err=%v; entry should live for LifeWindow", got, err)
	}
}
