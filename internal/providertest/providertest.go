// Package providertest is a conformance suite shared by the provider tests.
package providertest

import (
	"context"
	"sort"
	"testing"
	"time"

	pr "github.com/unkn0wn-root/removalcache/provider"
)

// Caps describes optional behavior a provider supports.
type Caps struct {
	Expiry      bool // per-key TTL is honored
	Enumeration bool // implements provider.Enumerator
	// Advance moves the provider's clock forward. Nil means real time.
	Advance func(d time.Duration)
}

// Run exercises the Provider contract against fresh providers from newProvider.
func Run(t *testing.T, caps Caps, newProvider func(t *testing.T) pr.Provider) {
	t.Helper()
	ctx := context.Background()

	t.Run("scalar_roundtrip_and_miss", func(t *testing.T) {
		p := newProvider(t)
		if _, ok, err := p.Get(ctx, "s:missing", pr.PreferPrimary); err != nil || ok {
			t.Fatalf("miss expected, ok=%v err=%v", ok, err)
		}
		if err := p.Set(ctx, "s:1", "v1", 0); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, ok, err := p.Get(ctx, "s:1", pr.PreferReplica)
		if err != nil || !ok || got != "v1" {
			t.Fatalf("Get = %q ok=%v err=%v", got, ok, err)
		}
		if err := p.Del(ctx, "s:1"); err != nil {
			t.Fatalf("Del: %v", err)
		}
		if _, ok, _ := p.Get(ctx, "s:1", pr.PreferPrimary); ok {
			t.Fatalf("key survived Del")
		}
		if err := p.Del(ctx, "s:1"); err != nil {
			t.Fatalf("Del of missing key should not fail: %v", err)
		}
	})

	t.Run("hash_merges_fields", func(t *testing.T) {
		p := newProvider(t)
		if err := p.HSet(ctx, "h:1", map[string]string{"a": "1", "b": "2"}); err != nil {
			t.Fatalf("HSet: %v", err)
		}
		if err := p.HSet(ctx, "h:1", map[string]string{"b": "3", "c": "4"}); err != nil {
			t.Fatalf("HSet: %v", err)
		}
		got, err := p.HGetAll(ctx, "h:1", pr.PreferPrimary)
		if err != nil {
			t.Fatalf("HGetAll: %v", err)
		}
		want := map[string]string{"a": "1", "b": "3", "c": "4"}
		if len(got) != len(want) {
			t.Fatalf("HGetAll = %v want %v", got, want)
		}
		for f, v := range want {
			if got[f] != v {
				t.Fatalf("HGetAll = %v want %v", got, want)
			}
		}
		miss, err := p.HGetAll(ctx, "h:missing", pr.PreferPrimary)
		if err != nil || len(miss) != 0 {
			t.Fatalf("HGetAll miss = %v err=%v", miss, err)
		}
	})

	t.Run("set_dedupes_members", func(t *testing.T) {
		p := newProvider(t)
		if err := p.SAdd(ctx, "m:1", "x", "y"); err != nil {
			t.Fatalf("SAdd: %v", err)
		}
		if err := p.SAdd(ctx, "m:1", "y", "z"); err != nil {
			t.Fatalf("SAdd: %v", err)
		}
		got, err := p.SMembers(ctx, "m:1", pr.PreferReplica)
		if err != nil {
			t.Fatalf("SMembers: %v", err)
		}
		sort.Strings(got)
		if len(got) != 3 || got[0] != "x" || got[1] != "y" || got[2] != "z" {
			t.Fatalf("SMembers = %v", got)
		}
	})

	t.Run("wrong_kind_fails", func(t *testing.T) {
		p := newProvider(t)
		if err := p.Set(ctx, "k", "v", 0); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if _, err := p.HGetAll(ctx, "k", pr.PreferPrimary); err == nil {
			t.Fatalf("HGetAll on a string key should fail")
		}
		if err := p.SAdd(ctx, "k", "m"); err == nil {
			t.Fatalf("SAdd on a string key should fail")
		}
	})

	if caps.Expiry {
		t.Run("expire_whole_key", func(t *testing.T) {
			p := newProvider(t)
			if err := p.HSet(ctx, "h:ttl", map[string]string{"a": "1"}); err != nil {
				t.Fatalf("HSet: %v", err)
			}
			if err := p.Expire(ctx, "h:ttl", 50*time.Millisecond); err != nil {
				t.Fatalf("Expire: %v", err)
			}
			if caps.Advance != nil {
				caps.Advance(time.Second)
			}
			deadline := time.Now().Add(3 * time.Second)
			for time.Now().Before(deadline) {
				got, err := p.HGetAll(ctx, "h:ttl", pr.PreferPrimary)
				if err != nil {
					t.Fatalf("HGetAll: %v", err)
				}
				if len(got) == 0 {
					return
				}
				time.Sleep(20 * time.Millisecond)
			}
			t.Fatalf("hash did not expire")
		})
	}

	if caps.Enumeration {
		t.Run("keys_by_pattern", func(t *testing.T) {
			p := newProvider(t)
			en, ok := p.(pr.Enumerator)
			if !ok {
				t.Fatalf("%T does not implement provider.Enumerator", p)
			}
			for _, k := range []string{"o1:a", "o1:b", "o2:a"} {
				if err := p.Set(ctx, k, "v", 0); err != nil {
					t.Fatalf("Set: %v", err)
				}
			}
			got, err := en.Keys(ctx, "o1:*")
			if err != nil {
				t.Fatalf("Keys: %v", err)
			}
			sort.Strings(got)
			if len(got) != 2 || got[0] != "o1:a" || got[1] != "o1:b" {
				t.Fatalf("Keys = %v", got)
			}
		})

		t.Run("keys_redis_pattern_syntax", func(t *testing.T) {
			p := newProvider(t)
			en, ok := p.(pr.Enumerator)
			if !ok {
				t.Fatalf("%T does not implement provider.Enumerator", p)
			}
			for _, k := range []string{"p:{a}", "p:a", "p:b"} {
				if err := p.Set(ctx, k, "v", 0); err != nil {
					t.Fatalf("Set: %v", err)
				}
			}
			got, err := en.Keys(ctx, "p:{a}")
			if err != nil {
				t.Fatalf("Keys: %v", err)
			}
			if len(got) != 1 || got[0] != "p:{a}" {
				t.Fatalf("braces must match literally, Keys = %v", got)
			}
			got, err = en.Keys(ctx, "p:[^a]")
			if err != nil {
				t.Fatalf("Keys: %v", err)
			}
			if len(got) != 1 || got[0] != "p:b" {
				t.Fatalf("[^a] must negate, Keys = %v", got)
			}
		})
	}

	t.Run("close_twice", func(t *testing.T) {
		p := newProvider(t)
		if err := p.Close(ctx); err != nil {
			t.Fatalf("first Close: %v", err)
		}
		if err := p.Close(ctx); err != nil {
			t.Fatalf("second Close: %v", err)
		}
	})
}
