package redis

import (
	"context"
	"os"
	"testing"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/removalcache/internal/providertest"
	pr "github.com/unkn0wn-root/removalcache/provider"
)

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{}); err != ErrNilClient {
		t.Fatalf("New(nil client) = %v, want ErrNilClient", err)
	}
}

// TestConformance_Live runs against a live server when REDIS_ADDR is set.
// Every subtest flushes the selected DB, so point it at a scratch instance.
func TestConformance_Live(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	providertest.Run(t, providertest.Caps{Expiry: true, Enumeration: true}, func(t *testing.T) pr.Provider {
		rdb := goredis.NewClient(&goredis.Options{Addr: addr, DB: 15})
		if err := rdb.FlushDB(context.Background()).Err(); err != nil {
			t.Fatalf("FlushDB: %v", err)
		}
		p, err := New(Config{Client: rdb, CloseClient: true})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = p.Close(context.Background()) })
		return p
	})
}
