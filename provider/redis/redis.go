package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/removalcache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

// scanCount is the COUNT hint passed to SCAN.
const scanCount = 500

type Redis struct {
	rdb         goredis.UniversalClient
	replica     goredis.UniversalClient
	closeClient bool
}

var (
	_ pr.Provider   = (*Redis)(nil)
	_ pr.Enumerator = (*Redis)(nil)
)

type Config struct {
	Client goredis.UniversalClient
	// Replica serves reads tagged PreferReplica. Optional: nil routes every
	// read to Client. A ClusterClient built with ReadOnly (or RouteByLatency)
	// already spreads reads over replicas and needs no Replica here.
	Replica     goredis.UniversalClient
	CloseClient bool // set true only if this provider exclusively owns the clients
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, replica: cfg.Replica, closeClient: cfg.CloseClient}, nil
}

func (p *Redis) reader(pref pr.ReadPreference) goredis.UniversalClient {
	if pref == pr.PreferReplica && p.replica != nil {
		return p.replica
	}
	return p.rdb
}

func (p *Redis) Get(ctx context.Context, key string, pref pr.ReadPreference) (string, bool, error) {
	s, err := p.reader(pref).Get(ctx, key).Result()
	if err == goredis.Nil {
		return "", false, nil // miss
	}
	if err != nil {
		return "", false, err // transport/server error
	}
	return s, true, nil
}

func (p *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0 // non-positive TTLs mean "no expiry"
	}
	return p.rdb.Set(ctx, key, value, ttl).Err()
}

func (p *Redis) Del(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, key).Err()
}

func (p *Redis) HGetAll(ctx context.Context, key string, pref pr.ReadPreference) (map[string]string, error) {
	return p.reader(pref).HGetAll(ctx, key).Result()
}

func (p *Redis) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil // HSET with no pairs is a protocol error
	}
	args := make([]any, 0, len(fields)*2)
	for f, v := range fields {
		args = append(args, f, v)
	}
	return p.rdb.HSet(ctx, key, args...).Err()
}

func (p *Redis) SMembers(ctx context.Context, key string, pref pr.ReadPreference) ([]string, error) {
	return p.reader(pref).SMembers(ctx, key).Result()
}

func (p *Redis) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return p.rdb.SAdd(ctx, key, args...).Err()
}

func (p *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return p.rdb.Expire(ctx, key, ttl).Err()
}

// Keys walks the keyspace with SCAN MATCH. On a cluster every master is scanned.
// Keys written while the scan runs may or may not be returned.
func (p *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	if cc, ok := p.rdb.(*goredis.ClusterClient); ok {
		var (
			mu  sync.Mutex
			out []string
		)
		err := cc.ForEachMaster(ctx, func(ctx context.Context, node *goredis.Client) error {
			ks, err := scan(ctx, node, pattern)
			mu.Lock()
			out = append(out, ks...)
			mu.Unlock()
			return err
		})
		return out, err
	}
	return scan(ctx, p.rdb, pattern)
}

type scanner interface {
	Scan(ctx context.Context, cursor uint64, match string, count int64) *goredis.ScanCmd
}

func scan(ctx context.Context, c scanner, pattern string) ([]string, error) {
	var out []string
	iter := c.Scan(ctx, 0, pattern, scanCount).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val())
	}
	return out, iter.Err()
}

// Close releases the underlying redis clients only when this provider owns them.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if !p.closeClient {
		return nil
	}
	var errs []error
	if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		errs = append(errs, err)
	}
	if p.replica != nil {
		if err := p.replica.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
