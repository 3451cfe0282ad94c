package ristretto

import (
	"context"
	"errors"
	"sync"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/removalcache/provider"
)

var (
	ErrRejected  = errors.New("ristretto: write rejected (admission or buffer pressure)")
	ErrWrongType = errors.New("ristretto: operation against a key holding the wrong kind of value")
)

// Provider keeps scalars, hashes and sets as Go values in a ristretto cache.
// It cannot enumerate keys, so it does not implement provider.Enumerator and
// pattern truncation reports provider.ErrEnumerationUnsupported.
type Provider struct {
	c *rc.Cache
	// serializes read-modify-write on hashes and sets
	mu sync.Mutex

	closeOnce sync.Once
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64 // every key costs 1
	BufferItems int64
	Metrics     bool
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

// set writes v and waits until it is visible to Get.
func (p *Provider) set(key string, v any, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if !p.c.SetWithTTL(key, v, 1, ttl) {
		return ErrRejected
	}
	p.c.Wait()
	return nil
}

func (p *Provider) Get(_ context.Context, key string, _ pr.ReadPreference) (string, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return "", false, nil
	}
	s, isStr := v.(string)
	if !isStr {
		return "", false, ErrWrongType
	}
	return s, true, nil
}

func (p *Provider) Set(_ context.Context, key, value string, ttl time.Duration) error {
	return p.set(key, value, ttl)
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Provider) HGetAll(_ context.Context, key string, _ pr.ReadPreference) (map[string]string, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return map[string]string{}, nil
	}
	h, isHash := v.(map[string]string)
	if !isHash {
		return nil, ErrWrongType
	}
	out := make(map[string]string, len(h))
	for f, val := range h {
		out[f] = val
	}
	return out, nil
}

// HSet copies the stored map before writing; readers never see a map mutate.
func (p *Provider) HSet(_ context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	next := make(map[string]string, len(fields))
	if v, ok := p.c.Get(key); ok {
		h, isHash := v.(map[string]string)
		if !isHash {
			return ErrWrongType
		}
		for f, val := range h {
			next[f] = val
		}
	}
	for f, val := range fields {
		next[f] = val
	}
	return p.set(key, next, p.remaining(key))
}

func (p *Provider) SMembers(_ context.Context, key string, _ pr.ReadPreference) ([]string, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return []string{}, nil
	}
	s, isSet := v.(map[string]struct{})
	if !isSet {
		return nil, ErrWrongType
	}
	out := make([]string, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	return out, nil
}

func (p *Provider) SAdd(_ context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	next := make(map[string]struct{}, len(members))
	if v, ok := p.c.Get(key); ok {
		s, isSet := v.(map[string]struct{})
		if !isSet {
			return ErrWrongType
		}
		for m := range s {
			next[m] = struct{}{}
		}
	}
	for _, m := range members {
		next[m] = struct{}{}
	}
	return p.set(key, next, p.remaining(key))
}

// Expire rewrites the current value with a new TTL. ttl <= 0 deletes the key.
func (p *Provider) Expire(_ context.Context, key string, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.c.Get(key)
	if !ok {
		return nil
	}
	if ttl <= 0 {
		p.c.Del(key)
		return nil
	}
	return p.set(key, v, ttl)
}

// remaining returns the TTL left on key, 0 for none.
func (p *Provider) remaining(key string) time.Duration {
	ttl, ok := p.c.GetTTL(key)
	if !ok {
		return 0
	}
	return ttl
}

// Close flushes pending writes and stops the cache. Safe to call twice.
func (p *Provider) Close(_ context.Context) error {
	p.closeOnce.Do(func() {
		p.c.Wait()
		p.c.Close()
	})
	return nil
}

// Metrics exposes ristretto counters (nil unless Config.Metrics).
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }
