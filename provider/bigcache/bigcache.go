package bigcache

import (
	"context"
	"errors"
	"sync"
	"time"

	bc "github.com/allegro/bigcache/v3"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/unkn0wn-root/removalcache/internal/match"
	pr "github.com/unkn0wn-root/removalcache/provider"
)

var ErrWrongType = errors.New("bigcache: operation against a key holding the wrong kind of value")

const (
	kindString uint8 = iota + 1
	kindHash
	kindSet
)

// envelope is the msgpack shape every bigcache entry is stored in.
type envelope struct {
	Kind    uint8             `msgpack:"k"`
	Str     string            `msgpack:"s,omitempty"`
	Hash    map[string]string `msgpack:"h,omitempty"`
	Members []string          `msgpack:"m,omitempty"`
}

// Provider stores every value shape as a msgpack envelope in BigCache.
// BigCache has no per-entry TTL: every entry lives for Config.LifeWindow, and
// the ttl arguments of Set and Expire are ignored.
type Provider struct {
	c  *bc.BigCache
	mu sync.Mutex // serializes read-modify-write on hashes and sets

	closeOnce sync.Once
	closeErr  error
}

var (
	_ pr.Provider   = (*Provider)(nil)
	_ pr.Enumerator = (*Provider)(nil)
)

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(cfg Config) (*Provider, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) load(key string) (envelope, bool, error) {
	b, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return envelope{}, false, nil
	}
	if err != nil {
		return envelope{}, false, err
	}
	var e envelope
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return envelope{}, false, err
	}
	return e, true, nil
}

func (p *Provider) store(key string, e envelope) error {
	b, err := msgpack.Marshal(&e)
	if err != nil {
		return err
	}
	return p.c.Set(key, b)
}

func (p *Provider) Get(_ context.Context, key string, _ pr.ReadPreference) (string, bool, error) {
	e, ok, err := p.load(key)
	if err != nil || !ok {
		return "", false, err
	}
	if e.Kind != kindString {
		return "", false, ErrWrongType
	}
	return e.Str, true, nil
}

func (p *Provider) Set(_ context.Context, key, value string, _ time.Duration) error {
	return p.store(key, envelope{Kind: kindString, Str: value})
}

func (p *Provider) Del(_ context.Context, key string) error {
	err := p.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (p *Provider) HGetAll(_ context.Context, key string, _ pr.ReadPreference) (map[string]string, error) {
	e, ok, err := p.load(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]string{}, nil
	}
	if e.Kind != kindHash {
		return nil, ErrWrongType
	}
	if e.Hash == nil {
		return map[string]string{}, nil
	}
	return e.Hash, nil
}

func (p *Provider) HSet(_ context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok, err := p.load(key)
	if err != nil {
		return err
	}
	if !ok {
		e = envelope{Kind: kindHash}
	}
	if e.Kind != kindHash {
		return ErrWrongType
	}
	if e.Hash == nil {
		e.Hash = make(map[string]string, len(fields))
	}
	for f, v := range fields {
		e.Hash[f] = v
	}
	return p.store(key, e)
}

func (p *Provider) SMembers(_ context.Context, key string, _ pr.ReadPreference) ([]string, error) {
	e, ok, err := p.load(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}
	if e.Kind != kindSet {
		return nil, ErrWrongType
	}
	return e.Members, nil
}

func (p *Provider) SAdd(_ context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok, err := p.load(key)
	if err != nil {
		return err
	}
	if !ok {
		e = envelope{Kind: kindSet}
	}
	if e.Kind != kindSet {
		return ErrWrongType
	}
	seen := make(map[string]struct{}, len(e.Members)+len(members))
	for _, m := range e.Members {
		seen[m] = struct{}{}
	}
	for _, m := range members {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		e.Members = append(e.Members, m)
	}
	return p.store(key, e)
}

// Expire is a no-op: entries expire after the global LifeWindow.
func (p *Provider) Expire(context.Context, string, time.Duration) error { return nil }

// Keys matches every entry key against pattern while iterating the shards.
func (p *Provider) Keys(_ context.Context, pattern string) ([]string, error) {
	g, err := match.Compile(pattern)
	if err != nil {
		return nil, err
	}
	var out []string
	it := p.c.Iterator()
	for it.SetNext() {
		info, err := it.Value()
		if err != nil {
			return out, err
		}
		if k := info.Key(); g.Match(k) {
			out = append(out, k)
		}
	}
	return out, nil
}

// Close stops the cleanup goroutine. Repeated calls return the first result.
func (p *Provider) Close(_ context.Context) error {
	p.closeOnce.Do(func() { p.closeErr = p.c.Close() })
	return p.closeErr
}
