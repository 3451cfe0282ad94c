// Package memory is an in-process Provider with whole-key TTLs and glob key
// enumeration. It mirrors Redis semantics closely enough for tests and local
// runs: type mismatches fail with ErrWrongType, empty hashes and sets vanish.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/unkn0wn-root/removalcache/internal/match"
	pr "github.com/unkn0wn-root/removalcache/provider"
)

var ErrWrongType = errors.New("memory provider: operation against a key holding the wrong kind of value")

type kind uint8

const (
	kindString kind = iota + 1
	kindHash
	kindSet
)

type entry struct {
	kind kind
	str  string
	hash map[string]string
	set  map[string]struct{}
	exp  time.Time // zero => no TTL
}

type Memory struct {
	mu  sync.RWMutex
	m   map[string]*entry
	now func() time.Time
}

var (
	_ pr.Provider   = (*Memory)(nil)
	_ pr.Enumerator = (*Memory)(nil)
)

// Option configures a Memory provider.
type Option func(*Memory)

// WithClock replaces time.Now, for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(p *Memory) { p.now = now }
}

func New(opts ...Option) *Memory {
	p := &Memory{m: make(map[string]*entry), now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// live returns the entry at key, dropping it if expired. Caller holds mu (write).
func (p *Memory) live(key string) *entry {
	e, ok := p.m[key]
	if !ok {
		return nil
	}
	if !e.exp.IsZero() && !p.now().Before(e.exp) {
		delete(p.m, key)
		return nil
	}
	return e
}

func (p *Memory) Get(_ context.Context, key string, _ pr.ReadPreference) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.live(key)
	if e == nil {
		return "", false, nil
	}
	if e.kind != kindString {
		return "", false, ErrWrongType
	}
	return e.str, true, nil
}

func (p *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	e := &entry{kind: kindString, str: value}
	if ttl > 0 {
		e.exp = p.now().Add(ttl)
	}
	p.mu.Lock()
	p.m[key] = e
	p.mu.Unlock()
	return nil
}

func (p *Memory) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

func (p *Memory) HGetAll(_ context.Context, key string, _ pr.ReadPreference) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.live(key)
	if e == nil {
		return map[string]string{}, nil
	}
	if e.kind != kindHash {
		return nil, ErrWrongType
	}
	out := make(map[string]string, len(e.hash))
	for f, v := range e.hash {
		out[f] = v
	}
	return out, nil
}

func (p *Memory) HSet(_ context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.live(key)
	if e == nil {
		e = &entry{kind: kindHash, hash: make(map[string]string, len(fields))}
		p.m[key] = e
	}
	if e.kind != kindHash {
		return ErrWrongType
	}
	for f, v := range fields {
		e.hash[f] = v
	}
	return nil
}

func (p *Memory) SMembers(_ context.Context, key string, _ pr.ReadPreference) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.live(key)
	if e == nil {
		return []string{}, nil
	}
	if e.kind != kindSet {
		return nil, ErrWrongType
	}
	out := make([]string, 0, len(e.set))
	for m := range e.set {
		out = append(out, m)
	}
	return out, nil
}

func (p *Memory) SAdd(_ context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.live(key)
	if e == nil {
		e = &entry{kind: kindSet, set: make(map[string]struct{}, len(members))}
		p.m[key] = e
	}
	if e.kind != kindSet {
		return ErrWrongType
	}
	for _, m := range members {
		e.set[m] = struct{}{}
	}
	return nil
}

// Expire on a missing key is a no-op, as in Redis. ttl <= 0 deletes the key.
func (p *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.live(key)
	if e == nil {
		return nil
	}
	if ttl <= 0 {
		delete(p.m, key)
		return nil
	}
	e.exp = p.now().Add(ttl)
	return nil
}

// Keys returns live keys matching pattern, sorted.
func (p *Memory) Keys(_ context.Context, pattern string) ([]string, error) {
	g, err := match.Compile(pattern)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for k := range p.m {
		if p.live(k) == nil {
			continue
		}
		if g.Match(k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// TTL reports the remaining TTL of key. ok is false when the key is missing;
// a zero duration with ok=true means the key never expires.
func (p *Memory) TTL(key string) (ttl time.Duration, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.live(key)
	if e == nil {
		return 0, false
	}
	if e.exp.IsZero() {
		return 0, true
	}
	return e.exp.Sub(p.now()), true
}

// Len returns the number of live keys.
func (p *Memory) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for k := range p.m {
		if p.live(k) != nil {
			n++
		}
	}
	return n
}

func (p *Memory) Close(context.Context) error { return nil }
