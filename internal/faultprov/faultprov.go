// Package faultprov wraps a Provider and injects failures per operation.
// It also records the read preference every read carried.
package faultprov

import (
	"context"
	"errors"
	"sync"
	"time"

	pr "github.com/unkn0wn-root/removalcache/provider"
)

// ErrInjected is the default failure returned by a failing operation.
var ErrInjected = errors.New("faultprov: injected failure")

// Op names a provider operation.
type Op string

const (
	OpGet      Op = "get"
	OpSet      Op = "set"
	OpDel      Op = "del"
	OpHGetAll  Op = "hgetall"
	OpHSet     Op = "hset"
	OpSMembers Op = "smembers"
	OpSAdd     Op = "sadd"
	OpExpire   Op = "expire"
	OpKeys     Op = "keys"
)

// Provider forwards to Inner unless the operation is set to fail.
type Provider struct {
	Inner pr.Provider

	mu    sync.Mutex
	fail  map[Op]error
	down  error
	reads []pr.ReadPreference
	calls map[Op]int
}

var (
	_ pr.Provider   = (*Provider)(nil)
	_ pr.Enumerator = (*Provider)(nil)
)

func Wrap(inner pr.Provider) *Provider {
	return &Provider{Inner: inner, fail: make(map[Op]error), calls: make(map[Op]int)}
}

// Fail makes op return err (ErrInjected when err is nil) until Heal.
func (p *Provider) Fail(op Op, err error) *Provider {
	if err == nil {
		err = ErrInjected
	}
	p.mu.Lock()
	p.fail[op] = err
	p.mu.Unlock()
	return p
}

// Down makes every operation fail, as if the store were unreachable.
func (p *Provider) Down(err error) *Provider {
	if err == nil {
		err = ErrInjected
	}
	p.mu.Lock()
	p.down = err
	p.mu.Unlock()
	return p
}

// Heal clears every injected failure.
func (p *Provider) Heal() {
	p.mu.Lock()
	p.fail = make(map[Op]error)
	p.down = nil
	p.mu.Unlock()
}

// Reads returns the read preferences seen so far.
func (p *Provider) Reads() []pr.ReadPreference {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pr.ReadPreference(nil), p.reads...)
}

// Calls returns how many times op was invoked, failed or not.
func (p *Provider) Calls(op Op) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *Provider) enter(op Op) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[op]++
	if p.down != nil {
		return p.down
	}
	return p.fail[op]
}

func (p *Provider) read(op Op, pref pr.ReadPreference) error {
	p.mu.Lock()
	p.reads = append(p.reads, pref)
	p.mu.Unlock()
	return p.enter(op)
}

func (p *Provider) Get(ctx context.Context, key string, pref pr.ReadPreference) (string, bool, error) {
	if err := p.read(OpGet, pref); err != nil {
		return "", false, err
	}
	return p.Inner.Get(ctx, key, pref)
}

func (p *Provider) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := p.enter(OpSet); err != nil {
		return err
	}
	return p.Inner.Set(ctx, key, value, ttl)
}

func (p *Provider) Del(ctx context.Context, key string) error {
	if err := p.enter(OpDel); err != nil {
		return err
	}
	return p.Inner.Del(ctx, key)
}

func (p *Provider) HGetAll(ctx context.Context, key string, pref pr.ReadPreference) (map[string]string, error) {
	if err := p.read(OpHGetAll, pref); err != nil {
		return nil, err
	}
	return p.Inner.HGetAll(ctx, key, pref)
}

func (p *Provider) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := p.enter(OpHSet); err != nil {
		return err
	}
	return p.Inner.HSet(ctx, key, fields)
}

func (p *Provider) SMembers(ctx context.Context, key string, pref pr.ReadPreference) ([]string, error) {
	if err := p.read(OpSMembers, pref); err != nil {
		return nil, err
	}
	return p.Inner.SMembers(ctx, key, pref)
}

func (p *Provider) SAdd(ctx context.Context, key string, members ...string) error {
	if err := p.enter(OpSAdd); err != nil {
		return err
	}
	return p.Inner.SAdd(ctx, key, members...)
}

func (p *Provider) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := p.enter(OpExpire); err != nil {
		return err
	}
	return p.Inner.Expire(ctx, key, ttl)
}

// Keys forwards to Inner when it can enumerate.
func (p *Provider) Keys(ctx context.Context, pattern string) ([]string, error) {
	if err := p.enter(OpKeys); err != nil {
		return nil, err
	}
	en, ok := p.Inner.(pr.Enumerator)
	if !ok {
		return nil, pr.ErrEnumerationUnsupported
	}
	return en.Keys(ctx, pattern)
}

func (p *Provider) Close(ctx context.Context) error { return p.Inner.Close(ctx) }
