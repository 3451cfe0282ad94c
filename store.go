package removalcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/removalcache/internal/dispatch"
	pr "github.com/unkn0wn-root/removalcache/provider"
)

type store struct {
	provider pr.Provider
	pref     pr.ReadPreference
	log      Logger
	hooks    Hooks
	async    *dispatch.Pool
}

// failureReporter lets helpers built on a Store report through its hooks.
type failureReporter interface {
	failed(op, key string, err error)
}

var (
	_ Store           = (*store)(nil)
	_ failureReporter = (*store)(nil)
)

func newStore(opts Options) (*store, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("removalcache: provider is required")
	}
	if opts.ReadPreference != pr.PreferPrimary && opts.ReadPreference != pr.PreferReplica {
		return nil, fmt.Errorf("removalcache: unknown read preference %d", opts.ReadPreference)
	}

	s := &store{
		provider: opts.Provider,
		pref:     opts.ReadPreference,
	}

	// defaults
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	s.async = dispatch.New(
		coalesce(opts.AsyncWorkers, defaultAsyncWorkers),
		coalesce(opts.AsyncQueue, defaultAsyncQueue),
	)
	return s, nil
}

func (s *store) ReadPreference() pr.ReadPreference { return s.pref }

func (s *store) Close(ctx context.Context) error {
	// drain fire-and-forget writes before the provider goes away
	s.async.Close()
	return s.provider.Close(ctx)
}

func (s *store) GetScalar(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.provider.Get(ctx, key, s.pref)
	if err != nil {
		s.failed(OpGetScalar, key, err)
		return "", false, &KeyError{Op: OpGetScalar, Key: key}
	}
	return v, ok, nil
}

func (s *store) SetScalar(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.provider.Set(ctx, key, value, nonNegative(ttl)); err != nil {
		s.failed(OpSetScalar, key, err)
		return &KeyError{Op: OpSetScalar, Key: key}
	}
	return nil
}

func (s *store) RemoveKey(ctx context.Context, key string) {
	if err := s.provider.Del(ctx, key); err != nil {
		s.failed(OpRemoveKey, key, err)
	}
}

func (s *store) GetHash(ctx context.Context, key string) (map[string]string, bool) {
	fields, err := s.provider.HGetAll(ctx, key, s.pref)
	if err != nil {
		s.failed(OpGetHash, key, err)
		return nil, false
	}
	if len(fields) == 0 {
		return nil, false
	}
	return fields, true
}

func (s *store) SetHash(ctx context.Context, key string, fields map[string]string, ttl time.Duration) {
	if len(fields) == 0 {
		return
	}
	if err := s.provider.HSet(ctx, key, fields); err != nil {
		s.failed(OpSetHash, key, err)
		return
	}
	// no per-field expiry: the TTL goes on the whole key in a second command
	s.expire(ctx, key, ttl)
}

func (s *store) SetHashAsync(ctx context.Context, key string, fields map[string]string, ttl time.Duration) {
	if len(fields) == 0 {
		return
	}
	cp := make(map[string]string, len(fields))
	for f, v := range fields {
		cp[f] = v
	}
	bg := context.WithoutCancel(ctx)
	s.submit(OpSetHash, key, func() { s.SetHash(bg, key, cp, ttl) })
}

func (s *store) GetSetMembers(ctx context.Context, key string) ([]string, bool) {
	members, err := s.provider.SMembers(ctx, key, s.pref)
	if err != nil {
		s.failed(OpGetSetMembers, key, err)
		return nil, false
	}
	if len(members) == 0 {
		return nil, false
	}
	return members, true
}

func (s *store) AddSetMembers(ctx context.Context, key string, members []string, ttl time.Duration) {
	if len(members) == 0 {
		return
	}
	if err := s.provider.SAdd(ctx, key, members...); err != nil {
		s.failed(OpAddSetMembers, key, err)
		return
	}
	s.expire(ctx, key, ttl)
}

func (s *store) AddSetMembersAsync(ctx context.Context, key string, members []string, ttl time.Duration) {
	if len(members) == 0 {
		return
	}
	cp := append([]string(nil), members...)
	bg := context.WithoutCancel(ctx)
	s.submit(OpAddSetMembers, key, func() { s.AddSetMembers(bg, key, cp, ttl) })
}

func (s *store) TruncateByPattern(ctx context.Context, patterns ...string) (int, error) {
	en, ok := s.provider.(pr.Enumerator)
	if !ok {
		return 0, pr.ErrEnumerationUnsupported
	}

	var (
		deleted int
		errs    []error
	)
	for _, pattern := range patterns {
		keys, err := en.Keys(ctx, pattern)
		if err != nil {
			// keys returned before the failure are still deleted below
			s.truncateFailed(pattern, "", err)
			errs = append(errs, &TruncateError{Pattern: pattern, Err: err})
		}
		for _, k := range keys {
			if err := s.provider.Del(ctx, k); err != nil {
				s.truncateFailed(pattern, k, err)
				errs = append(errs, &TruncateError{Pattern: pattern, Key: k, Err: err})
				continue
			}
			deleted++
		}
	}
	s.log.Debug("truncated keys by pattern", Fields{"patterns": patterns, "deleted": deleted, "failures": len(errs)})
	return deleted, errors.Join(errs...)
}

// expire is step two of TTL emulation for hashes and sets.
func (s *store) expire(ctx context.Context, key string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := s.provider.Expire(ctx, key, ttl); err != nil {
		s.log.Debug("expire after write failed; key left without ttl", Fields{"key": key, "ttl": ttl, "err": err})
		s.hooks.ExpireFailed(key, ttl, err)
	}
}

func (s *store) submit(op, key string, f func()) {
	if !s.async.Submit(f) {
		s.log.Debug("async write dropped", Fields{"op": op, "key": key})
		s.hooks.AsyncDropped(op, key)
	}
}

func (s *store) failed(op, key string, err error) {
	s.log.Debug("store op failed", Fields{"op": op, "key": key, "err": err})
	s.hooks.OpFailed(op, key, err)
}

func (s *store) truncateFailed(pattern, key string, err error) {
	s.log.Debug("truncate step failed", Fields{"pattern": pattern, "key": key, "err": err})
	s.hooks.TruncateFailed(pattern, key, err)
}

func nonNegative(ttl time.Duration) time.Duration {
	if ttl < 0 {
		return 0
	}
	return ttl
}
