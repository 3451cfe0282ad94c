package removalcache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	c "github.com/unkn0wn-root/removalcache/codec"
	"github.com/unkn0wn-root/removalcache/internal/faultprov"
	pr "github.com/unkn0wn-root/removalcache/provider"
	"github.com/unkn0wn-root/removalcache/provider/memory"
	"github.com/unkn0wn-root/removalcache/provider/ristretto"
)

type hookEvent struct {
	kind    string
	op, key string
	pattern string
}

type recHooks struct {
	mu     sync.Mutex
	events []hookEvent
}

func (h *recHooks) add(e hookEvent) {
	h.mu.Lock()
	h.events = append(h.events, e)
	h.mu.Unlock()
}

func (h *recHooks) OpFailed(op, key string, _ error) { h.add(hookEvent{kind: "op", op: op, key: key}) }
func (h *recHooks) AsyncDropped(op, key string)      { h.add(hookEvent{kind: "drop", op: op, key: key}) }
func (h *recHooks) ExpireFailed(key string, _ time.Duration, _ error) {
	h.add(hookEvent{kind: "expire", key: key})
}
func (h *recHooks) TruncateFailed(pattern, key string, _ error) {
	h.add(hookEvent{kind: "truncate", pattern: pattern, key: key})
}

func (h *recHooks) count(kind string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

type summary struct {
	Strategies int      `json:"strategies"`
	Failed     []string `json:"failed"`
}

func newTestStore(t *testing.T, p pr.Provider, optsOpt func(*Options)) (*store, *recHooks) {
	t.Helper()
	hooks := &recHooks{}
	opts := Options{Provider: p, Hooks: hooks}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	s, err := newStore(opts)
	if err != nil {
		t.Fatalf("newStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, hooks
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("expected error without provider")
	}
	if _, err := New(Options{Provider: memory.New(), ReadPreference: pr.ReadPreference(9)}); err == nil {
		t.Fatalf("expected error for unknown read preference")
	}
	s, err := New(Options{Provider: memory.New()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close(context.Background())
	if s.ReadPreference() != pr.PreferPrimary {
		t.Fatalf("default read preference = %v", s.ReadPreference())
	}
}

func TestScalar_RoundTripAndRemove(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, memory.New(), nil)

	if _, ok, err := s.GetScalar(ctx, "k"); err != nil || ok {
		t.Fatalf("miss expected, ok=%v err=%v", ok, err)
	}
	if err := s.SetScalar(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("SetScalar: %v", err)
	}
	v, ok, err := s.GetScalar(ctx, "k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("GetScalar = %q ok=%v err=%v", v, ok, err)
	}
	s.RemoveKey(ctx, "k")
	if _, ok, _ := s.GetScalar(ctx, "k"); ok {
		t.Fatalf("key survived RemoveKey")
	}
}

func TestScalar_FailureCarriesKey(t *testing.T) {
	ctx := context.Background()
	fp := faultprov.Wrap(memory.New()).Down(errors.New("dial tcp: connection refused"))
	s, hooks := newTestStore(t, fp, nil)

	_, ok, err := s.GetScalar(ctx, "o1_delimited:abc")
	if ok || err == nil {
		t.Fatalf("GetScalar should fail, ok=%v err=%v", ok, err)
	}
	if !errors.Is(err, ErrScalar) {
		t.Fatalf("error does not match ErrScalar: %v", err)
	}
	var ke *KeyError
	if !errors.As(err, &ke) || ke.Key != "o1_delimited:abc" || ke.Op != OpGetScalar {
		t.Fatalf("KeyError = %+v", ke)
	}
	if strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("cause leaked into error: %v", err)
	}

	err = s.SetScalar(ctx, "o2_json:abc", "{}", 0)
	if !errors.Is(err, ErrScalar) || !strings.Contains(err.Error(), "o2_json:abc") {
		t.Fatalf("SetScalar error = %v", err)
	}
	if hooks.count("op") != 2 {
		t.Fatalf("hooks saw %d failures, want 2", hooks.count("op"))
	}
}

func TestContainment_UnreachableStore(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	fp := faultprov.Wrap(mem)
	s, hooks := newTestStore(t, fp, nil)

	s.SetHash(ctx, "hash:R1", map[string]string{"FRAUD": "E3"}, 0)
	s.AddSetMembers(ctx, "set:R1", []string{"FRAUD:E3"}, 0)
	st := NewStructured[summary](s, c.JSON[summary]{})
	st.Set(ctx, "summary", summary{Strategies: 7}, 0)

	fp.Down(nil)

	if fields, ok := s.GetHash(ctx, "hash:R1"); ok || fields != nil {
		t.Fatalf("GetHash = %v ok=%v", fields, ok)
	}
	if members, ok := s.GetSetMembers(ctx, "set:R1"); ok || members != nil {
		t.Fatalf("GetSetMembers = %v ok=%v", members, ok)
	}
	if v, ok := st.Get(ctx, "summary"); ok || v.Strategies != 0 {
		t.Fatalf("Structured.Get = %+v ok=%v", v, ok)
	}
	s.SetHash(ctx, "hash:R2", map[string]string{"a": "1"}, time.Minute)
	s.AddSetMembers(ctx, "set:R2", []string{"a"}, time.Minute)
	s.RemoveKey(ctx, "hash:R1")
	st.Set(ctx, "summary", summary{}, 0)

	// containment still reports every failure
	if got := hooks.count("op"); got != 7 {
		t.Fatalf("hooks saw %d failures, want 7", got)
	}

	fp.Heal()
	if _, ok := s.GetHash(ctx, "hash:R1"); !ok {
		t.Fatalf("RemoveKey during outage should not have removed anything")
	}
	if v, ok := st.Get(ctx, "summary"); !ok || v.Strategies != 7 {
		t.Fatalf("Structured.Get after heal = %+v ok=%v", v, ok)
	}
}

func TestHashAndSet_EmptyWritesAreNoops(t *testing.T) {
	ctx := context.Background()
	fp := faultprov.Wrap(memory.New())
	s, _ := newTestStore(t, fp, nil)

	s.SetHash(ctx, "h", nil, time.Minute)
	s.AddSetMembers(ctx, "m", []string{}, time.Minute)
	s.SetHashAsync(ctx, "h", map[string]string{}, 0)
	s.AddSetMembersAsync(ctx, "m", nil, 0)
	_ = s.Close(ctx)

	for _, op := range []faultprov.Op{faultprov.OpHSet, faultprov.OpSAdd, faultprov.OpExpire} {
		if n := fp.Calls(op); n != 0 {
			t.Fatalf("%s called %d times", op, n)
		}
	}
}

func TestExpire_TwoStepNotAtomic(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	fp := faultprov.Wrap(mem).Fail(faultprov.OpExpire, nil)
	s, hooks := newTestStore(t, fp, nil)

	s.SetHash(ctx, "hash:R1", map[string]string{"FRAUD": "E3"}, time.Minute)
	s.AddSetMembers(ctx, "set:R1", []string{"FRAUD:E3"}, time.Minute)

	for _, k := range []string{"hash:R1", "set:R1"} {
		ttl, ok := mem.TTL(k)
		if !ok || ttl != 0 {
			t.Fatalf("%s: ttl=%v ok=%v, want persisted without ttl", k, ttl, ok)
		}
	}
	if hooks.count("expire") != 2 {
		t.Fatalf("ExpireFailed seen %d times", hooks.count("expire"))
	}

	// no ttl means no expire call at all
	s.SetHash(ctx, "hash:R3", map[string]string{"a": "1"}, 0)
	if n := fp.Calls(faultprov.OpExpire); n != 2 {
		t.Fatalf("expire calls = %d", n)
	}
}

func TestReadPreference_ReachesEveryRead(t *testing.T) {
	ctx := context.Background()
	fp := faultprov.Wrap(memory.New())
	s, _ := newTestStore(t, fp, func(o *Options) { o.ReadPreference = pr.PreferReplica })

	_, _, _ = s.GetScalar(ctx, "a")
	_, _ = s.GetHash(ctx, "b")
	_, _ = s.GetSetMembers(ctx, "c")
	NewStructured[summary](s, c.JSON[summary]{}).Get(ctx, "d")

	reads := fp.Reads()
	if len(reads) != 4 {
		t.Fatalf("reads = %v", reads)
	}
	for _, p := range reads {
		if p != pr.PreferReplica {
			t.Fatalf("read carried %v", p)
		}
	}
}

func TestAsync_LandsByClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mem := memory.New()
	s, hooks := newTestStore(t, mem, func(o *Options) {
		o.AsyncWorkers = 2
		o.AsyncQueue = 64
	})

	fields := map[string]string{"FRAUD": "E3"}
	s.SetHashAsync(ctx, "hash:R1", fields, time.Minute)
	s.AddSetMembersAsync(ctx, "set:R1", []string{"FRAUD:E3"}, time.Minute)
	fields["FRAUD"] = "mutated"
	cancel() // queued writes outlive the caller's context

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	got, err := mem.HGetAll(context.Background(), "hash:R1", pr.PreferPrimary)
	if err != nil || got["FRAUD"] != "E3" {
		t.Fatalf("hash = %v err=%v", got, err)
	}
	members, err := mem.SMembers(context.Background(), "set:R1", pr.PreferPrimary)
	if err != nil || len(members) != 1 {
		t.Fatalf("set = %v err=%v", members, err)
	}
	if ttl, _ := mem.TTL("set:R1"); ttl <= 0 {
		t.Fatalf("async set write lost its ttl")
	}

	// after Close the queue is gone; writes are dropped and reported
	s.SetHashAsync(context.Background(), "hash:R2", fields, 0)
	if hooks.count("drop") != 1 {
		t.Fatalf("AsyncDropped seen %d times", hooks.count("drop"))
	}
}

func TestTruncate_OnlyMatchingKeys(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	s, _ := newTestStore(t, mem, nil)

	_ = s.SetScalar(ctx, "o1_delimited:a", "x", 0)
	_ = s.SetScalar(ctx, "o1_delimited:b", "x", 0)
	s.SetHash(ctx, "o3_hash:a", map[string]string{"f": "v"}, 0)
	s.AddSetMembers(ctx, "o4_set:a", []string{"m"}, 0)
	_ = s.SetScalar(ctx, "other:a", "x", 0)

	n, err := s.TruncateByPattern(ctx, "o1_delimited:*", "o3_hash:*", "none:*")
	if err != nil {
		t.Fatalf("TruncateByPattern: %v", err)
	}
	if n != 3 {
		t.Fatalf("deleted = %d, want 3", n)
	}
	if mem.Len() != 2 {
		t.Fatalf("remaining keys = %d, want 2", mem.Len())
	}
	if _, ok := s.GetSetMembers(ctx, "o4_set:a"); !ok {
		t.Fatalf("non-matching key removed")
	}
}

func TestTruncate_EnumerationUnsupported(t *testing.T) {
	rp, err := ristretto.New(ristretto.Config{NumCounters: 1000, MaxCost: 100, BufferItems: 64})
	if err != nil {
		t.Fatalf("ristretto.New: %v", err)
	}
	s, _ := newTestStore(t, rp, nil)
	n, err := s.TruncateByPattern(context.Background(), "o1_delimited:*")
	if !errors.Is(err, pr.ErrEnumerationUnsupported) || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}

func TestTruncate_PartialFailure(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	fp := faultprov.Wrap(mem)
	s, hooks := newTestStore(t, fp, nil)
	_ = s.SetScalar(ctx, "o1_delimited:a", "x", 0)
	_ = s.SetScalar(ctx, "o1_delimited:b", "x", 0)

	fp.Fail(faultprov.OpDel, nil)
	n, err := s.TruncateByPattern(ctx, "o1_delimited:*")
	if n != 0 || err == nil {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if !errors.Is(err, faultprov.ErrInjected) {
		t.Fatalf("cause lost: %v", err)
	}
	var te *TruncateError
	if !errors.As(err, &te) || te.Pattern != "o1_delimited:*" || te.Key == "" {
		t.Fatalf("TruncateError = %+v", te)
	}
	// every key attempted once, no retry
	if got := fp.Calls(faultprov.OpDel); got != 2 {
		t.Fatalf("del calls = %d", got)
	}
	if hooks.count("truncate") != 2 {
		t.Fatalf("TruncateFailed seen %d times", hooks.count("truncate"))
	}

	fp.Heal()
	fp.Fail(faultprov.OpKeys, nil)
	_, err = s.TruncateByPattern(ctx, "o1_delimited:*", "o2_json:*")
	if !errors.As(err, &te) || te.Key != "" {
		t.Fatalf("enumeration failure = %v", err)
	}
	if got := fp.Calls(faultprov.OpKeys); got != 3 {
		t.Fatalf("keys calls = %d, every pattern should be attempted", got)
	}
}

func TestStructured_DecodeFailureIsContained(t *testing.T) {
	ctx := context.Background()
	s, hooks := newTestStore(t, memory.New(), nil)
	_ = s.SetScalar(ctx, "summary", "{not json", 0)

	st := NewStructured[summary](s, c.LimitCodec[summary]{Inner: c.JSON[summary]{}, MaxDecode: 1 << 10})
	if _, ok := st.Get(ctx, "summary"); ok {
		t.Fatalf("corrupt document should read as absent")
	}
	if hooks.count("op") != 1 {
		t.Fatalf("decode failure not reported")
	}

	st.Set(ctx, "summary", summary{Strategies: 2, Failed: []string{"set"}}, time.Minute)
	v, ok := st.Get(ctx, "summary")
	if !ok || v.Strategies != 2 || len(v.Failed) != 1 {
		t.Fatalf("Get = %+v ok=%v", v, ok)
	}
}

func TestMultiHooks(t *testing.T) {
	a, b := &recHooks{}, &recHooks{}
	m := MultiHooks{a, b}
	m.OpFailed(OpGetHash, "k", nil)
	m.ExpireFailed("k", time.Second, nil)
	m.AsyncDropped(OpSetHash, "k")
	m.TruncateFailed("p", "k", nil)
	for _, h := range []*recHooks{a, b} {
		if len(h.events) != 4 {
			t.Fatalf("events = %v", h.events)
		}
	}
}
