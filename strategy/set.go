package strategy

import (
	"context"
	"strings"
	"time"

	rc "github.com/unkn0wn-root/removalcache"
	"github.com/unkn0wn-root/removalcache/keys"
	"github.com/unkn0wn-root/removalcache/model"
)

// EncodeSet returns one "reason:id,id" member per reason, sorted by reason.
func EncodeSet(r model.Reasons) []string {
	out := make([]string, 0, len(r))
	for _, code := range r.Codes() {
		out = append(out, code+entrySep+strings.Join(r[code], idSep))
	}
	return out
}

// DecodeSet parses members in any order. Members repeating a reason merge
// their ids.
func DecodeSet(members []string) (model.Reasons, error) {
	out := make(model.Reasons, len(members))
	for _, m := range members {
		code, ids, err := splitEntry(m)
		if err != nil {
			return nil, err
		}
		out.Merge(code, ids)
	}
	return out, nil
}

// Set stores a record as an unordered set of members. Rewriting a record
// adds members; it never removes the ones already there.
type Set struct {
	store rc.Store
	opts  options
}

var _ Strategy = (*Set)(nil)

func NewSet(store rc.Store, opts ...Option) *Set {
	return &Set{store: store, opts: buildOptions(opts)}
}

func (s *Set) Name() string                  { return "set" }
func (s *Set) Prefix() keys.Prefix           { return keys.Set }
func (s *Set) Granularity() keys.Granularity { return s.opts.granularity }

func (s *Set) Key(id model.Identity) string {
	return keys.Build(keys.Set, id, s.opts.granularity)
}

func (s *Set) Write(ctx context.Context, rec model.RemovalRecord, ttl time.Duration) error {
	q := qualifier(rec.Identity, s.opts.granularity)
	members := EncodeSet(rec.Reasons)
	if q != "" {
		for i, m := range members {
			members[i] = q + m
		}
	}
	key := s.Key(rec.Identity)
	if s.opts.fireAndForget {
		s.store.AddSetMembersAsync(ctx, key, members, ttl)
	} else {
		s.store.AddSetMembers(ctx, key, members, ttl)
	}
	return nil
}

func (s *Set) Read(ctx context.Context, id model.Identity) (model.Reasons, bool, error) {
	key := s.Key(id)
	members, ok := s.store.GetSetMembers(ctx, key)
	if !ok {
		return nil, false, nil
	}
	if q := qualifier(id, s.opts.granularity); q != "" {
		own := make([]string, 0, len(members))
		for _, m := range members {
			if rest, ok := strings.CutPrefix(m, q); ok {
				own = append(own, rest)
			}
		}
		if len(own) == 0 {
			return nil, false, nil
		}
		members = own
	}
	r, err := DecodeSet(members)
	if err != nil {
		return nil, false, &DecodeError{Strategy: s.Name(), Key: key, Err: err}
	}
	return r, true, nil
}

// ReadAll returns every record stored under the key id maps to, ordered by
// product and variant.
func (s *Set) ReadAll(ctx context.Context, id model.Identity) ([]model.RemovalRecord, bool, error) {
	key := s.Key(id)
	members, ok := s.store.GetSetMembers(ctx, key)
	if !ok {
		return nil, false, nil
	}
	g := s.opts.granularity
	rs := records{}
	for _, m := range members {
		rid, code, ids, err := parseMember(m, base(id, g), g)
		if err != nil {
			return nil, false, &DecodeError{Strategy: s.Name(), Key: key, Err: err}
		}
		rs.add(rid, code, ids)
	}
	return rs.sorted(), true, nil
}

func parseMember(m string, b model.Identity, g keys.Granularity) (model.Identity, string, []string, error) {
	qcode, ids, err := splitEntry(m)
	if err != nil {
		return b, "", nil, err
	}
	id, code, err := unqualify(qcode, b, g)
	if err != nil {
		return b, "", nil, err
	}
	return id, code, ids, nil
}
