package strategy

import (
	"context"
	"strings"
	"time"

	rc "github.com/unkn0wn-root/removalcache"
	"github.com/unkn0wn-root/removalcache/keys"
	"github.com/unkn0wn-root/removalcache/model"
)

// EncodeHash returns one field per reason whose value is the comma-joined ids.
func EncodeHash(r model.Reasons) map[string]string {
	out := make(map[string]string, len(r))
	for code, ids := range r {
		out[code] = strings.Join(ids, idSep)
	}
	return out
}

// DecodeHash is the inverse of EncodeHash.
func DecodeHash(fields map[string]string) model.Reasons {
	out := make(model.Reasons, len(fields))
	for code, v := range fields {
		out[code] = splitIDs(v)
	}
	return out
}

// Hash stores a record as a hash map. Several records may share one key
// when the granularity is coarser than AllFields.
//
// TTL applies to the whole key and is set by a second command after the
// field write. A key can outlive its fields' intended expiry.
type Hash struct {
	store rc.Store
	opts  options
}

var _ Strategy = (*Hash)(nil)

func NewHash(store rc.Store, opts ...Option) *Hash {
	return &Hash{store: store, opts: buildOptions(opts)}
}

func (h *Hash) Name() string                  { return "hash" }
func (h *Hash) Prefix() keys.Prefix           { return keys.Hash }
func (h *Hash) Granularity() keys.Granularity { return h.opts.granularity }

func (h *Hash) Key(id model.Identity) string {
	return keys.Build(keys.Hash, id, h.opts.granularity)
}

func (h *Hash) Write(ctx context.Context, rec model.RemovalRecord, ttl time.Duration) error {
	q := qualifier(rec.Identity, h.opts.granularity)
	fields := make(map[string]string, len(rec.Reasons))
	for code, v := range EncodeHash(rec.Reasons) {
		fields[q+code] = v
	}
	key := h.Key(rec.Identity)
	if h.opts.fireAndForget {
		h.store.SetHashAsync(ctx, key, fields, ttl)
	} else {
		h.store.SetHash(ctx, key, fields, ttl)
	}
	return nil
}

func (h *Hash) Read(ctx context.Context, id model.Identity) (model.Reasons, bool, error) {
	fields, ok := h.store.GetHash(ctx, h.Key(id))
	if !ok {
		return nil, false, nil
	}
	q := qualifier(id, h.opts.granularity)
	if q == "" {
		return DecodeHash(fields), true, nil
	}
	own := make(map[string]string)
	for f, v := range fields {
		if code, ok := strings.CutPrefix(f, q); ok {
			own[code] = v
		}
	}
	if len(own) == 0 {
		return nil, false, nil
	}
	return DecodeHash(own), true, nil
}

// ReadAll returns every record stored under the key id maps to, ordered by
// product and variant. Identity fields the key does not carry come from the
// fields themselves.
func (h *Hash) ReadAll(ctx context.Context, id model.Identity) ([]model.RemovalRecord, bool, error) {
	key := h.Key(id)
	fields, ok := h.store.GetHash(ctx, key)
	if !ok {
		return nil, false, nil
	}
	g := h.opts.granularity
	rs := records{}
	for f, v := range fields {
		rid, code, err := unqualify(f, base(id, g), g)
		if err != nil {
			return nil, false, &DecodeError{Strategy: h.Name(), Key: key, Err: err}
		}
		rs.add(rid, code, splitIDs(v))
	}
	return rs.sorted(), true, nil
}
