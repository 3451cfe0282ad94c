package strategy

import (
	"context"
	"fmt"
	"strings"
	"time"

	rc "github.com/unkn0wn-root/removalcache"
	"github.com/unkn0wn-root/removalcache/keys"
	"github.com/unkn0wn-root/removalcache/model"
)

// EncodeDelimited renders r as "reason:id,id|reason:id" with reasons sorted.
func EncodeDelimited(r model.Reasons) string {
	var b strings.Builder
	for i, code := range r.Codes() {
		if i > 0 {
			b.WriteString(reasonSep)
		}
		b.WriteString(code)
		b.WriteString(entrySep)
		b.WriteString(strings.Join(r[code], idSep))
	}
	return b.String()
}

// DecodeDelimited parses the output of EncodeDelimited. The empty string
// decodes to an empty mapping.
func DecodeDelimited(s string) (model.Reasons, error) {
	out := model.Reasons{}
	if s == "" {
		return out, nil
	}
	for _, seg := range strings.Split(s, reasonSep) {
		code, ids, err := splitEntry(seg)
		if err != nil {
			return nil, err
		}
		out.Merge(code, ids)
	}
	return out, nil
}

// splitEntry splits "reason:id,id" on the first entry separator.
func splitEntry(seg string) (string, []string, error) {
	code, rest, ok := strings.Cut(seg, entrySep)
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrMalformed, seg)
	}
	return code, splitIDs(rest), nil
}

func splitIDs(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, idSep)
}

// Delimited stores a record as one delimited scalar.
type Delimited struct {
	store rc.Store
}

var _ Strategy = (*Delimited)(nil)

func NewDelimited(store rc.Store) *Delimited {
	return &Delimited{store: store}
}

func (d *Delimited) Name() string                  { return "delimited" }
func (d *Delimited) Prefix() keys.Prefix           { return keys.Delimited }
func (d *Delimited) Granularity() keys.Granularity { return keys.AllFields }

func (d *Delimited) Key(id model.Identity) string {
	return keys.Build(keys.Delimited, id, keys.AllFields)
}

func (d *Delimited) Write(ctx context.Context, rec model.RemovalRecord, ttl time.Duration) error {
	return d.store.SetScalar(ctx, d.Key(rec.Identity), EncodeDelimited(rec.Reasons), ttl)
}

func (d *Delimited) Read(ctx context.Context, id model.Identity) (model.Reasons, bool, error) {
	key := d.Key(id)
	raw, ok, err := d.store.GetScalar(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	r, err := DecodeDelimited(raw)
	if err != nil {
		return nil, false, &DecodeError{Strategy: d.Name(), Key: key, Err: err}
	}
	return r, true, nil
}
