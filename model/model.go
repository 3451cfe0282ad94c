// Package model holds the removal record types shared by the key builder,
// the encoding strategies and the probe command.
package model

import (
	"sort"

	"github.com/google/uuid"
)

// Identity identifies the request a record was produced for.
type Identity struct {
	RequestID uuid.UUID
	ProductID int
	VariantID uuid.UUID
}

// Reasons maps a reason code to the entity ids removed for it.
// Entity ids keep insertion order; equality ignores it.
type Reasons map[string][]string

// RemovalRecord is created once per request and never mutated.
type RemovalRecord struct {
	Identity
	Reasons Reasons
}

// Codes returns the reason codes in ascending order.
func (r Reasons) Codes() []string {
	out := make([]string, 0, len(r))
	for code := range r {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy.
func (r Reasons) Clone() Reasons {
	if r == nil {
		return nil
	}
	out := make(Reasons, len(r))
	for code, ids := range r {
		out[code] = append([]string(nil), ids...)
	}
	return out
}

// Equal reports whether r and o hold the same reasons with the same sets of
// entity ids. Order and duplicates inside an id list are ignored.
func (r Reasons) Equal(o Reasons) bool {
	if len(r) != len(o) {
		return false
	}
	for code, ids := range r {
		other, ok := o[code]
		if !ok || !sameSet(ids, other) {
			return false
		}
	}
	return true
}

// Merge appends ids under code, skipping ids already present.
func (r Reasons) Merge(code string, ids []string) {
	cur := r[code]
	seen := make(map[string]struct{}, len(cur)+len(ids))
	for _, id := range cur {
		seen[id] = struct{}{}
	}
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		cur = append(cur, id)
	}
	if cur == nil {
		cur = []string{}
	}
	r[code] = cur
}

func sameSet(a, b []string) bool {
	as := toSet(a)
	bs := toSet(b)
	if len(as) != len(bs) {
		return false
	}
	for id := range as {
		if _, ok := bs[id]; !ok {
			return false
		}
	}
	return true
}

func toSet(ids []string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}
