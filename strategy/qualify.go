package strategy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/removalcache/keys"
	"github.com/unkn0wn-root/removalcache/model"
)

// qualifier returns the identity segments a coarse key leaves out, in the
// form they take in front of a reason code:
//
//	RequestOnly        "<product>|<variant>|"
//	RequestAndProduct  "<variant>|"
//	AllFields          ""
func qualifier(id model.Identity, g keys.Granularity) string {
	switch g {
	case keys.RequestOnly:
		return strconv.Itoa(id.ProductID) + reasonSep + id.VariantID.String() + reasonSep
	case keys.RequestAndProduct:
		return id.VariantID.String() + reasonSep
	default:
		return ""
	}
}

// unqualify splits a qualified reason code. Identity fields carried by the
// key are taken from base.
func unqualify(s string, b model.Identity, g keys.Granularity) (model.Identity, string, error) {
	id := b
	switch g {
	case keys.RequestOnly:
		parts := strings.SplitN(s, reasonSep, 3)
		if len(parts) != 3 {
			return id, "", fmt.Errorf("%w: %q lacks product and variant", ErrMalformed, s)
		}
		product, err := strconv.Atoi(parts[0])
		if err != nil {
			return id, "", fmt.Errorf("%w: product in %q: %v", ErrMalformed, s, err)
		}
		variant, err := uuid.Parse(parts[1])
		if err != nil {
			return id, "", fmt.Errorf("%w: variant in %q: %v", ErrMalformed, s, err)
		}
		id.ProductID, id.VariantID = product, variant
		return id, parts[2], nil
	case keys.RequestAndProduct:
		v, code, ok := strings.Cut(s, reasonSep)
		if !ok {
			return id, "", fmt.Errorf("%w: %q lacks variant", ErrMalformed, s)
		}
		variant, err := uuid.Parse(v)
		if err != nil {
			return id, "", fmt.Errorf("%w: variant in %q: %v", ErrMalformed, s, err)
		}
		id.VariantID = variant
		return id, code, nil
	default:
		return id, s, nil
	}
}

// records groups reasons by identity.
type records map[model.Identity]model.Reasons

func (rs records) add(id model.Identity, code string, ids []string) {
	r, ok := rs[id]
	if !ok {
		r = model.Reasons{}
		rs[id] = r
	}
	r.Merge(code, ids)
}

// sorted returns the records ordered by product, then variant.
func (rs records) sorted() []model.RemovalRecord {
	out := make([]model.RemovalRecord, 0, len(rs))
	for id, r := range rs {
		out = append(out, model.RemovalRecord{Identity: id, Reasons: r})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].VariantID.String() < out[j].VariantID.String()
	})
	return out
}

// base clears the identity fields a key at granularity g does not carry.
func base(id model.Identity, g keys.Granularity) model.Identity {
	switch g {
	case keys.RequestOnly:
		return model.Identity{RequestID: id.RequestID}
	case keys.RequestAndProduct:
		return model.Identity{RequestID: id.RequestID, ProductID: id.ProductID}
	default:
		return id
	}
}
