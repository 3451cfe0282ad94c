// Package keys builds deterministic store keys from a record identity.
//
// Layout:
//
//	<prefix>:<request>                    - RequestOnly
//	<prefix>:<request>:<product>          - RequestAndProduct
//	<prefix>:<request>:<product>:<variant> - AllFields
//
// Every key starts with the strategy prefix, so two strategies never share a key
// as long as their prefixes differ and contain no Sep.
package keys

import (
	"strconv"
	"strings"

	"github.com/unkn0wn-root/removalcache/model"
)

// Sep separates the prefix and identity segments.
const Sep = ":"

// Prefix namespaces the keys written by one strategy.
type Prefix string

const (
	Delimited    Prefix = "o1_delimited"
	JSONDocument Prefix = "o2_json"
	MsgpackDoc   Prefix = "o2_msgpack"
	CBORDocument Prefix = "o2_cbor"
	ProtoDoc     Prefix = "o2_proto"
	Hash         Prefix = "o3_hash"
	Set          Prefix = "o4_set"
)

// Granularity selects how many identity segments go into the key.
type Granularity int

const (
	AllFields Granularity = iota
	RequestAndProduct
	RequestOnly
)

func (g Granularity) String() string {
	switch g {
	case RequestOnly:
		return "request"
	case RequestAndProduct:
		return "request_product"
	default:
		return "all_fields"
	}
}

// Build returns the key for id under prefix. The identity is not validated.
func Build(prefix Prefix, id model.Identity, g Granularity) string {
	var b strings.Builder
	b.Grow(len(prefix) + 1 + 36 + 1 + 20 + 1 + 36)
	b.WriteString(string(prefix))
	b.WriteString(Sep)
	b.WriteString(id.RequestID.String())
	if g == RequestOnly {
		return b.String()
	}
	b.WriteString(Sep)
	b.WriteString(strconv.Itoa(id.ProductID))
	if g == RequestAndProduct {
		return b.String()
	}
	b.WriteString(Sep)
	b.WriteString(id.VariantID.String())
	return b.String()
}

// Pattern returns the glob matching every key under prefix.
func Pattern(prefix Prefix) string {
	return string(prefix) + Sep + "*"
}
