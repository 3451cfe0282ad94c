// Package strategy converts removal records into store primitives and back.
//
// Four encodings compete:
//
//	Delimited  one scalar "reason:id,id|reason:id"
//	Document   one scalar produced by a codec (json, msgpack, cbor, protobuf)
//	Hash       one field per reason, value "id,id"
//	Set        one member per reason, "reason:id,id"
//
// The characters | : , are reserved. Reason codes and entity ids containing
// them do not survive a round trip through Delimited, Hash or Set.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	rc "github.com/unkn0wn-root/removalcache"
	"github.com/unkn0wn-root/removalcache/keys"
	"github.com/unkn0wn-root/removalcache/model"
)

const (
	reasonSep = "|"
	entrySep  = ":"
	idSep     = ","
)

// ErrMalformed is wrapped by decode errors caused by a segment that does not
// have the reason:ids shape.
var ErrMalformed = errors.New("malformed segment")

// Strategy reads and writes records through a Store in one encoding.
type Strategy interface {
	Name() string
	Prefix() keys.Prefix
	Granularity() keys.Granularity
	Key(id model.Identity) string

	// Write stores rec under Key(rec.Identity). Only scalar encodings can
	// return an error; hash and set writes are contained by the store.
	Write(ctx context.Context, rec model.RemovalRecord, ttl time.Duration) error
	// Read returns the reasons stored for id. found is false on a miss, and
	// for hash and set encodings also when the store is unreachable.
	Read(ctx context.Context, id model.Identity) (reasons model.Reasons, found bool, err error)
}

// DecodeError reports a stored representation that could not be decoded.
type DecodeError struct {
	Strategy string
	Key      string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("strategy %s: decode %q: %v", e.Strategy, e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type options struct {
	granularity   keys.Granularity
	fireAndForget bool
	maxDecode     int
}

// Option configures a strategy. Options not meaningful to a strategy are ignored.
type Option func(*options)

// WithGranularity sets the key granularity of the Hash and Set strategies.
// Coarser keys hold several records; the identity remainder moves into the
// field or member. Scalar strategies always key on every identity field.
func WithGranularity(g keys.Granularity) Option {
	return func(o *options) { o.granularity = g }
}

// WithFireAndForget routes Hash and Set writes through the store's async
// variants. Write returns before the store has seen the data.
func WithFireAndForget() Option {
	return func(o *options) { o.fireAndForget = true }
}

// WithMaxDecode caps the size of documents the Document strategy decodes.
func WithMaxDecode(n int) Option {
	return func(o *options) { o.maxDecode = n }
}

func buildOptions(opts []Option) options {
	var o options
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// Standard returns one instance of every strategy, in a stable order.
func Standard(store rc.Store, opts ...Option) []Strategy {
	return []Strategy{
		NewDelimited(store),
		NewJSON(store, opts...),
		NewMsgpack(store, opts...),
		NewCBOR(store, opts...),
		NewProto(store, opts...),
		NewHash(store, opts...),
		NewSet(store, opts...),
	}
}

// Patterns returns the invalidation glob of every distinct prefix.
func Patterns(strategies ...Strategy) []string {
	seen := make(map[keys.Prefix]struct{}, len(strategies))
	out := make([]string, 0, len(strategies))
	for _, s := range strategies {
		p := s.Prefix()
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, keys.Pattern(p))
	}
	return out
}
