package strategy

import (
	"context"
	"fmt"
	"time"

	rc "github.com/unkn0wn-root/removalcache"
	"github.com/unkn0wn-root/removalcache/codec"
	"github.com/unkn0wn-root/removalcache/keys"
	"github.com/unkn0wn-root/removalcache/model"
)

// Document stores a record as one scalar produced by a codec. The codec
// alone decides the wire shape; the key layout is the same for all of them.
type Document struct {
	store  rc.Store
	name   string
	prefix keys.Prefix
	codec  codec.Codec[model.Reasons]
}

var _ Strategy = (*Document)(nil)

// NewDocument builds a document strategy writing under prefix.
// WithMaxDecode wraps c in a codec.LimitCodec.
func NewDocument(store rc.Store, prefix keys.Prefix, c codec.Codec[model.Reasons], opts ...Option) *Document {
	o := buildOptions(opts)
	name := "document/" + codec.NameOf(c, string(prefix))
	if o.maxDecode > 0 {
		c = codec.LimitCodec[model.Reasons]{Inner: c, MaxDecode: o.maxDecode}
	}
	return &Document{store: store, name: name, prefix: prefix, codec: c}
}

func NewJSON(store rc.Store, opts ...Option) *Document {
	return NewDocument(store, keys.JSONDocument, codec.JSON[model.Reasons]{}, opts...)
}

func NewMsgpack(store rc.Store, opts ...Option) *Document {
	return NewDocument(store, keys.MsgpackDoc, codec.Msgpack[model.Reasons]{}, opts...)
}

// NewCBOR uses canonical CBOR so equal records produce equal bytes.
func NewCBOR(store rc.Store, opts ...Option) *Document {
	return NewDocument(store, keys.CBORDocument, codec.MustCBOR[model.Reasons](true), opts...)
}

func NewProto(store rc.Store, opts ...Option) *Document {
	return NewDocument(store, keys.ProtoDoc, ProtoReasons(), opts...)
}

func (d *Document) Name() string                  { return d.name }
func (d *Document) Prefix() keys.Prefix           { return d.prefix }
func (d *Document) Granularity() keys.Granularity { return keys.AllFields }

func (d *Document) Key(id model.Identity) string {
	return keys.Build(d.prefix, id, keys.AllFields)
}

func (d *Document) Write(ctx context.Context, rec model.RemovalRecord, ttl time.Duration) error {
	key := d.Key(rec.Identity)
	reasons := rec.Reasons
	if reasons == nil {
		reasons = model.Reasons{}
	}
	b, err := d.codec.Encode(reasons)
	if err != nil {
		return fmt.Errorf("strategy %s: encode %q: %w", d.name, key, err)
	}
	return d.store.SetScalar(ctx, key, string(b), ttl)
}

func (d *Document) Read(ctx context.Context, id model.Identity) (model.Reasons, bool, error) {
	key := d.Key(id)
	raw, ok, err := d.store.GetScalar(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	r, err := d.codec.Decode([]byte(raw))
	if err != nil {
		return nil, false, &DecodeError{Strategy: d.name, Key: key, Err: err}
	}
	if r == nil {
		r = model.Reasons{}
	}
	return r, true, nil
}
