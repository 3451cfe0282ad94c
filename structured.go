package removalcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/removalcache/codec"
)

// Structured stores values of type T as single scalars through a Codec.
// Both directions are contained: Get returns (zero, false) on a miss, a store
// failure or a payload that does not decode; Set drops the write on failure.
type Structured[T any] struct {
	store Store
	codec c.Codec[T]
}

func NewStructured[T any](s Store, codec c.Codec[T]) *Structured[T] {
	return &Structured[T]{store: s, codec: codec}
}

func (st *Structured[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	raw, ok, err := st.store.GetScalar(ctx, key)
	if err != nil || !ok || raw == "" {
		return zero, false
	}
	v, err := st.codec.Decode([]byte(raw))
	if err != nil {
		st.report(OpGetStructured, key, err)
		return zero, false
	}
	return v, true
}

func (st *Structured[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) {
	b, err := st.codec.Encode(value)
	if err != nil {
		st.report(OpSetStructured, key, err)
		return
	}
	// a store failure was already reported by SetScalar
	_ = st.store.SetScalar(ctx, key, string(b), ttl)
}

func (st *Structured[T]) report(op, key string, err error) {
	if r, ok := st.store.(failureReporter); ok {
		r.failed(op, key, err)
	}
}
