// Package codec turns values into the bytes stored under a single scalar key.
// The structured-document strategy is agnostic to which codec backs it.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Named is implemented by codecs that can label the documents they produce.
type Named interface {
	Name() string
}

// NameOf returns c's name, or fallback when c is not Named.
func NameOf(c any, fallback string) string {
	if n, ok := c.(Named); ok {
		return n.Name()
	}
	return fallback
}
