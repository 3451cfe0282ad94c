package codec

import "encoding/json"

// JSON is a Codec backed by encoding/json. The zero value is ready to use.
// Map keys are written sorted, so equal values produce equal documents.
type JSON[V any] struct{}

func (JSON[V]) Name() string { return "json" }

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
