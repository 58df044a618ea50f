package codec

import (
	"bytes"
	"encoding/json"
)

// JSON encodes with encoding/json. Keys are URLs more often than not, so
// HTML escaping is off. A non-empty Indent pretty-prints.
type JSON[V any] struct {
	Indent string
}

func (c JSON[V]) Encode(v V) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if c.Indent != "" {
		enc.SetIndent("", c.Indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
