// Package codec (de)serializes key lists and failure reports.
package codec

import (
	"errors"
	"fmt"
	"strings"
)

// Codec encodes/decodes values V to []byte.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

var ErrUnknownFormat = errors.New("codec: unknown format")

// ForFormat returns the codec for a format name: "json", "msgpack" (or "mpk"), "cbor".
// CBOR uses deterministic encoding so reports are byte-stable.
func ForFormat[V any](name string) (Codec[V], error) {
	switch strings.ToLower(name) {
	case "json":
		return JSON[V]{Indent: "  "}, nil
	case "msgpack", "mpk":
		return Msgpack[V]{}, nil
	case "cbor":
		c, err := NewCBOR[V](true)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}
