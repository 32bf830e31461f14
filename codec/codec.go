// Package codec turns cached entities into bytes and back.
//
// Every read through a codec yields a value the caller owns: the shared
// cache only ever holds encoded bytes, so mutating a returned entity can
// never change what another caller observes.
package codec

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes/decodes values E to []byte for storage.
type Codec[E any] interface {
	Encode(E) ([]byte, error)
	Decode([]byte) (E, error)
}

// Msgpack is the default codec. The zero value is ready to use.
// Use `msgpack:"name"` tags for explicit field control.
type Msgpack[E any] struct{}

func (Msgpack[E]) Encode(v E) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (Msgpack[E]) Decode(b []byte) (E, error) {
	var v E
	err := msgpack.Unmarshal(b, &v)
	return v, err
}

// CBOR encodes with fxamacker/cbor using its default options.
type CBOR[E any] struct{}

func (CBOR[E]) Encode(v E) ([]byte, error) {
	return cbor.Marshal(v)
}

func (CBOR[E]) Decode(b []byte) (E, error) {
	var v E
	err := cbor.Unmarshal(b, &v)
	return v, err
}

// JSON is mostly useful for debugging cache contents.
type JSON[E any] struct{}

func (JSON[E]) Encode(v E) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON[E]) Decode(b []byte) (E, error) {
	var v E
	err := json.Unmarshal(b, &v)
	return v, err
}

// EncodeList encodes each item with c and packs the results into one
// msgpack array, so a list can be stored as a single cache entry.
func EncodeList[E any](c Codec[E], items []E) ([]byte, error) {
	parts := make([][]byte, len(items))
	for i, item := range items {
		b, err := c.Encode(item)
		if err != nil {
			return nil, err
		}
		parts[i] = b
	}
	return msgpack.Marshal(parts)
}

// DecodeList reverses EncodeList. Each call returns freshly decoded items.
func DecodeList[E any](c Codec[E], raw []byte) ([]E, error) {
	var parts [][]byte
	if err := msgpack.Unmarshal(raw, &parts); err != nil {
		return nil, err
	}
	out := make([]E, 0, len(parts))
	for _, p := range parts {
		item, err := c.Decode(p)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// Clone returns an owned copy of v by round-tripping it through c.
func Clone[E any](c Codec[E], v E) (E, error) {
	b, err := c.Encode(v)
	if err != nil {
		var zero E
		return zero, err
	}
	return c.Decode(b)
}
