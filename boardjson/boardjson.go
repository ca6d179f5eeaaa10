// Package boardjson provides the JSON encoding used by the board wire
// protocol: stream envelopes, patch batches, REST request and response
// bodies.
//
// It is a thin layer over github.com/goccy/go-json so that everything that
// marshals or unmarshals in this SDK goes through one codec, and so that the
// codec can be swapped via the internal/codec interfaces if a consumer needs
// a different implementation.
package boardjson

import (
	"io"

	"github.com/goccy/go-json"

	"github.com/taskboard/taskboard.go/internal/codec"
)

// Codec implements codec.Marshaler and codec.Unmarshaler for the board's
// JSON protocol.
type Codec struct{}

var (
	_ codec.Marshaler   = (*Codec)(nil)
	_ codec.Unmarshaler = (*Codec)(nil)
)

func New() *Codec {
	return &Codec{}
}

func (c *Codec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *Codec) Unmarshal(data []byte, dst any) error {
	return json.Unmarshal(data, dst)
}

func (c *Codec) NewEncoder(w io.Writer) codec.Encoder {
	return json.NewEncoder(w)
}

func (c *Codec) NewDecoder(r io.Reader) codec.Decoder {
	return json.NewDecoder(r)
}

// Marshal encodes v using the same encoder the SDK uses internally.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes data using the same decoder the SDK uses internally.
func Unmarshal(data []byte, dst any) error {
	return json.Unmarshal(data, dst)
}
