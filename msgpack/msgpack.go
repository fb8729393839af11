// Package msgpack provides a MessagePack codec for veil processors.
package msgpack

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zoobzio/veil"
)

// msgpackCodec implements veil.Codec for MessagePack.
type msgpackCodec struct {
	structTag string
}

// Option configures the MessagePack codec.
type Option func(*msgpackCodec)

// WithStructTag names the struct tag read for field names. Defaults to
// "json" so one set of tags serves both formats.
func WithStructTag(tag string) Option {
	return func(c *msgpackCodec) { c.structTag = tag }
}

// New returns a MessagePack codec.
func New(opts ...Option) veil.Codec {
	c := &msgpackCodec{structTag: "json"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ContentType returns the MIME type for MessagePack.
func (c *msgpackCodec) ContentType() string {
	return "application/msgpack"
}

// Marshal encodes v as MessagePack.
func (c *msgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if c.structTag != "" {
		enc.SetCustomStructTag(c.structTag)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes MessagePack data into v.
func (c *msgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	if c.structTag != "" {
		dec.SetCustomStructTag(c.structTag)
	}
	return dec.Decode(v)
}
