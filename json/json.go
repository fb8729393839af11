// Package json provides a JSON codec for veil processors.
package json

import (
	"bytes"
	"encoding/json"

	"github.com/zoobzio/veil"
)

// jsonCodec implements veil.Codec for JSON.
type jsonCodec struct {
	indent string
}

// Option configures the JSON codec.
type Option func(*jsonCodec)

// WithIndent pretty-prints output using indent per level.
func WithIndent(indent string) Option {
	return func(c *jsonCodec) { c.indent = indent }
}

// New returns a JSON codec. HTML characters are not escaped, so masked and
// enveloped values are written verbatim.
func New(opts ...Option) veil.Codec {
	c := &jsonCodec{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ContentType returns the MIME type for JSON.
func (c *jsonCodec) ContentType() string {
	return "application/json"
}

// Marshal encodes v as JSON without a trailing newline.
func (c *jsonCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if c.indent != "" {
		enc.SetIndent("", c.indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Unmarshal decodes JSON data into v.
func (c *jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
