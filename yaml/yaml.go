// Package yaml provides a YAML codec for veil processors.
package yaml

import (
	"bytes"

	"github.com/zoobzio/veil"
	"gopkg.in/yaml.v3"
)

// DefaultIndent is the indentation width used when none is configured.
const DefaultIndent = 2

// yamlCodec implements veil.Codec for YAML.
type yamlCodec struct {
	indent int
}

// Option configures the YAML codec.
type Option func(*yamlCodec)

// WithIndent sets the indentation width.
func WithIndent(n int) Option {
	return func(c *yamlCodec) {
		if n > 0 {
			c.indent = n
		}
	}
}

// New returns a YAML codec.
func New(opts ...Option) veil.Codec {
	c := &yamlCodec{indent: DefaultIndent}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ContentType returns the MIME type for YAML.
func (c *yamlCodec) ContentType() string {
	return "application/yaml"
}

// Marshal encodes v as YAML.
func (c *yamlCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(c.indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes YAML data into v.
func (c *yamlCodec) Unmarshal(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}
