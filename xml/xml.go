// Package xml provides an XML codec for veil processors.
package xml

import (
	"encoding/xml"

	"github.com/zoobzio/veil"
)

// xmlCodec implements veil.Codec for XML.
type xmlCodec struct {
	header bool
}

// Option configures the XML codec.
type Option func(*xmlCodec)

// WithHeader prefixes output with the standard XML declaration.
func WithHeader() Option {
	return func(c *xmlCodec) { c.header = true }
}

// New returns an XML codec.
func New(opts ...Option) veil.Codec {
	c := &xmlCodec{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ContentType returns the MIME type for XML.
func (c *xmlCodec) ContentType() string {
	return "application/xml"
}

// Marshal encodes v as XML. A nil value encodes to no output.
func (c *xmlCodec) Marshal(v any) ([]byte, error) {
	data, err := xml.Marshal(v)
	if err != nil {
		return nil, err
	}
	if c.header && len(data) > 0 {
		data = append([]byte(xml.Header), data...)
	}
	return data, nil
}

// Unmarshal decodes XML data into v.
func (c *xmlCodec) Unmarshal(data []byte, v any) error {
	return xml.Unmarshal(data, v)
}
