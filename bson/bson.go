// Package bson provides a BSON codec for veil processors.
package bson

import (
	"errors"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"

	"github.com/zoobzio/veil"
)

// ErrNotDocument is returned when a nil value is marshaled. BSON has no
// top-level null.
var ErrNotDocument = errors.New("bson: value is not a document")

type bsonCodec struct {
	registry *bsoncodec.Registry
}

// Option configures the codec.
type Option func(*bsonCodec) error

// WithJSONTags reads field names from json tags when a field has no bson
// tag, so one struct can serve both codecs.
func WithJSONTags() Option {
	return func(c *bsonCodec) error {
		sc, err := bsoncodec.NewStructCodec(bsoncodec.JSONFallbackStructTagParser)
		if err != nil {
			return err
		}
		reg := bson.NewRegistry()
		reg.RegisterKindEncoder(reflect.Struct, sc)
		reg.RegisterKindDecoder(reflect.Struct, sc)
		c.registry = reg
		return nil
	}
}

// New returns a BSON codec. It panics if an option fails, which only
// happens on an invalid registry setup.
func New(opts ...Option) veil.Codec {
	c := &bsonCodec{registry: bson.DefaultRegistry}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			panic("bson: " + err.Error())
		}
	}
	return c
}

// ContentType returns the MIME type for BSON.
func (c *bsonCodec) ContentType() string {
	return "application/bson"
}

// Marshal encodes v as a BSON document.
func (c *bsonCodec) Marshal(v any) ([]byte, error) {
	if v == nil {
		return nil, ErrNotDocument
	}
	return bson.MarshalWithRegistry(c.registry, v)
}

// Unmarshal decodes a BSON document into v.
func (c *bsonCodec) Unmarshal(data []byte, v any) error {
	return bson.UnmarshalWithRegistry(c.registry, data, v)
}
