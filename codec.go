package veil

// Codec marshals the sealed form of a value for a Processor.
// Implementations live in the json, xml, yaml, msgpack and bson packages.
type Codec interface {
	// ContentType is the MIME type of the encoded form.
	ContentType() string

	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}
