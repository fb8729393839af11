package veil

import (
	"errors"
	"fmt"

	"github.com/zoobzio/veil/keys"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrKeyNotFound indicates a referenced key version does not exist.
	ErrKeyNotFound = keys.ErrKeyNotFound

	// ErrInvalidFormat indicates a value that is not a well-formed envelope.
	ErrInvalidFormat = errors.New("invalid ciphertext format")

	// ErrCrypto indicates a cipher operation failed.
	ErrCrypto = errors.New("crypto failure")

	// ErrDigestFieldMissing indicates a digest has nowhere to be stored.
	ErrDigestFieldMissing = errors.New("digest field missing")

	// ErrMask indicates a value could not be masked.
	ErrMask = errors.New("mask failed")

	// ErrInvalidTag indicates a struct tag has an invalid format or value.
	ErrInvalidTag = errors.New("invalid tag")

	// ErrInvalidConfig indicates an unusable component setting.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnmarshal indicates the codec failed to unmarshal input data.
	ErrUnmarshal = errors.New("unmarshal failed")

	// ErrMarshal indicates the codec failed to marshal output data.
	ErrMarshal = errors.New("marshal failed")
)

// ConfigError reports an unusable setting or struct tag.
type ConfigError struct {
	Err     error  // ErrInvalidTag or ErrInvalidConfig
	Field   string // struct field carrying the tag, if any
	Setting string // offending value
}

func (e *ConfigError) Error() string {
	msg := e.Err.Error()
	if e.Setting != "" {
		msg += fmt.Sprintf(" %q", e.Setting)
	}
	if e.Field != "" {
		msg += " (field " + e.Field + ")"
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// TransformError reports a field that could not be digested, encrypted,
// decrypted or masked. It matches both its kind and the underlying cause.
type TransformError struct {
	Err       error
	Field     string
	Operation string
	Cause     error
}

func (e *TransformError) Error() string {
	msg := e.Operation + " field " + e.Field
	if e.Cause == nil {
		return msg
	}
	return msg + ": " + e.Cause.Error()
}

func (e *TransformError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// CodecError wraps a marshal or unmarshal failure from a Codec.
type CodecError struct {
	Err   error // ErrMarshal or ErrUnmarshal
	Cause error
}

func (e *CodecError) Error() string {
	if e.Cause == nil {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Cause.Error()
}

func (e *CodecError) Unwrap() error { return e.Err }

func newConfigError(kind error, setting, field string) error {
	return &ConfigError{Err: kind, Setting: setting, Field: field}
}

func newTransformError(kind error, operation, field string, cause error) error {
	return &TransformError{Err: kind, Operation: operation, Field: field, Cause: cause}
}

func newCodecError(kind error, cause error) error {
	return &CodecError{Err: kind, Cause: cause}
}
