package veil

import "context"

// Override interfaces allow types to bypass reflection-based processing.
// When a value implements one of these interfaces, the Pipeline calls the
// method instead of walking its fields by tag. Nested values are not
// visited; the implementation is responsible for them.

// Toolkit exposes the pipeline's engines to override implementations.
type Toolkit struct {
	Crypter  *Crypter
	Digester *Digester
	Maskers  map[MaskType]Masker
}

// Mask applies the registered masker for mt, or a custom pattern.
func (t Toolkit) Mask(mt MaskType, pattern, value string) (string, error) {
	if mt == MaskCustom {
		return CustomMasker(pattern).Mask(value), nil
	}
	if m, ok := t.Maskers[mt]; ok {
		return m.Mask(value), nil
	}
	return MaskValue(mt, pattern, value)
}

// Sealer bypasses reflection on the write path.
type Sealer interface {
	// Seal digests and encrypts the receiver's fields in place.
	Seal(ctx context.Context, t Toolkit) error
}

// Unsealer bypasses reflection on the read path.
type Unsealer interface {
	// Unseal decrypts and masks the receiver's fields in place.
	// Failures should leave fields unchanged rather than abort.
	Unseal(ctx context.Context, t Toolkit)
}
