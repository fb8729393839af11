package veil

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"hash"

	"github.com/emmansun/gmsm/sm3"
	"golang.org/x/crypto/blake2b"
)

// Digester computes deterministic salted digests usable as a blind index:
// equal plaintexts under the same salt and algorithm give equal digests.
// Use for lookup, NOT for passwords.
type Digester struct {
	algo     DigestAlgo
	encoding DigestEncoding
	salt     []byte
}

// DigesterOption configures a Digester.
type DigesterOption func(*Digester)

// WithDigestAlgorithm sets the digest function. Defaults to SM3.
func WithDigestAlgorithm(algo DigestAlgo) DigesterOption {
	return func(d *Digester) { d.algo = algo }
}

// WithDigestEncoding sets the text encoding. Defaults to hex.
func WithDigestEncoding(enc DigestEncoding) DigesterOption {
	return func(d *Digester) { d.encoding = enc }
}

// NewDigester returns a Digester using salt.
func NewDigester(salt string, opts ...DigesterOption) (*Digester, error) {
	d := &Digester{
		algo:     DigestSM3,
		encoding: EncodingHex,
		salt:     []byte(salt),
	}
	for _, opt := range opts {
		opt(d)
	}
	if !IsValidDigestAlgo(d.algo) {
		return nil, newConfigError(ErrInvalidConfig, string(d.algo), "digest.algorithm")
	}
	if d.encoding != EncodingHex && d.encoding != EncodingBase64 {
		return nil, newConfigError(ErrInvalidConfig, string(d.encoding), "digest.encoding")
	}
	return d, nil
}

// Algorithm returns the digest function in use.
func (d *Digester) Algorithm() DigestAlgo {
	return d.algo
}

// Digest returns the digest of plaintext. Empty plaintext yields "".
func (d *Digester) Digest(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	h, err := d.newHash()
	if err != nil {
		return "", err
	}
	h.Write([]byte(plaintext))
	if d.algo != DigestHMACSHA256 {
		h.Write(d.salt)
	}
	sum := h.Sum(nil)

	if d.encoding == EncodingBase64 {
		return base64.StdEncoding.EncodeToString(sum), nil
	}
	return hex.EncodeToString(sum), nil
}

// Verify reports whether digest is the digest of plaintext. It differs
// from comparing Digest output in one case: empty input never matches, so
// Verify("", "") is false even though Digest("") is "". An unset index
// value is never treated as a hit.
func (d *Digester) Verify(plaintext, digest string) bool {
	if plaintext == "" || digest == "" {
		return false
	}
	got, err := d.Digest(plaintext)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(digest)) == 1
}

func (d *Digester) newHash() (hash.Hash, error) {
	switch d.algo {
	case DigestSHA256:
		return sha256.New(), nil
	case DigestSHA512:
		return sha512.New(), nil
	case DigestBLAKE2b:
		return blake2b.New256(nil)
	case DigestHMACSHA256:
		return hmac.New(sha256.New, d.salt), nil
	default:
		return sm3.New(), nil
	}
}
