package veil

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/zoobzio/veil/keys"
)

// KeySource resolves key material. *keys.Manager implements it.
type KeySource interface {
	GetActiveKey(ctx context.Context, slot string) (keys.Key, error)
	GetKeyByReference(ctx context.Context, slot string, version int64) (keys.Key, error)
}

// Crypter turns plaintext into envelopes and back. Envelopes name the key
// version that sealed them, so they stay readable after rotation.
type Crypter struct {
	keys     KeySource
	suite    *Suite
	envelope Envelope
	identify IdentifierMode
	logger   *slog.Logger
}

// CrypterOption configures a Crypter.
type CrypterOption func(*Crypter)

// WithSuite sets the cipher suite. Defaults to DefaultSuite().
func WithSuite(s *Suite) CrypterOption {
	return func(c *Crypter) { c.suite = s }
}

// WithSeparator sets the envelope separator. Defaults to "$".
func WithSeparator(sep string) CrypterOption {
	return func(c *Crypter) { c.envelope = Envelope{Separator: sep} }
}

// WithIdentifierMode selects what new envelopes embed. Both forms are
// always accepted on decrypt.
func WithIdentifierMode(m IdentifierMode) CrypterOption {
	return func(c *Crypter) { c.identify = m }
}

// WithCrypterLogger sets the logger.
func WithCrypterLogger(l *slog.Logger) CrypterOption {
	return func(c *Crypter) { c.logger = l }
}

// NewCrypter returns a Crypter drawing keys from src.
func NewCrypter(src KeySource, opts ...CrypterOption) (*Crypter, error) {
	c := &Crypter{
		keys:     src,
		suite:    DefaultSuite(),
		envelope: Envelope{Separator: DefaultSeparator},
		identify: IdentifyByVersion,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := ValidateSeparator(c.envelope.sep()); err != nil {
		return nil, err
	}
	if !IsValidIdentifierMode(c.identify) {
		return nil, newConfigError(ErrInvalidConfig, string(c.identify), "identifier")
	}
	return c, nil
}

// Suite returns the cipher suite in use.
func (c *Crypter) Suite() *Suite {
	return c.suite
}

// Separator returns the envelope separator.
func (c *Crypter) Separator() string {
	return c.envelope.sep()
}

// LooksEncrypted reports whether s is a well-formed envelope. Plaintext
// that merely starts with the separator, such as "$5 off", is not.
func (c *Crypter) LooksEncrypted(s string) bool {
	return c.envelope.Valid(s)
}

// Encrypt seals plaintext under the active key of slot. Empty input is
// returned unchanged.
func (c *Crypter) Encrypt(ctx context.Context, plaintext, slot string) (string, error) {
	if plaintext == "" {
		return plaintext, nil
	}
	if strings.Contains(slot, c.envelope.sep()) {
		return "", newConfigError(ErrInvalidTag, slot, "slot")
	}

	key, err := c.keys.GetActiveKey(ctx, slot)
	if err != nil {
		return "", fmt.Errorf("active key for %q: %w", slot, err)
	}

	ciphertext, err := c.suite.Seal(key.Material, []byte(plaintext))
	if err != nil {
		c.logger.ErrorContext(ctx, "encryption failed",
			"operation", "encrypt",
			"slot", slot,
			"version", key.Version,
			"suite", c.suite.String(),
			"error", err,
		)
		return "", err
	}

	id := strconv.FormatInt(key.Version, 10)
	if c.identify == IdentifyBySlot {
		id = slot
	}
	return c.envelope.Encode(id, ciphertext), nil
}

// Decrypt opens an envelope. Empty input and values without the leading
// separator are returned unchanged.
func (c *Crypter) Decrypt(ctx context.Context, value string) (string, error) {
	if value == "" || !c.envelope.LooksEncrypted(value) {
		return value, nil
	}

	id, ciphertext, err := c.envelope.Parse(value)
	if err != nil {
		return "", err
	}

	key, err := c.resolve(ctx, id)
	if err != nil {
		return "", err
	}

	plaintext, err := c.suite.Open(key.Material, ciphertext)
	if err != nil {
		c.logger.WarnContext(ctx, "decryption failed",
			"operation", "decrypt",
			"key", id,
			"suite", c.suite.String(),
			"error", err,
		)
		return "", err
	}
	return string(plaintext), nil
}

// resolve maps an envelope identifier to key material. Numeric identifiers
// are versions; anything else is a slot decrypted with its active key.
func (c *Crypter) resolve(ctx context.Context, id string) (keys.Key, error) {
	if version, err := strconv.ParseInt(id, 10, 64); err == nil {
		key, err := c.keys.GetKeyByReference(ctx, "", version)
		if err != nil {
			return keys.Key{}, fmt.Errorf("key version %d: %w", version, err)
		}
		return key, nil
	}
	key, err := c.keys.GetActiveKey(ctx, id)
	if err != nil {
		return keys.Key{}, fmt.Errorf("active key for %q: %w", id, err)
	}
	return key, nil
}
