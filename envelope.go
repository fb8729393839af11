package veil

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultSeparator opens an envelope and separates its parts.
const DefaultSeparator = "$"

// Envelope is the text form of a ciphertext:
//
//	SEP + identifier + SEP + base64(ciphertext)
//
// The identifier names the key that produced the ciphertext.
type Envelope struct {
	Separator string
}

// ValidateSeparator rejects separators that could occur inside the
// identifier or the standard base64 body.
func ValidateSeparator(sep string) error {
	if utf8.RuneCountInString(sep) != 1 {
		return newConfigError(ErrInvalidConfig, sep, "separator")
	}
	r, _ := utf8.DecodeRuneInString(sep)
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return newConfigError(ErrInvalidConfig, sep, "separator")
	case r == '+' || r == '/' || r == '=' || r == '_' || r == '-':
		return newConfigError(ErrInvalidConfig, sep, "separator")
	}
	return nil
}

func (e Envelope) sep() string {
	if e.Separator == "" {
		return DefaultSeparator
	}
	return e.Separator
}

// Encode wraps ciphertext produced under the key named by id.
func (e Envelope) Encode(id string, ciphertext []byte) string {
	sep := e.sep()
	return sep + id + sep + base64.StdEncoding.EncodeToString(ciphertext)
}

// Parse splits an envelope into its identifier and ciphertext.
func (e Envelope) Parse(s string) (string, []byte, error) {
	parts := strings.Split(s, e.sep())
	if len(parts) != 3 || parts[0] != "" {
		return "", nil, fmt.Errorf("%w: expected 3 parts, got %d", ErrInvalidFormat, len(parts))
	}
	if parts[1] == "" {
		return "", nil, fmt.Errorf("%w: empty key identifier", ErrInvalidFormat)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	return parts[1], ciphertext, nil
}

// LooksEncrypted reports whether s starts like an envelope. It does not
// validate the rest of s.
func (e Envelope) LooksEncrypted(s string) bool {
	return strings.HasPrefix(s, e.sep())
}

// Valid reports whether s is a well-formed envelope.
func (e Envelope) Valid(s string) bool {
	if !e.LooksEncrypted(s) {
		return false
	}
	_, _, err := e.Parse(s)
	return err == nil
}
