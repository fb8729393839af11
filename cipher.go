package veil

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/emmansun/gmsm/sm4"
)

// CipherKeySize is the key length of every supported cipher, in bytes.
const CipherKeySize = 16

// Suite is a block cipher, mode and padding triple. A Suite holds no key
// and is safe for concurrent use.
type Suite struct {
	algo     CipherAlgo
	mode     CipherMode
	padding  Padding
	newBlock func(key []byte) (cipher.Block, error)
}

// DefaultSuite returns SM4/ECB/PKCS5, the layout of existing stored data.
func DefaultSuite() *Suite {
	s, _ := NewSuite(CipherSM4, ModeECB, PaddingPKCS5)
	return s
}

// NewSuite validates and returns a cipher suite.
func NewSuite(algo CipherAlgo, mode CipherMode, padding Padding) (*Suite, error) {
	if !IsValidCipherAlgo(algo) {
		return nil, newConfigError(ErrInvalidConfig, string(algo), "")
	}
	if !IsValidCipherMode(mode) {
		return nil, newConfigError(ErrInvalidConfig, string(mode), "")
	}
	if mode != ModeGCM && !IsValidPadding(padding) {
		return nil, newConfigError(ErrInvalidConfig, string(padding), "")
	}

	s := &Suite{algo: algo, mode: mode, padding: padding}
	switch algo {
	case CipherSM4:
		s.newBlock = sm4.NewCipher
	case CipherAES:
		s.newBlock = aes.NewCipher
	}
	return s, nil
}

// String returns the suite in ALGO/MODE/PADDING form.
func (s *Suite) String() string {
	if s.mode == ModeGCM {
		return fmt.Sprintf("%s/%s/none", s.algo, s.mode)
	}
	return fmt.Sprintf("%s/%s/%s", s.algo, s.mode, s.padding)
}

// NormalizeKey fits material to n bytes: shorter material is zero padded,
// longer material is truncated. The result never aliases material.
func NormalizeKey(material []byte, n int) []byte {
	out := make([]byte, n)
	copy(out, material)
	return out
}

// Seal encrypts plaintext under material.
func (s *Suite) Seal(material, plaintext []byte) ([]byte, error) {
	block, err := s.newBlock(NormalizeKey(material, CipherKeySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCrypto, err)
	}

	switch s.mode {
	case ModeGCM:
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCrypto, err)
		}
		nonce := make([]byte, gcm.NonceSize())
		if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCrypto, err)
		}
		// Prepend nonce to ciphertext
		return gcm.Seal(nonce, nonce, plaintext, nil), nil

	case ModeCBC:
		padded := pad(plaintext, block.BlockSize())
		out := make([]byte, block.BlockSize()+len(padded))
		iv := out[:block.BlockSize()]
		if _, err := io.ReadFull(rand.Reader, iv); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCrypto, err)
		}
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[block.BlockSize():], padded)
		return out, nil

	default:
		padded := pad(plaintext, block.BlockSize())
		bs := block.BlockSize()
		out := make([]byte, len(padded))
		for i := 0; i < len(padded); i += bs {
			block.Encrypt(out[i:i+bs], padded[i:i+bs])
		}
		return out, nil
	}
}

// Open decrypts ciphertext produced by Seal under the same material.
func (s *Suite) Open(material, ciphertext []byte) ([]byte, error) {
	block, err := s.newBlock(NormalizeKey(material, CipherKeySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCrypto, err)
	}
	bs := block.BlockSize()

	switch s.mode {
	case ModeGCM:
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCrypto, err)
		}
		if len(ciphertext) < gcm.NonceSize() {
			return nil, fmt.Errorf("%w: ciphertext too short", ErrCrypto)
		}
		nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
		plaintext, err := gcm.Open(nil, nonce, body, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCrypto, err)
		}
		return plaintext, nil

	case ModeCBC:
		if len(ciphertext) < 2*bs || len(ciphertext)%bs != 0 {
			return nil, fmt.Errorf("%w: ciphertext length %d", ErrCrypto, len(ciphertext))
		}
		iv, body := ciphertext[:bs], ciphertext[bs:]
		out := make([]byte, len(body))
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, body)
		return unpad(out, bs)

	default:
		if len(ciphertext) == 0 || len(ciphertext)%bs != 0 {
			return nil, fmt.Errorf("%w: ciphertext length %d", ErrCrypto, len(ciphertext))
		}
		out := make([]byte, len(ciphertext))
		for i := 0; i < len(ciphertext); i += bs {
			block.Decrypt(out[i:i+bs], ciphertext[i:i+bs])
		}
		return unpad(out, bs)
	}
}

func pad(b []byte, bs int) []byte {
	n := bs - len(b)%bs
	return append(append(make([]byte, 0, len(b)+n), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, bs int) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty block", ErrCrypto)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > bs || n > len(b) {
		return nil, fmt.Errorf("%w: bad padding", ErrCrypto)
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrCrypto)
		}
	}
	return b[:len(b)-n], nil
}
