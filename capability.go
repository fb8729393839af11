package veil

import (
	"fmt"
	"strings"
)

// Struct tag keys, in {context}.{action} form.
const (
	TagDigest  = "write.digest"
	TagEncrypt = "write.encrypt"
	TagDecrypt = "read.decrypt"
	TagMask    = "read.mask"
)

// DigestAuto selects the conventional digest field, <Field>Digest.
const DigestAuto = "auto"

// DigestSuffix is appended to a field name to locate its digest field.
const DigestSuffix = "Digest"

// MaskType names a masking rule. Use these constants in struct tags:
// `read.mask:"phone"`.
type MaskType string

const (
	MaskPhone    MaskType = "phone"     // 13812345678 -> 138****5678
	MaskEmail    MaskType = "email"     // zhangsan123@example.com -> zha****123@example.com
	MaskIDCard   MaskType = "id_card"   // 110101199001011234 -> 110101********1234
	MaskBankCard MaskType = "bank_card" // 6222021234567890 -> ************7890
	MaskName     MaskType = "name"      // 张三丰 -> 张**
	MaskCustom   MaskType = "custom"    // custom:###****#### keeps # and masks *
)

// DigestAlgo names a digest function.
type DigestAlgo string

const (
	DigestSM3        DigestAlgo = "sm3"
	DigestSHA256     DigestAlgo = "sha256"
	DigestSHA512     DigestAlgo = "sha512"
	DigestBLAKE2b    DigestAlgo = "blake2b"
	DigestHMACSHA256 DigestAlgo = "hmac-sha256"
)

// DigestEncoding is the text form of a digest.
type DigestEncoding string

const (
	EncodingHex    DigestEncoding = "hex"
	EncodingBase64 DigestEncoding = "base64"
)

// CipherAlgo names a 128-bit block cipher.
type CipherAlgo string

const (
	CipherSM4 CipherAlgo = "sm4"
	CipherAES CipherAlgo = "aes"
)

// CipherMode names a block cipher mode.
type CipherMode string

const (
	// ModeECB is unauthenticated and leaks equal blocks. It is the default
	// for compatibility with stored data written in that mode.
	ModeECB CipherMode = "ecb"
	ModeCBC CipherMode = "cbc"
	ModeGCM CipherMode = "gcm"
)

// Padding names a block padding scheme. For 16-byte blocks PKCS#5 and
// PKCS#7 produce identical bytes.
type Padding string

const (
	PaddingPKCS5 Padding = "pkcs5"
	PaddingPKCS7 Padding = "pkcs7"
)

// IdentifierMode selects what an envelope records about its key.
type IdentifierMode string

const (
	// IdentifyByVersion embeds the key version. Decryptable after rotation.
	IdentifyByVersion IdentifierMode = "version"
	// IdentifyBySlot embeds the slot name and decrypts with whatever key is
	// active at read time. Kept for data written that way.
	IdentifyBySlot IdentifierMode = "slot"
)

var validMaskTypes = map[MaskType]bool{
	MaskPhone:    true,
	MaskEmail:    true,
	MaskIDCard:   true,
	MaskBankCard: true,
	MaskName:     true,
	MaskCustom:   true,
}

var validDigestAlgos = map[DigestAlgo]bool{
	DigestSM3:        true,
	DigestSHA256:     true,
	DigestSHA512:     true,
	DigestBLAKE2b:    true,
	DigestHMACSHA256: true,
}

var validCipherAlgos = map[CipherAlgo]bool{
	CipherSM4: true,
	CipherAES: true,
}

var validCipherModes = map[CipherMode]bool{
	ModeECB: true,
	ModeCBC: true,
	ModeGCM: true,
}

// IsValidMaskType returns true if mt is a built-in mask type.
func IsValidMaskType(mt MaskType) bool {
	return validMaskTypes[mt]
}

// IsValidDigestAlgo returns true if algo is a known digest algorithm.
func IsValidDigestAlgo(algo DigestAlgo) bool {
	return validDigestAlgos[algo]
}

// IsValidCipherAlgo returns true if algo is a known cipher.
func IsValidCipherAlgo(algo CipherAlgo) bool {
	return validCipherAlgos[algo]
}

// IsValidCipherMode returns true if mode is a known cipher mode.
func IsValidCipherMode(mode CipherMode) bool {
	return validCipherModes[mode]
}

// IsValidPadding returns true if p is a known padding scheme.
func IsValidPadding(p Padding) bool {
	return p == PaddingPKCS5 || p == PaddingPKCS7
}

// IsValidIdentifierMode returns true if m is a known identifier mode.
func IsValidIdentifierMode(m IdentifierMode) bool {
	return m == IdentifyByVersion || m == IdentifyBySlot
}

// ParseMaskTag splits a read.mask tag value into its type and, for custom
// masks, the positional pattern.
func ParseMaskTag(val string) (MaskType, string, error) {
	kind, pattern, hasPattern := strings.Cut(val, ":")
	mt := MaskType(strings.TrimSpace(kind))
	if mt == "" {
		return "", "", fmt.Errorf("%w: empty mask type", ErrInvalidTag)
	}
	if mt == MaskCustom {
		if !hasPattern || pattern == "" {
			return "", "", fmt.Errorf("%w: custom mask needs a pattern", ErrInvalidTag)
		}
		return mt, pattern, nil
	}
	if hasPattern {
		return "", "", fmt.Errorf("%w: mask type %q takes no pattern", ErrInvalidTag, mt)
	}
	return mt, "", nil
}
