package veil

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"testing"
)

func TestDigester_KnownAnswers(t *testing.T) {
	tests := []struct {
		algo DigestAlgo
		salt string
		in   string
		want string
	}{
		// Digest input is plaintext followed by salt.
		{DigestSM3, "", "abc", "66c7f0f462eeedd9d1f2d46bdc10e4e24167c4875cf2f7a2297da02b8f4ba8e0"},
		{DigestSM3, "c", "ab", "66c7f0f462eeedd9d1f2d46bdc10e4e24167c4875cf2f7a2297da02b8f4ba8e0"},
		{DigestSHA256, "", "abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{DigestSHA256, "bc", "a", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}
	for _, tt := range tests {
		t.Run(string(tt.algo)+"/"+tt.in, func(t *testing.T) {
			d, err := NewDigester(tt.salt, WithDigestAlgorithm(tt.algo))
			if err != nil {
				t.Fatalf("NewDigester() error: %v", err)
			}
			got, err := d.Digest(tt.in)
			if err != nil {
				t.Fatalf("Digest() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Digest(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestDigester_Deterministic(t *testing.T) {
	for _, algo := range []DigestAlgo{DigestSM3, DigestSHA256, DigestSHA512, DigestBLAKE2b, DigestHMACSHA256} {
		t.Run(string(algo), func(t *testing.T) {
			a, _ := NewDigester(testSalt, WithDigestAlgorithm(algo))
			b, _ := NewDigester(testSalt, WithDigestAlgorithm(algo))

			x, err := a.Digest("13812345678")
			if err != nil {
				t.Fatalf("Digest() error: %v", err)
			}
			y, _ := b.Digest("13812345678")
			if x != y {
				t.Errorf("digests differ across instances: %s vs %s", x, y)
			}

			other, _ := a.Digest("13812345679")
			if other == x {
				t.Error("different plaintexts produced equal digests")
			}
		})
	}
}

func TestDigester_SaltSensitive(t *testing.T) {
	for _, algo := range []DigestAlgo{DigestSM3, DigestSHA256, DigestSHA512, DigestBLAKE2b, DigestHMACSHA256} {
		t.Run(string(algo), func(t *testing.T) {
			a, _ := NewDigester("salt-a", WithDigestAlgorithm(algo))
			b, _ := NewDigester("salt-b", WithDigestAlgorithm(algo))
			x, _ := a.Digest("13812345678")
			y, _ := b.Digest("13812345678")
			if x == y {
				t.Error("salt change did not change digest")
			}
		})
	}
}

func TestDigester_Empty(t *testing.T) {
	d, _ := NewDigester(testSalt)
	got, err := d.Digest("")
	if err != nil || got != "" {
		t.Errorf("Digest(\"\") = (%q, %v), want empty", got, err)
	}
}

func TestDigester_Encoding(t *testing.T) {
	h, _ := NewDigester(testSalt)
	b, _ := NewDigester(testSalt, WithDigestEncoding(EncodingBase64))

	hx, _ := h.Digest("value")
	bx, _ := b.Digest("value")

	raw, err := hex.DecodeString(hx)
	if err != nil {
		t.Fatalf("hex digest not hex: %v", err)
	}
	if want := base64.StdEncoding.EncodeToString(raw); bx != want {
		t.Errorf("base64 digest = %s, want %s", bx, want)
	}
	if len(raw) != 32 {
		t.Errorf("SM3 digest length = %d, want 32", len(raw))
	}
}

func TestDigester_Verify(t *testing.T) {
	d, _ := NewDigester(testSalt)
	sum, _ := d.Digest("13812345678")

	if !d.Verify("13812345678", sum) {
		t.Error("Verify() = false for matching plaintext")
	}
	if d.Verify("13812345679", sum) {
		t.Error("Verify() = true for different plaintext")
	}
	if d.Verify("", "") {
		t.Error("Verify() = true for empty input")
	}
	if d.Verify("13812345678", "") {
		t.Error("Verify() = true for empty digest")
	}
}

func TestNewDigester_Invalid(t *testing.T) {
	if _, err := NewDigester(testSalt, WithDigestAlgorithm("md5")); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewDigester(md5) error = %v", err)
	}
	if _, err := NewDigester(testSalt, WithDigestEncoding("base32")); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewDigester(base32) error = %v", err)
	}
}

func TestDigester_Algorithm(t *testing.T) {
	d, _ := NewDigester(testSalt)
	if d.Algorithm() != DigestSM3 {
		t.Errorf("default algorithm = %s, want sm3", d.Algorithm())
	}
}
