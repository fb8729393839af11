package veil

import (
	"errors"
	"testing"
)

func TestIsValidMaskType(t *testing.T) {
	tests := []struct {
		mt   MaskType
		want bool
	}{
		{MaskPhone, true},
		{MaskEmail, true},
		{MaskIDCard, true},
		{MaskBankCard, true},
		{MaskName, true},
		{MaskCustom, true},
		{"ssn", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.mt), func(t *testing.T) {
			if got := IsValidMaskType(tt.mt); got != tt.want {
				t.Errorf("IsValidMaskType(%q) = %v, want %v", tt.mt, got, tt.want)
			}
		})
	}
}

func TestIsValidDigestAlgo(t *testing.T) {
	tests := []struct {
		algo DigestAlgo
		want bool
	}{
		{DigestSM3, true},
		{DigestSHA256, true},
		{DigestSHA512, true},
		{DigestBLAKE2b, true},
		{DigestHMACSHA256, true},
		{"argon2", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.algo), func(t *testing.T) {
			if got := IsValidDigestAlgo(tt.algo); got != tt.want {
				t.Errorf("IsValidDigestAlgo(%q) = %v, want %v", tt.algo, got, tt.want)
			}
		})
	}
}

func TestIsValidCipher(t *testing.T) {
	if !IsValidCipherAlgo(CipherSM4) || !IsValidCipherAlgo(CipherAES) || IsValidCipherAlgo("des") {
		t.Error("IsValidCipherAlgo() mismatch")
	}
	if !IsValidCipherMode(ModeECB) || !IsValidCipherMode(ModeCBC) || !IsValidCipherMode(ModeGCM) || IsValidCipherMode("ctr") {
		t.Error("IsValidCipherMode() mismatch")
	}
	if !IsValidPadding(PaddingPKCS5) || !IsValidPadding(PaddingPKCS7) || IsValidPadding("zero") {
		t.Error("IsValidPadding() mismatch")
	}
	if !IsValidIdentifierMode(IdentifyByVersion) || !IsValidIdentifierMode(IdentifyBySlot) || IsValidIdentifierMode("") {
		t.Error("IsValidIdentifierMode() mismatch")
	}
}

func TestParseMaskTag(t *testing.T) {
	tests := []struct {
		tag     string
		mt      MaskType
		pattern string
		wantErr bool
	}{
		{"phone", MaskPhone, "", false},
		{"email", MaskEmail, "", false},
		{"custom:###****####", MaskCustom, "###****####", false},
		{"custom:", "", "", true},
		{"custom", "", "", true},
		{"phone:###", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			mt, pattern, err := ParseMaskTag(tt.tag)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTag) {
					t.Errorf("ParseMaskTag(%q) error = %v, want ErrInvalidTag", tt.tag, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMaskTag(%q) error: %v", tt.tag, err)
			}
			if mt != tt.mt || pattern != tt.pattern {
				t.Errorf("ParseMaskTag(%q) = (%q, %q), want (%q, %q)", tt.tag, mt, pattern, tt.mt, tt.pattern)
			}
		})
	}
}
