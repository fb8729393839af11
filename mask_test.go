package veil

import (
	"errors"
	"testing"
)

func TestPhoneMasker(t *testing.T) {
	m := PhoneMasker()

	tests := []struct {
		input    string
		expected string
	}{
		{"13812345678", "138****5678"},
		{"1234567", "123****4567"},
		{"123456", "123456"}, // Too short
		{"", ""},
	}

	for _, tt := range tests {
		result := m.Mask(tt.input)
		if result != tt.expected {
			t.Errorf("PhoneMasker(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestEmailMasker(t *testing.T) {
	m := EmailMasker()

	tests := []struct {
		input    string
		expected string
	}{
		{"test@example.com", "t****@example.com"},
		{"usermail@example.com", "use****ail@example.com"},
		{"zhangsan123@example.com", "zha****123@example.com"},
		{"abcdef@x.org", "a****@x.org"},
		{"abcdefg@x.org", "abc****efg@x.org"},
		{"@example.com", "****@example.com"},
		{"noatsign", "noatsign"}, // No @
	}

	for _, tt := range tests {
		result := m.Mask(tt.input)
		if result != tt.expected {
			t.Errorf("EmailMasker(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestIDCardMasker(t *testing.T) {
	m := IDCardMasker()

	tests := []struct {
		input    string
		expected string
	}{
		{"310123199001011234", "310123********1234"},
		{"11010119900101123X", "110101********123X"},
		{"123456789", "123456789"}, // Too short
	}

	for _, tt := range tests {
		result := m.Mask(tt.input)
		if result != tt.expected {
			t.Errorf("IDCardMasker(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestBankCardMasker(t *testing.T) {
	m := BankCardMasker()

	tests := []struct {
		input    string
		expected string
	}{
		{"6222021234567890", "************7890"},
		{"12345", "*2345"},
		{"1234", "1234"},
	}

	for _, tt := range tests {
		result := m.Mask(tt.input)
		if result != tt.expected {
			t.Errorf("BankCardMasker(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestNameMasker(t *testing.T) {
	m := NameMasker()

	tests := []struct {
		input    string
		expected string
	}{
		{"张三丰", "张**"},
		{"李四", "李*"},
		{"王", "王"},
		{"Alice", "A****"},
	}

	for _, tt := range tests {
		result := m.Mask(tt.input)
		if result != tt.expected {
			t.Errorf("NameMasker(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestCustomMasker(t *testing.T) {
	tests := []struct {
		pattern  string
		input    string
		expected string
	}{
		{"###****####", "13812345678", "138****5678"},
		{"*##", "abc", "*bc"},
		{"###", "abcd", "abcd"}, // Length mismatch
		{"", "abc", "abc"},
	}

	for _, tt := range tests {
		result := CustomMasker(tt.pattern).Mask(tt.input)
		if result != tt.expected {
			t.Errorf("CustomMasker(%q).Mask(%q) = %q, want %q", tt.pattern, tt.input, result, tt.expected)
		}
	}
}

func TestMaskerFunc(t *testing.T) {
	m := MaskerFunc(func(string) string { return "[hidden]" })
	if got := m.Mask("anything"); got != "[hidden]" {
		t.Errorf("MaskerFunc.Mask() = %q", got)
	}
}

func TestMaskValue(t *testing.T) {
	got, err := MaskValue(MaskPhone, "", "13812345678")
	if err != nil || got != "138****5678" {
		t.Errorf("MaskValue(phone) = (%q, %v)", got, err)
	}

	got, err = MaskValue(MaskCustom, "#**", "abc")
	if err != nil || got != "a**" {
		t.Errorf("MaskValue(custom) = (%q, %v)", got, err)
	}

	got, err = MaskValue("ssn", "", "123-45-6789")
	if !errors.Is(err, ErrMask) {
		t.Errorf("MaskValue(ssn) error = %v, want ErrMask", err)
	}
	if got != "123-45-6789" {
		t.Errorf("MaskValue(ssn) = %q, want unchanged", got)
	}
}
