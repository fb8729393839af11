package veil

import (
	"fmt"
	"strings"
)

// Masker applies a masking rule. Values a rule cannot handle are returned
// unchanged.
type Masker interface {
	// Mask applies masking to the value.
	Mask(value string) string
}

// MaskerFunc adapts a function to Masker.
type MaskerFunc func(string) string

// Mask calls f(value).
func (f MaskerFunc) Mask(value string) string { return f(value) }

type phoneMasker struct{}

// PhoneMasker keeps the first 3 and last 4 characters:
// 13812345678 -> 138****5678. Values shorter than 7 are unchanged.
func PhoneMasker() Masker {
	return &phoneMasker{}
}

func (m *phoneMasker) Mask(value string) string {
	r := []rune(value)
	if len(r) < 7 {
		return value
	}
	return string(r[:3]) + "****" + string(r[len(r)-4:])
}

type emailMasker struct{}

// EmailMasker masks the local part of an address and keeps the domain.
// Local parts of up to 6 characters keep their first character; longer
// ones keep the first and last 3. Values without @ are unchanged.
func EmailMasker() Masker {
	return &emailMasker{}
}

func (m *emailMasker) Mask(value string) string {
	local, domain, ok := strings.Cut(value, "@")
	if !ok {
		return value
	}
	r := []rune(local)
	if len(r) <= 6 {
		if len(r) == 0 {
			return "****@" + domain
		}
		return string(r[:1]) + "****@" + domain
	}
	return string(r[:3]) + "****" + string(r[len(r)-3:]) + "@" + domain
}

type idCardMasker struct{}

// IDCardMasker keeps the first 6 and last 4 characters:
// 110101199001011234 -> 110101********1234. Values shorter than 10 are
// unchanged.
func IDCardMasker() Masker {
	return &idCardMasker{}
}

func (m *idCardMasker) Mask(value string) string {
	r := []rune(value)
	if len(r) < 10 {
		return value
	}
	return string(r[:6]) + "********" + string(r[len(r)-4:])
}

type bankCardMasker struct{}

// BankCardMasker keeps the last 4 characters and stars the rest:
// 6222021234567890 -> ************7890. Values of 4 or fewer are unchanged.
func BankCardMasker() Masker {
	return &bankCardMasker{}
}

func (m *bankCardMasker) Mask(value string) string {
	r := []rune(value)
	if len(r) <= 4 {
		return value
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}

type nameMasker struct{}

// NameMasker keeps the first character: 张三丰 -> 张**.
func NameMasker() Masker {
	return &nameMasker{}
}

func (m *nameMasker) Mask(value string) string {
	r := []rune(value)
	if len(r) <= 1 {
		return value
	}
	return string(r[:1]) + strings.Repeat("*", len(r)-1)
}

type customMasker struct {
	pattern []rune
}

// CustomMasker masks by position: where pattern has '*' the output has
// '*', every other position keeps the input character. Values whose
// length differs from the pattern are unchanged.
func CustomMasker(pattern string) Masker {
	return &customMasker{pattern: []rune(pattern)}
}

func (m *customMasker) Mask(value string) string {
	r := []rune(value)
	if len(m.pattern) == 0 || len(r) != len(m.pattern) {
		return value
	}
	for i, p := range m.pattern {
		if p == '*' {
			r[i] = '*'
		}
	}
	return string(r)
}

// builtinMaskers returns the default masker registry. Custom masks are
// built per pattern.
func builtinMaskers() map[MaskType]Masker {
	return map[MaskType]Masker{
		MaskPhone:    PhoneMasker(),
		MaskEmail:    EmailMasker(),
		MaskIDCard:   IDCardMasker(),
		MaskBankCard: BankCardMasker(),
		MaskName:     NameMasker(),
	}
}

// MaskValue applies a built-in rule. Unknown types return ErrMask and the
// value unchanged.
func MaskValue(mt MaskType, pattern, value string) (string, error) {
	if mt == MaskCustom {
		return CustomMasker(pattern).Mask(value), nil
	}
	m, ok := builtinMaskers()[mt]
	if !ok {
		return value, fmt.Errorf("%w: unknown mask type %q", ErrMask, mt)
	}
	return m.Mask(value), nil
}
