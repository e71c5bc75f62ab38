package domain

import (
	"strings"

	dErrors "leadtrack/pkg/domain-errors"
)

// NationalIDLength is the digit count of a Brazilian CPF.
const NationalIDLength = 11

// NationalID is a normalized 11-digit CPF. The zero value is invalid.
//
// Invariants:
//   - exactly 11 ASCII digits
//   - not a single digit repeated 11 times
//
// Check digits are not verified. The tracking widget accepted any other
// 11-digit sequence and existing leads were stored under that rule.
type NationalID string

// ParseNationalID normalizes raw input and validates the result.
func ParseNationalID(raw string) (NationalID, error) {
	digits := NormalizeNationalID(raw)
	if digits == "" {
		return "", dErrors.New(dErrors.CodeValidation, "cpf is required")
	}
	if !IsValidNationalID(digits) {
		return "", dErrors.New(dErrors.CodeValidation, "cpf must have 11 digits and not repeat a single digit")
	}
	return NationalID(digits), nil
}

// NormalizeNationalID strips every non-digit character. Length is not enforced.
func NormalizeNationalID(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// IsValidNationalID reports whether digits is exactly 11 digits and not one
// digit repeated.
func IsValidNationalID(digits string) bool {
	if len(digits) != NationalIDLength {
		return false
	}
	repeated := true
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
		if digits[i] != digits[0] {
			repeated = false
		}
	}
	return !repeated
}

// FormatNationalID renders 11 digits as ###.###.###-##. Other inputs are
// returned unchanged.
func FormatNationalID(digits string) string {
	if len(digits) != NationalIDLength {
		return digits
	}
	return digits[0:3] + "." + digits[3:6] + "." + digits[6:9] + "-" + digits[9:11]
}

// MaskNationalID applies the progressive input mask shown while a CPF is
// typed: non-digits are dropped, input is truncated to 11 digits, and
// separators appear as groups fill.
func MaskNationalID(raw string) string {
	d := NormalizeNationalID(raw)
	if len(d) > NationalIDLength {
		d = d[:NationalIDLength]
	}
	switch {
	case len(d) > 9:
		return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:]
	case len(d) > 6:
		return d[0:3] + "." + d[3:6] + "." + d[6:]
	case len(d) > 3:
		return d[0:3] + "." + d[3:]
	default:
		return d
	}
}

// String returns the digits.
func (n NationalID) String() string {
	return string(n)
}

// Formatted returns the display form.
func (n NationalID) Formatted() string {
	return FormatNationalID(string(n))
}

// Redacted keeps the last two digits for log lines.
func (n NationalID) Redacted() string {
	if len(n) < 2 {
		return "***"
	}
	return "*********" + string(n[len(n)-2:])
}

// IsNil returns true if the ID is empty.
func (n NationalID) IsNil() bool {
	return n == ""
}
