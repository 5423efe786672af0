package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// CIK identifies a filing entity. It is either a zero-padded 10-digit numeric
// string or a fund series identifier of the form S000012345.
type CIK string

// ParseCIK validates and canonicalizes a raw identifier. Numeric identifiers
// are zero-padded to 10 digits; series identifiers are upper-cased.
func ParseCIK(raw string) (CIK, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", eris.New("cik: empty identifier")
	}

	if s[0] == 'S' {
		digits := s[1:]
		if len(digits) != 9 || !allDigits(digits) {
			return "", eris.Errorf("cik: invalid series identifier %q", raw)
		}
		return CIK(s), nil
	}

	s = strings.TrimPrefix(s, "CIK")
	if len(s) == 0 || len(s) > 10 || !allDigits(s) {
		return "", eris.Errorf("cik: invalid identifier %q", raw)
	}
	return CIK(strings.Repeat("0", 10-len(s)) + s), nil
}

// IsSeries reports whether the identifier is a fund series id.
func (c CIK) IsSeries() bool {
	return strings.HasPrefix(string(c), "S")
}

// Trimmed returns the identifier without leading zeros, the form used in
// archive paths.
func (c CIK) Trimmed() string {
	if c.IsSeries() {
		return string(c)
	}
	t := strings.TrimLeft(string(c), "0")
	if t == "" {
		return "0"
	}
	return t
}

func (c CIK) String() string { return string(c) }

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
