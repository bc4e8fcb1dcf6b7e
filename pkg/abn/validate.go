// CLAUDE:SUMMARY Search term validation per mode: 11-digit ABN after whitespace removal, or a trimmed name of at least 3 characters.
package abn

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ABNLength is the number of digits in an ABN.
const ABNLength = 11

// MinNameLength is the shortest name accepted for a name search.
const MinNameLength = 3

// ValidationKind identifies why a search term was rejected.
type ValidationKind int

const (
	InvalidIdentifierFormat ValidationKind = iota + 1
	NameTooShort
)

// ValidationError is returned by Validate. Its message is suitable for display.
type ValidationError struct {
	Kind ValidationKind
	Term string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case InvalidIdentifierFormat:
		return "Please enter a valid 11-digit ABN"
	case NameTooShort:
		return "Please enter at least 3 characters for business name search"
	default:
		return "invalid search term"
	}
}

// Validate checks raw against the rule for mode and returns the cleaned term
// to send to the lookup service.
func Validate(mode Mode, raw string) (string, error) {
	if mode == ModeName {
		name := strings.TrimSpace(raw)
		if utf8.RuneCountInString(name) < MinNameLength {
			return "", &ValidationError{Kind: NameTooShort, Term: raw}
		}
		return name, nil
	}

	id := StripSpace(raw)
	if !isDigits(id, ABNLength) {
		return "", &ValidationError{Kind: InvalidIdentifierFormat, Term: raw}
	}
	return id, nil
}

// StripSpace removes every whitespace rune from s.
func StripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// isDigits reports whether s is exactly n ASCII digits.
func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
