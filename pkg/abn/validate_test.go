package abn

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"pgregory.net/rapid"
)

func TestValidate_Identifier(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"12345678901", "12345678901", true},
		{"12 345 678 901", "12345678901", true},
		{" 51 824\t753 556\n", "51824753556", true},
		{"1234567890", "", false},   // 10 digits
		{"123456789012", "", false}, // 12 digits
		{"12-345-678-901", "", false},
		{"+2345678901", "", false},
		{"1234567890a", "", false},
		{"", "", false},
		{"１２３４５６７８９０１", "", false}, // full-width digits
	}
	for _, tt := range tests {
		got, err := Validate(ModeIdentifier, tt.input)
		if tt.ok {
			if err != nil {
				t.Errorf("Validate(identifier, %q) error = %v, want nil", tt.input, err)
				continue
			}
			if got != tt.want {
				t.Errorf("Validate(identifier, %q) = %q, want %q", tt.input, got, tt.want)
			}
			continue
		}
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("Validate(identifier, %q) error = %v, want *ValidationError", tt.input, err)
			continue
		}
		if ve.Kind != InvalidIdentifierFormat {
			t.Errorf("Validate(identifier, %q) kind = %d, want InvalidIdentifierFormat", tt.input, ve.Kind)
		}
	}
}

func TestValidate_Name(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"ACME", "ACME", true},
		{"  abc  ", "abc", true},
		{"Café", "Café", true},
		{"ab", "", false},
		{"   ab   ", "", false},
		{"", "", false},
		{"\t\n", "", false},
		{"é é", "é é", true},
	}
	for _, tt := range tests {
		got, err := Validate(ModeName, tt.input)
		if tt.ok {
			if err != nil {
				t.Errorf("Validate(name, %q) error = %v, want nil", tt.input, err)
			} else if got != tt.want {
				t.Errorf("Validate(name, %q) = %q, want %q", tt.input, got, tt.want)
			}
			continue
		}
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Kind != NameTooShort {
			t.Errorf("Validate(name, %q) error = %v, want NameTooShort", tt.input, err)
		}
	}
}

func TestValidationError_Messages(t *testing.T) {
	_, err := Validate(ModeIdentifier, "abc")
	if err.Error() != "Please enter a valid 11-digit ABN" {
		t.Errorf("identifier message = %q", err.Error())
	}
	_, err = Validate(ModeName, "a")
	if err.Error() != "Please enter at least 3 characters for business name search" {
		t.Errorf("name message = %q", err.Error())
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input string
		want  Mode
		ok    bool
	}{
		{"abn", ModeIdentifier, true},
		{"ABN", ModeIdentifier, true},
		{"identifier", ModeIdentifier, true},
		{"", ModeIdentifier, true},
		{"name", ModeName, true},
		{" Name ", ModeName, true},
		{"acn", ModeIdentifier, false},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if (err == nil) != tt.ok {
			t.Errorf("ParseMode(%q) error = %v, want ok=%v", tt.input, err, tt.ok)
			continue
		}
		if tt.ok && got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestMode_LabelAndPlaceholder(t *testing.T) {
	if ModeIdentifier.Label() != "ABN" || ModeName.Label() != "Business Name" {
		t.Errorf("labels = %q/%q", ModeIdentifier.Label(), ModeName.Label())
	}
	if ModeIdentifier.Placeholder() != "Enter 11-digit ABN" {
		t.Errorf("identifier placeholder = %q", ModeIdentifier.Placeholder())
	}
	if ModeName.Placeholder() != "Enter business name (min. 3 characters)" {
		t.Errorf("name placeholder = %q", ModeName.Placeholder())
	}
}

// Property-based tests (pgregory.net/rapid)

var whitespace = rapid.SampledFrom([]string{"", " ", "  ", "\t", "\n", "\r\n", " "})

// interleave scatters whitespace between the runes of s.
func interleave(t *rapid.T, s string) string {
	var b strings.Builder
	b.WriteString(whitespace.Draw(t, "lead"))
	for _, r := range s {
		b.WriteRune(r)
		b.WriteString(whitespace.Draw(t, "gap"))
	}
	return b.String()
}

func TestProperty_ElevenDigitsWithWhitespaceValidates(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		digits := rapid.StringMatching(`[0-9]{11}`).Draw(rt, "digits")
		input := interleave(rt, digits)

		got, err := Validate(ModeIdentifier, input)
		if err != nil {
			rt.Fatalf("Validate(identifier, %q) error = %v", input, err)
		}
		if got != digits {
			rt.Fatalf("Validate(identifier, %q) = %q, want %q", input, got, digits)
		}
	})
}

func TestProperty_NonElevenDigitsRejected(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := rapid.String().Draw(rt, "s")
		stripped := StripSpace(s)
		if isDigits(stripped, ABNLength) {
			rt.Skip("drew a valid ABN")
		}
		_, err := Validate(ModeIdentifier, s)
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Kind != InvalidIdentifierFormat {
			rt.Fatalf("Validate(identifier, %q) error = %v, want InvalidIdentifierFormat", s, err)
		}
	})
}

func TestProperty_NameLengthRule(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := rapid.String().Draw(rt, "s")
		want := utf8.RuneCountInString(strings.TrimSpace(s)) >= MinNameLength
		_, err := Validate(ModeName, s)
		if (err == nil) != want {
			rt.Fatalf("Validate(name, %q) error = %v, want valid=%v", s, err, want)
		}
	})
}
