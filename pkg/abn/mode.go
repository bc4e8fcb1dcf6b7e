package abn

import (
	"fmt"
	"strings"
)

// Mode selects how a search term is interpreted.
type Mode int

const (
	// ModeIdentifier searches by the 11-digit ABN.
	ModeIdentifier Mode = iota
	// ModeName searches by business or entity name.
	ModeName
)

func (m Mode) String() string {
	switch m {
	case ModeIdentifier:
		return "abn"
	case ModeName:
		return "name"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Label is the field label shown next to the search input.
func (m Mode) Label() string {
	if m == ModeName {
		return "Business Name"
	}
	return "ABN"
}

// Placeholder is the hint text for the search input.
func (m Mode) Placeholder() string {
	if m == ModeName {
		return "Enter business name (min. 3 characters)"
	}
	return "Enter 11-digit ABN"
}

// ParseMode accepts "abn", "identifier" or "name" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "abn", "identifier", "":
		return ModeIdentifier, nil
	case "name":
		return ModeName, nil
	default:
		return ModeIdentifier, fmt.Errorf("unknown search mode %q", s)
	}
}

// MarshalText encodes the mode as its string name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
