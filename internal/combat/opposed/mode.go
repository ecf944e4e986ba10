package opposed

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode indicates an unrecognised opposed scoring mode.
var ErrUnknownMode = errors.New("unknown opposed mode")

// Mode selects how two tests are compared.
type Mode int

const (
	// ModeSuccesses compares success counts.
	ModeSuccesses Mode = iota
	// ModeDice compares the three dice segment by segment.
	ModeDice
	// ModeVanilla compares pass/fail only.
	ModeVanilla
)

func (m Mode) String() string {
	switch m {
	case ModeSuccesses:
		return "successes"
	case ModeDice:
		return "dice"
	case ModeVanilla:
		return "vanilla"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "successes", "":
		return ModeSuccesses, nil
	case "dice":
		return ModeDice, nil
	case "vanilla":
		return ModeVanilla, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, value)
	}
}

// UnmarshalText decodes a mode name.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalText encodes the mode name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
