package check

import (
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/dicecore/internal/core/difficulty"
)

// PoolSize is the number of dice in a full test.
const PoolSize = 3

// NaturalFailure is the face that never succeeds in a Closed test.
const NaturalFailure = 20

var (
	// ErrNegativeSkill indicates a negative skill budget.
	ErrNegativeSkill = errors.New("skill must be non-negative")
	// ErrInvalidDice indicates a pool with the wrong size or faces outside 1..20.
	ErrInvalidDice = errors.New("test requires three dice between 1 and 20")
	// ErrInvalidSingleDice indicates an aimed pool outside 1..3 dice.
	ErrInvalidSingleDice = errors.New("aimed test requires one to three dice between 1 and 20")
	// ErrUnknownMode indicates an unrecognised test mode.
	ErrUnknownMode = errors.New("unknown test mode")
)

// Mode selects the test evaluation rules.
type Mode int

const (
	ModeClosed Mode = iota
	ModeOpen
)

func (m Mode) String() string {
	switch m {
	case ModeClosed:
		return "closed"
	case ModeOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ParseMode parses "open" or "closed".
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "closed", "":
		return ModeClosed, nil
	case "open":
		return ModeOpen, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, value)
	}
}

// DieResult is one die of an evaluated pool.
//
// Invariant: 1 <= Modified <= Original.
type DieResult struct {
	Original int
	Modified int
	Success  bool
	Ignored  bool
}

// Outcome is the immutable result of one test.
type Outcome struct {
	Mode        Mode
	Target      int
	SkillBudget int
	SkillSpent  int
	// SuccessCount is the number of individually successful dice.
	SuccessCount int
	// Advantage is target minus the deciding die for Open and aimed tests.
	Advantage   int
	Dice        []DieResult
	Passed      bool
	CritSuccess bool
	CritFailure bool
}

// Points returns the success measure that drives downstream effects:
// successes for a Closed test, advantage for an Open test.
func (o Outcome) Points() int {
	if o.Mode == ModeOpen {
		return o.Advantage
	}
	return o.SuccessCount
}

// Originals returns the rolled faces in pool order.
func (o Outcome) Originals() []int {
	faces := make([]int, len(o.Dice))
	for i, d := range o.Dice {
		faces[i] = d.Original
	}
	return faces
}

// Target returns the success threshold for attribute at the given tier.
func Target(attribute int, tier difficulty.Tier) int {
	return attribute + tier.Modifier
}

func validatePool(skill int, dice []int) error {
	if skill < 0 {
		return ErrNegativeSkill
	}
	if len(dice) != PoolSize {
		return ErrInvalidDice
	}
	for _, face := range dice {
		if face < 1 || face > 20 {
			return ErrInvalidDice
		}
	}
	return nil
}

func newResults(dice []int) []DieResult {
	results := make([]DieResult, len(dice))
	for i, face := range dice {
		results[i] = DieResult{Original: face, Modified: face}
	}
	return results
}

// MarshalText encodes the mode name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
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
