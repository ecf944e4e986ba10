package opposed

import (
	"errors"
	"fmt"

	"github.com/louisbranch/dicecore/internal/core/bounds"
	"github.com/louisbranch/dicecore/internal/core/check"
)

// MaxDamageBonus caps the damage tier bonus an attacker can earn.
const MaxDamageBonus = 3

// ErrNotClosed indicates an outcome that is not a three-die Closed test.
var ErrNotClosed = errors.New("opposed tests require closed three-die outcomes")

// Side identifies a party in an opposed test.
type Side int

const (
	Defender Side = iota
	Attacker
)

func (s Side) String() string {
	if s == Attacker {
		return "attacker"
	}
	return "defender"
}

// Segment is one index-aligned die comparison in dice mode.
type Segment struct {
	Index           int
	AttackerValue   int
	DefenderValue   int
	AttackerSuccess bool
	DefenderSuccess bool
	Winner          Side
}

// Outcome is the verdict of an opposed test.
type Outcome struct {
	Winner       Side
	Mode         Mode
	AdvantageRaw int
	// DamageBonus is in [0,3] and only non-zero when the attacker wins.
	DamageBonus       int
	AttackerSuccesses int
	DefenderSuccesses int
	Segments          []Segment
	AttackerSegments  int
	DefenderSegments  int
}

type scorer func(attacker, defender check.Outcome) Outcome

var scorers = map[Mode]scorer{
	ModeSuccesses: scoreSuccesses,
	ModeDice:      scoreDice,
	ModeVanilla:   scoreVanilla,
}

// Resolve scores two Closed outcomes under mode.
func Resolve(mode Mode, attacker, defender check.Outcome) (Outcome, error) {
	score, ok := scorers[mode]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %d", ErrUnknownMode, int(mode))
	}
	if err := validate(attacker); err != nil {
		return Outcome{}, fmt.Errorf("attacker: %w", err)
	}
	if err := validate(defender); err != nil {
		return Outcome{}, fmt.Errorf("defender: %w", err)
	}
	out := score(attacker, defender)
	out.Mode = mode
	out.AttackerSuccesses = attacker.SuccessCount
	out.DefenderSuccesses = defender.SuccessCount
	return out, nil
}

func validate(o check.Outcome) error {
	if o.Mode != check.ModeClosed || len(o.Dice) != check.PoolSize {
		return ErrNotClosed
	}
	return nil
}

// scoreSuccesses awards the attacker the win only on strictly more
// successes; the margin becomes the damage bonus.
func scoreSuccesses(attacker, defender check.Outcome) Outcome {
	advantage := attacker.SuccessCount - defender.SuccessCount
	if advantage > 0 {
		return Outcome{
			Winner:       Attacker,
			AdvantageRaw: advantage,
			DamageBonus:  bounds.Clamp(advantage, 0, MaxDamageBonus),
		}
	}
	return Outcome{Winner: Defender, AdvantageRaw: advantage}
}

// scoreDice compares dice by rolled position. A lone success takes the
// segment; two successes go to the lower modified value; the defender takes
// double failures and exact ties.
func scoreDice(attacker, defender check.Outcome) Outcome {
	out := Outcome{Segments: make([]Segment, check.PoolSize)}
	for i := 0; i < check.PoolSize; i++ {
		a, d := attacker.Dice[i], defender.Dice[i]
		seg := Segment{
			Index:           i,
			AttackerValue:   a.Modified,
			DefenderValue:   d.Modified,
			AttackerSuccess: a.Success,
			DefenderSuccess: d.Success,
			Winner:          Defender,
		}
		switch {
		case a.Success && !d.Success:
			seg.Winner = Attacker
		case a.Success && d.Success && a.Modified < d.Modified:
			seg.Winner = Attacker
		}
		if seg.Winner == Attacker {
			out.AttackerSegments++
		} else {
			out.DefenderSegments++
		}
		out.Segments[i] = seg
	}

	out.AdvantageRaw = out.AttackerSegments - out.DefenderSegments
	out.Winner = Defender
	if out.AttackerSegments > out.DefenderSegments {
		out.Winner = Attacker
		out.DamageBonus = bounds.Clamp(out.AdvantageRaw, 0, MaxDamageBonus)
	}
	return out
}

// scoreVanilla lets the attacker win only by passing while the defender
// fails. No damage bonus is awarded.
func scoreVanilla(attacker, defender check.Outcome) Outcome {
	out := Outcome{
		Winner:       Defender,
		AdvantageRaw: attacker.SuccessCount - defender.SuccessCount,
	}
	if attacker.Passed && !defender.Passed {
		out.Winner = Attacker
	}
	return out
}
