// Package rules holds the read-only tunables every resolver receives as an
// explicit parameter. Nothing in the core reads configuration globally.
package rules

import (
	"errors"
	"fmt"

	"github.com/louisbranch/dicecore/internal/combat/opposed"
	"github.com/louisbranch/dicecore/internal/core/difficulty"
	"github.com/louisbranch/dicecore/internal/core/wound"
)

// ErrInvalidSettings indicates settings that fail validation.
var ErrInvalidSettings = errors.New("invalid rules settings")

// PenaltyPair holds the two pain penalties for a severity. A passed pain
// resistance test selects the lower one.
type PenaltyPair struct {
	Low  int `yaml:"low"`
	High int `yaml:"high"`
}

// Select returns the lower value on pass and the higher on failure,
// regardless of field order.
func (p PenaltyPair) Select(passed bool) int {
	lo, hi := min(p.Low, p.High), max(p.Low, p.High)
	if passed {
		return lo
	}
	return hi
}

// Settings is the configuration-provider object.
type Settings struct {
	Table       difficulty.Table
	OpposedMode opposed.Mode
	// PelletCountLimit caps pellet hits by the shell's physical pellet count.
	PelletCountLimit bool
	// CombatShift enables skill and natural-extreme tier shifts on attacks.
	CombatShift bool
	// PainDifficulty is the intrinsic tier of a pain resistance test.
	PainDifficulty map[wound.Severity]difficulty.Key
	// HealingDifficulty is the tier of a healing test per wound severity.
	HealingDifficulty map[wound.Severity]difficulty.Key
	PainPenalties     map[wound.Severity]PenaltyPair
	// LocationPenalties is keyed by weapon category then hit location, in
	// percent.
	LocationPenalties map[string]map[wound.Location]int
}

// Default returns the standard rules.
func Default() Settings {
	return Settings{
		Table:            difficulty.Default(),
		OpposedMode:      opposed.ModeSuccesses,
		PelletCountLimit: true,
		CombatShift:      false,
		PainDifficulty: map[wound.Severity]difficulty.Key{
			wound.Grazing:  difficulty.Easy,
			wound.Light:    difficulty.Average,
			wound.Heavy:    difficulty.Problematic,
			wound.Critical: difficulty.Hard,
		},
		HealingDifficulty: map[wound.Severity]difficulty.Key{
			wound.Grazing:  difficulty.Average,
			wound.Light:    difficulty.Problematic,
			wound.Heavy:    difficulty.Hard,
			wound.Critical: difficulty.VeryHard,
		},
		PainPenalties: map[wound.Severity]PenaltyPair{
			wound.Grazing:  {Low: 5, High: 10},
			wound.Light:    {Low: 10, High: 30},
			wound.Heavy:    {Low: 30, High: 50},
			wound.Critical: {Low: 50, High: 80},
		},
		LocationPenalties: map[string]map[wound.Location]int{
			"melee": {
				wound.Head: 20, wound.Torso: 0,
				wound.LeftArm: 10, wound.RightArm: 10,
				wound.LeftLeg: 10, wound.RightLeg: 10,
			},
			"ranged": {
				wound.Head: 40, wound.Torso: 0,
				wound.LeftArm: 25, wound.RightArm: 25,
				wound.LeftLeg: 15, wound.RightLeg: 15,
			},
			"thrown": {
				wound.Head: 30, wound.Torso: 0,
				wound.LeftArm: 20, wound.RightArm: 20,
				wound.LeftLeg: 10, wound.RightLeg: 10,
			},
		},
	}
}

// LocationPenalty returns the aimed-location penalty for a weapon category.
// An empty location is an unaimed attack and costs nothing.
func (s Settings) LocationPenalty(category string, loc wound.Location) int {
	if loc == "" {
		return 0
	}
	return s.LocationPenalties[category][loc]
}

// PainTier returns the intrinsic pain resistance tier for a severity.
func (s Settings) PainTier(sev wound.Severity) (difficulty.Tier, error) {
	key, ok := s.PainDifficulty[sev]
	if !ok {
		return difficulty.Tier{}, fmt.Errorf("%w: no pain difficulty for %s", ErrInvalidSettings, sev)
	}
	return s.Table.Lookup(key)
}

// HealingTier returns the healing test tier for a severity.
func (s Settings) HealingTier(sev wound.Severity) (difficulty.Tier, error) {
	key, ok := s.HealingDifficulty[sev]
	if !ok {
		return difficulty.Tier{}, fmt.Errorf("%w: no healing difficulty for %s", ErrInvalidSettings, sev)
	}
	return s.Table.Lookup(key)
}

// PainPenalty returns the pain penalty pair for a severity.
func (s Settings) PainPenalty(sev wound.Severity) (PenaltyPair, error) {
	pair, ok := s.PainPenalties[sev]
	if !ok {
		return PenaltyPair{}, fmt.Errorf("%w: no pain penalties for %s", ErrInvalidSettings, sev)
	}
	return pair, nil
}

// Validate checks the table and that every wound severity has pain and
// healing entries that name known tiers.
func (s Settings) Validate() error {
	if err := s.Table.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	for _, sev := range []wound.Severity{wound.Grazing, wound.Light, wound.Heavy, wound.Critical} {
		if _, err := s.PainTier(sev); err != nil {
			return fmt.Errorf("%w: pain tier: %w", ErrInvalidSettings, err)
		}
		if _, err := s.HealingTier(sev); err != nil {
			return fmt.Errorf("%w: healing tier: %w", ErrInvalidSettings, err)
		}
		if _, err := s.PainPenalty(sev); err != nil {
			return err
		}
	}
	return nil
}
