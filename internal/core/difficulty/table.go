// Package difficulty maps percentage penalties onto the nine ordered
// difficulty tiers and shifts tiers along that ordering.
package difficulty

import (
	"errors"
	"fmt"
)

// Key identifies a difficulty tier.
type Key string

const (
	Easy           Key = "easy"
	Average        Key = "average"
	Problematic    Key = "problematic"
	Hard           Key = "hard"
	VeryHard       Key = "veryHard"
	DamnHard       Key = "damnHard"
	Luck           Key = "luck"
	Masterful      Key = "masterful"
	Grandmasterful Key = "grandmasterful"
)

// TierCount is the number of tiers in every table.
const TierCount = 9

var (
	// ErrUnknownTier indicates a tier key that is not in the table.
	ErrUnknownTier = errors.New("unknown difficulty tier")
	// ErrInvalidTable indicates a table that is not nine ordered, disjoint tiers.
	ErrInvalidTable = errors.New("difficulty table must have nine ordered tiers")
)

// Tier is one difficulty band. Modifier is added to the tested attribute to
// obtain the success threshold.
type Tier struct {
	Key      Key `yaml:"key"`
	Modifier int `yaml:"modifier"`
	Min      int `yaml:"min"`
	Max      int `yaml:"max"`
}

// Contains reports whether percent falls inside [Min, Max].
func (t Tier) Contains(percent int) bool {
	return percent >= t.Min && percent <= t.Max
}

// Table holds the tiers ordered from easiest to hardest.
type Table struct {
	Tiers []Tier `yaml:"tiers"`
}

// Default returns the standard nine-tier table.
func Default() Table {
	return Table{Tiers: []Tier{
		{Key: Easy, Modifier: 2, Min: 0, Max: 10},
		{Key: Average, Modifier: 0, Min: 11, Max: 30},
		{Key: Problematic, Modifier: -2, Min: 31, Max: 60},
		{Key: Hard, Modifier: -5, Min: 61, Max: 90},
		{Key: VeryHard, Modifier: -8, Min: 91, Max: 120},
		{Key: DamnHard, Modifier: -11, Min: 121, Max: 160},
		{Key: Luck, Modifier: -15, Min: 161, Max: 200},
		{Key: Masterful, Modifier: -20, Min: 201, Max: 240},
		{Key: Grandmasterful, Modifier: -24, Min: 241, Max: 300},
	}}
}

// Validate checks the table has nine tiers with ascending, disjoint ranges
// and unique keys.
func (t Table) Validate() error {
	if len(t.Tiers) != TierCount {
		return fmt.Errorf("%w: got %d tiers", ErrInvalidTable, len(t.Tiers))
	}
	seen := make(map[Key]struct{}, len(t.Tiers))
	for i, tier := range t.Tiers {
		if tier.Key == "" {
			return fmt.Errorf("%w: tier %d has no key", ErrInvalidTable, i)
		}
		if _, ok := seen[tier.Key]; ok {
			return fmt.Errorf("%w: duplicate key %q", ErrInvalidTable, tier.Key)
		}
		seen[tier.Key] = struct{}{}
		if tier.Min > tier.Max {
			return fmt.Errorf("%w: tier %q min %d above max %d", ErrInvalidTable, tier.Key, tier.Min, tier.Max)
		}
		if i > 0 && tier.Min <= t.Tiers[i-1].Max {
			return fmt.Errorf("%w: tier %q overlaps %q", ErrInvalidTable, tier.Key, t.Tiers[i-1].Key)
		}
	}
	return nil
}

// Easiest returns the first tier.
func (t Table) Easiest() Tier {
	return t.Tiers[0]
}

// Hardest returns the last tier.
func (t Table) Hardest() Tier {
	return t.Tiers[len(t.Tiers)-1]
}

// Lookup returns the tier with the given key.
func (t Table) Lookup(key Key) (Tier, error) {
	idx := t.index(key)
	if idx < 0 {
		return Tier{}, fmt.Errorf("%w: %q", ErrUnknownTier, key)
	}
	return t.Tiers[idx], nil
}

// BasePercent returns the percentage a chosen base difficulty contributes to
// the penalty sum. It is the tier minimum, so FromPercent(BasePercent(k))
// returns k again.
func (t Table) BasePercent(key Key) (int, error) {
	tier, err := t.Lookup(key)
	if err != nil {
		return 0, err
	}
	return tier.Min, nil
}

// FromPercent returns the tier containing percent. Values below the first
// tier clamp to the easiest tier and values above the last (or falling in a
// gap between tiers) clamp to the nearest harder tier.
func (t Table) FromPercent(percent int) Tier {
	if percent < t.Easiest().Min {
		return t.Easiest()
	}
	for _, tier := range t.Tiers {
		if tier.Contains(percent) || percent < tier.Min {
			return tier
		}
	}
	return t.Hardest()
}

// Shift moves shift positions from base along the ordering, clamped to the
// table bounds. Positive shifts are harder.
func (t Table) Shift(base Key, shift int) (Tier, error) {
	idx := t.index(base)
	if idx < 0 {
		return Tier{}, fmt.Errorf("%w: %q", ErrUnknownTier, base)
	}
	idx += shift
	if idx < 0 {
		idx = 0
	}
	if idx >= len(t.Tiers) {
		idx = len(t.Tiers) - 1
	}
	return t.Tiers[idx], nil
}

func (t Table) index(key Key) int {
	for i, tier := range t.Tiers {
		if tier.Key == key {
			return i
		}
	}
	return -1
}
