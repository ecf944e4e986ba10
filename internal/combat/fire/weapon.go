// Package fire resolves a single attack: penalty aggregation, pool sizing,
// jamming, ammunition sequencing and per-bullet hit assignment. Resolution
// produces a Plan; only Commit changes magazine contents.
package fire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/dicecore/internal/combat/ammo"
	"github.com/louisbranch/dicecore/internal/core/wound"
)

var (
	// ErrUnknownCategory indicates an unrecognised weapon category.
	ErrUnknownCategory = errors.New("unknown weapon category")
	// ErrUnknownBurst indicates an unrecognised burst level.
	ErrUnknownBurst = errors.New("unknown burst level")
)

// Category is the weapon class.
type Category int

const (
	Melee Category = iota
	Ranged
	Thrown
)

func (c Category) String() string {
	switch c {
	case Melee:
		return "melee"
	case Ranged:
		return "ranged"
	case Thrown:
		return "thrown"
	default:
		return "unknown"
	}
}

// ParseCategory parses a category name.
func ParseCategory(value string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "melee":
		return Melee, nil
	case "ranged":
		return Ranged, nil
	case "thrown":
		return Thrown, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, value)
	}
}

// MarshalText encodes the category name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a category name.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Burst is the requested fire mode.
type Burst int

const (
	Single Burst = iota
	Short
	Long
	Full
)

var burstNames = [...]string{"single", "short", "long", "full"}

func (b Burst) String() string {
	if b < Single || b > Full {
		return "unknown"
	}
	return burstNames[b]
}

// ParseBurst parses a burst name. An empty value is a single shot.
func ParseBurst(value string) (Burst, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Single, nil
	}
	for i, name := range burstNames {
		if v == name {
			return Burst(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownBurst, value)
}

// MarshalText encodes the burst name.
func (b Burst) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText decodes a burst name.
func (b *Burst) UnmarshalText(text []byte) error {
	parsed, err := ParseBurst(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Rounds returns how many rounds the burst fires at the given rate of fire:
// single 1, short rof, long rof×3, full rof×6.
func (b Burst) Rounds(fireRate int) int {
	rof := max(fireRate, 1)
	switch b {
	case Short:
		return rof
	case Long:
		return rof * 3
	case Full:
		return rof * 6
	default:
		return 1
	}
}

// Weapon is the weapon profile an attack is resolved with.
type Weapon struct {
	Name     string         `json:"name"`
	Category Category       `json:"category"`
	Damage   wound.Severity `json:"damage"`
	Piercing float64        `json:"piercing"`
	// Jamming is the lowest unmodified roll that jams; zero never jams.
	Jamming  int `json:"jamming"`
	FireRate int `json:"fire_rate"`
	// AttackBonus and DefenseBonus apply to melee tests only.
	AttackBonus      int  `json:"attack_bonus"`
	DefenseBonus     int  `json:"defense_bonus"`
	RequiresMagazine bool `json:"requires_magazine"`
}

func (w Weapon) defaults() ammo.Defaults {
	return ammo.Defaults{Damage: w.Damage, Piercing: w.Piercing, Jamming: w.Jamming}
}

// ApplyBonus raises a severity by an opposed damage tier bonus.
func ApplyBonus(sev wound.Severity, bonus int) wound.Severity {
	if bonus <= 0 {
		return sev
	}
	return sev.Raise(bonus)
}
