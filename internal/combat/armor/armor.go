// Package armor converts an incoming wound severity and piercing value into
// the severity left after the armor worn at the hit location.
package armor

import (
	"errors"
	"math"

	"github.com/louisbranch/dicecore/internal/core/wound"
)

// ErrInvalidWear indicates a negative amount of armor wear.
var ErrInvalidWear = errors.New("armor wear must be non-negative")

// Piece is one item of armor. Damage is the wear accumulated per location.
type Piece struct {
	Name     string                     `json:"name"`
	Equipped bool                       `json:"equipped"`
	Ratings  map[wound.Location]float64 `json:"ratings"`
	Damage   map[wound.Location]float64 `json:"damage,omitempty"`
}

// EffectiveRating is the rating at loc less its wear, never below zero.
func (p Piece) EffectiveRating(loc wound.Location) float64 {
	return math.Max(0, p.Ratings[loc]-p.Damage[loc])
}

// Contribution is one piece's share of the armor at a location.
type Contribution struct {
	Name      string  `json:"name"`
	Rating    float64 `json:"rating"`
	Damage    float64 `json:"damage"`
	Effective float64 `json:"effective"`
}

// Detail is the replayable breakdown of one reduction.
type Detail struct {
	Location     wound.Location `json:"location"`
	TotalArmor   float64        `json:"total_armor"`
	Piercing     float64        `json:"piercing"`
	RawReduction float64        `json:"raw_reduction"`
	Reduction    int            `json:"reduction"`
	Original     wound.Severity `json:"original"`
	Reduced      wound.Severity `json:"reduced"`
	// Negated is set when the armor stopped the wound entirely.
	Negated       bool           `json:"negated"`
	Contributions []Contribution `json:"contributions"`
}

// Reduce applies the equipped pieces at loc to a wound. It never modifies
// the pieces.
func Reduce(pieces []Piece, loc wound.Location, severity wound.Severity, piercing float64) Detail {
	d := Detail{Location: loc, Piercing: piercing, Original: severity}
	for _, p := range pieces {
		if !p.Equipped {
			continue
		}
		if _, ok := p.Ratings[loc]; !ok {
			continue
		}
		eff := p.EffectiveRating(loc)
		d.TotalArmor += eff
		d.Contributions = append(d.Contributions, Contribution{
			Name:      p.Name,
			Rating:    p.Ratings[loc],
			Damage:    p.Damage[loc],
			Effective: eff,
		})
	}
	d.RawReduction = d.TotalArmor - piercing
	d.Reduction = Rounded(d.RawReduction)
	d.Reduced = wound.FromPoints(severity.Points() - d.Reduction)
	d.Negated = severity != wound.None && d.Reduced == wound.None
	return d
}

// Rounded turns a raw reduction into whole damage points. Values of one or
// more round half up, any positive fraction below one counts as one, and
// zero or less is zero.
func Rounded(raw float64) int {
	switch {
	case raw >= 1:
		whole := math.Floor(raw)
		if raw-whole >= 0.5 {
			whole++
		}
		return int(whole)
	case raw > 0:
		return 1
	default:
		return 0
	}
}

// Wear returns a copy of p with n more wear at loc, capped at the rating.
func Wear(p Piece, loc wound.Location, n float64) (Piece, error) {
	if n < 0 {
		return Piece{}, ErrInvalidWear
	}
	out := Piece{
		Name:     p.Name,
		Equipped: p.Equipped,
		Ratings:  copyMap(p.Ratings),
		Damage:   copyMap(p.Damage),
	}
	if out.Damage == nil {
		out.Damage = map[wound.Location]float64{}
	}
	out.Damage[loc] = math.Min(out.Damage[loc]+n, out.Ratings[loc])
	return out, nil
}

func copyMap(m map[wound.Location]float64) map[wound.Location]float64 {
	if m == nil {
		return nil
	}
	out := make(map[wound.Location]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
