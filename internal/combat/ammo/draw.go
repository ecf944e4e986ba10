package ammo

import (
	"fmt"

	"github.com/louisbranch/dicecore/internal/core/wound"
)

// Defaults are the weapon values a round inherits when its entry does not
// override them.
type Defaults struct {
	Damage   wound.Severity
	Piercing float64
	Jamming  int
}

// Bullet is one round as it leaves the weapon.
type Bullet struct {
	Name     string         `json:"name"`
	Damage   wound.Severity `json:"damage"`
	Piercing float64        `json:"piercing"`
	// Jamming is the jam threshold for this round; zero never jams.
	Jamming      int          `json:"jamming"`
	Pellets      bool         `json:"pellets"`
	PelletCount  int          `json:"pellet_count,omitempty"`
	PelletRanges []PelletBand `json:"pellet_ranges,omitempty"`
}

// PelletDamage returns the per-pellet damage at distance: the band with the
// smallest MaxRange that still covers distance, else the farthest band. Bands
// may be listed in any order. Without a table the round's own damage applies.
func (b Bullet) PelletDamage(distance float64) wound.Severity {
	if len(b.PelletRanges) == 0 {
		return b.Damage
	}
	covering, farthest := -1, 0
	for i, band := range b.PelletRanges {
		if band.MaxRange > b.PelletRanges[farthest].MaxRange {
			farthest = i
		}
		if distance > band.MaxRange {
			continue
		}
		if covering < 0 || band.MaxRange < b.PelletRanges[covering].MaxRange {
			covering = i
		}
	}
	if covering < 0 {
		return b.PelletRanges[farthest].Damage
	}
	return b.PelletRanges[covering].Damage
}

func resolveBullet(e Entry, d Defaults) Bullet {
	b := Bullet{
		Name:     e.Name,
		Damage:   d.Damage,
		Piercing: d.Piercing,
		Jamming:  d.Jamming,
	}
	o := e.Overrides
	if o.Damage != nil {
		b.Damage = *o.Damage
	}
	if o.Piercing != nil {
		b.Piercing = *o.Piercing
	}
	if o.Jamming != nil {
		b.Jamming = *o.Jamming
	}
	if o.PelletCount != nil && *o.PelletCount > 0 {
		b.Pellets = true
		b.PelletCount = *o.PelletCount
		b.PelletRanges = o.clone().PelletRanges
	}
	return b
}

// Draw is the pure plan of a burst drawn from a stack. Remaining is what the
// stack holds once the draw is committed.
type Draw struct {
	Bullets   []Bullet `json:"bullets"`
	Requested int      `json:"requested"`
	Fired     int      `json:"fired"`
	Shortfall int      `json:"shortfall"`
	Remaining Stack    `json:"remaining"`
}

// Plan draws up to n rounds from the top of the stack without changing it.
// When the stack holds fewer than n rounds the draw is reduced and the
// difference reported as Shortfall.
func (s Stack) Plan(n int, defaults Defaults) (Draw, error) {
	if n < 0 {
		return Draw{}, fmt.Errorf("%w: %d", ErrInvalidDraw, n)
	}
	remaining := s.Normalize()
	draw := Draw{Requested: n}
	for draw.Fired < n && len(remaining.Entries) > 0 {
		top := len(remaining.Entries) - 1
		entry := remaining.Entries[top]
		draw.Bullets = append(draw.Bullets, resolveBullet(entry, defaults))
		draw.Fired++
		if entry.Quantity == 1 {
			remaining.Entries = remaining.Entries[:top]
			continue
		}
		remaining.Entries[top].Quantity--
	}
	if len(remaining.Entries) == 0 {
		remaining.Entries = nil
	}
	draw.Shortfall = n - draw.Fired
	draw.Remaining = remaining
	return draw, nil
}

// First returns the first round drawn, which sets the nominal values shown
// for the burst.
func (d Draw) First() (Bullet, bool) {
	if len(d.Bullets) == 0 {
		return Bullet{}, false
	}
	return d.Bullets[0], true
}

// MinJamming returns the lowest non-zero jam threshold among the drawn
// rounds, or zero when none of them can jam.
func (d Draw) MinJamming() int {
	low := 0
	for _, b := range d.Bullets {
		low = LowerJamming(low, b.Jamming)
	}
	return low
}

// LowerJamming combines two jam thresholds where zero means never jams.
func LowerJamming(a, b int) int {
	switch {
	case a <= 0:
		return max(b, 0)
	case b <= 0:
		return a
	default:
		return min(a, b)
	}
}

// Commit returns the stack left after the draw. It is the only way a draw
// changes magazine contents.
func Commit(d Draw) Stack {
	return d.Remaining.Clone()
}
