// Package ammo models a LIFO ammunition stack and the pure draw plans fired
// from it. Stacks are values: every operation returns a new stack and leaves
// its receiver untouched.
package ammo

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/louisbranch/dicecore/internal/core/wound"
)

var (
	// ErrInvalidQuantity indicates a load of zero or fewer rounds.
	ErrInvalidQuantity = errors.New("ammunition quantity must be positive")
	// ErrMissingName indicates an entry without a name.
	ErrMissingName = errors.New("ammunition name is required")
	// ErrInvalidDraw indicates a negative draw request.
	ErrInvalidDraw = errors.New("draw count must be non-negative")
)

// PelletBand is one range band of a pellet table. A shot at a distance up to
// MaxRange deals Damage per pellet.
type PelletBand struct {
	MaxRange float64        `json:"max_range" yaml:"maxRange"`
	Damage   wound.Severity `json:"damage" yaml:"damage"`
}

// Overrides replace the weapon's defaults for rounds of one entry. Nil fields
// inherit from the weapon.
type Overrides struct {
	Damage       *wound.Severity `json:"damage,omitempty"`
	Piercing     *float64        `json:"piercing,omitempty"`
	Jamming      *int            `json:"jamming,omitempty"`
	PelletCount  *int            `json:"pellet_count,omitempty"`
	PelletRanges []PelletBand    `json:"pellet_ranges,omitempty"`
}

// Equal reports whether two override profiles are identical.
func (o Overrides) Equal(other Overrides) bool {
	return equalPtr(o.Damage, other.Damage) &&
		equalPtr(o.Piercing, other.Piercing) &&
		equalPtr(o.Jamming, other.Jamming) &&
		equalPtr(o.PelletCount, other.PelletCount) &&
		slices.Equal(o.PelletRanges, other.PelletRanges)
}

func (o Overrides) clone() Overrides {
	o.PelletRanges = slices.Clone(o.PelletRanges)
	return o
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Entry is a run of identical rounds.
type Entry struct {
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	Overrides Overrides `json:"overrides"`
}

// mergeable reports whether two entries describe the same round.
func (e Entry) mergeable(other Entry) bool {
	return strings.EqualFold(e.Name, other.Name) && e.Overrides.Equal(other.Overrides)
}

// Stack is a magazine's contents ordered bottom to top. The last entry fires
// first.
type Stack struct {
	Entries []Entry `json:"entries"`
}

// Clone returns a deep copy.
func (s Stack) Clone() Stack {
	if s.Entries == nil {
		return Stack{}
	}
	entries := make([]Entry, len(s.Entries))
	for i, e := range s.Entries {
		e.Overrides = e.Overrides.clone()
		entries[i] = e
	}
	return Stack{Entries: entries}
}

// Equal reports whether both stacks hold the same rounds in the same order
// once normalized.
func (s Stack) Equal(other Stack) bool {
	a, b := s.Normalize().Entries, other.Normalize().Entries
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Quantity != b[i].Quantity || !a[i].mergeable(b[i]) {
			return false
		}
	}
	return true
}

// Total returns the number of rounds in the stack.
func (s Stack) Total() int {
	total := 0
	for _, e := range s.Entries {
		if e.Quantity > 0 {
			total += e.Quantity
		}
	}
	return total
}

// Empty reports whether no rounds remain.
func (s Stack) Empty() bool {
	return s.Total() == 0
}

// Load pushes entry on top, merging it into the current top entry when both
// describe the same round.
func (s Stack) Load(entry Entry) (Stack, error) {
	entry.Name = strings.TrimSpace(entry.Name)
	if entry.Name == "" {
		return Stack{}, ErrMissingName
	}
	if entry.Quantity <= 0 {
		return Stack{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, entry.Quantity)
	}
	next := s.Normalize()
	entry.Overrides = entry.Overrides.clone()
	if n := len(next.Entries); n > 0 && next.Entries[n-1].mergeable(entry) {
		next.Entries[n-1].Quantity += entry.Quantity
		return next, nil
	}
	next.Entries = append(next.Entries, entry)
	return next, nil
}

// Normalize drops empty entries and merges adjacent entries that describe the
// same round.
func (s Stack) Normalize() Stack {
	out := Stack{}
	for _, e := range s.Clone().Entries {
		if e.Quantity <= 0 {
			continue
		}
		if n := len(out.Entries); n > 0 && out.Entries[n-1].mergeable(e) {
			out.Entries[n-1].Quantity += e.Quantity
			continue
		}
		out.Entries = append(out.Entries, e)
	}
	return out
}
