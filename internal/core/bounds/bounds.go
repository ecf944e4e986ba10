// Package bounds holds small generic clamping helpers shared by the
// resolvers.
package bounds

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AtLeast returns v, or floor when v is below it.
func AtLeast[T constraints.Ordered](v, floor T) T {
	if v < floor {
		return floor
	}
	return v
}
