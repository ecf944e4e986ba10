// Package dice provides the randomness source and die rolling used by the
// rules core.
package dice

import "errors"

const (
	// D20 is the die used by every test pool.
	D20 = 20
	// MaxPoolSize is the largest pool a single test rolls.
	MaxPoolSize = 3
)

// ErrMissingDice indicates a roll request had no dice specified.
var ErrMissingDice = errors.New("at least one die must be provided")

// ErrInvalidPoolSize indicates a d20 pool outside 1..3 dice.
var ErrInvalidPoolSize = errors.New("dice pool must have between 1 and 3 dice")

// ErrInvalidFace indicates a forced die face outside 1..20.
var ErrInvalidFace = errors.New("die faces must be between 1 and 20")
