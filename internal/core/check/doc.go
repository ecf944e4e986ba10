// Package check evaluates 3d20 roll-under tests.
//
// A Closed test needs at least two individually successful dice; skill
// points are spent to lower dice toward the target, cheapest first. An Open
// test drops the worst die and measures the surplus between the target and
// the worse of the two survivors.
//
// Every evaluation is pure: it consumes already rolled faces and returns a
// fresh Outcome.
package check
