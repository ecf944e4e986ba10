package check

import (
	"fmt"
	"math"
	"sort"

	"github.com/louisbranch/dicecore/internal/core/bounds"
)

const unreachable = math.MaxInt

// Evaluate dispatches to the evaluator for mode.
func Evaluate(mode Mode, target, skill int, dice []int) (Outcome, error) {
	switch mode {
	case ModeClosed:
		return EvaluateClosed(target, skill, dice)
	case ModeOpen:
		return EvaluateOpen(target, skill, dice)
	default:
		return Outcome{}, fmt.Errorf("%w: %d", ErrUnknownMode, int(mode))
	}
}

// EvaluateClosed scores a Closed test.
//
// Each die costs max(0, face-target) skill points to succeed; a natural 20
// never succeeds. Successes are bought cheapest first, a die that cannot be
// afforded absorbs what is left, and any surplus lowers already successful
// dice as evenly as possible without going below 1.
func EvaluateClosed(target, skill int, dice []int) (Outcome, error) {
	if err := validatePool(skill, dice); err != nil {
		return Outcome{}, err
	}

	results := newResults(dice)
	costs := make([]int, len(dice))
	order := make([]int, len(dice))
	for i, face := range dice {
		order[i] = i
		if face == NaturalFailure || target < 1 {
			costs[i] = unreachable
			continue
		}
		costs[i] = bounds.AtLeast(face-target, 0)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return costs[order[a]] < costs[order[b]]
	})

	remaining := skill
	for _, i := range order {
		cost := costs[i]
		if cost == unreachable {
			continue
		}
		if cost <= remaining {
			results[i].Modified -= cost
			results[i].Success = true
			remaining -= cost
			continue
		}
		spend := min(remaining, results[i].Modified-1)
		results[i].Modified -= spend
		remaining -= spend
		break
	}

	remaining = spreadSurplus(results, remaining)

	successes := 0
	natural20 := false
	for i := range results {
		if results[i].Original == NaturalFailure {
			natural20 = true
		}
		results[i].Success = results[i].Modified <= target && results[i].Original != NaturalFailure
		if results[i].Success {
			successes++
		}
	}

	return Outcome{
		Mode:         ModeClosed,
		Target:       target,
		SkillBudget:  skill,
		SkillSpent:   skill - remaining,
		SuccessCount: successes,
		Dice:         results,
		Passed:       successes >= 2,
		CritSuccess:  successes == PoolSize,
		CritFailure:  successes == 0 && natural20,
	}, nil
}

// spreadSurplus lowers successful, non-natural-1 dice one point at a time,
// always taking the currently highest die, and returns the unspent budget.
func spreadSurplus(results []DieResult, remaining int) int {
	for remaining > 0 {
		pick := -1
		for i, r := range results {
			if !r.Success || r.Original == 1 || r.Modified <= 1 {
				continue
			}
			if pick < 0 || r.Modified > results[pick].Modified {
				pick = i
			}
		}
		if pick < 0 {
			return remaining
		}
		results[pick].Modified--
		remaining--
	}
	return remaining
}

// EvaluateOpen scores an Open test.
//
// The highest face is ignored. Skill first closes the gap between the two
// surviving dice, then lowers them alternately, never below 1. Advantage is
// target minus the worse surviving die.
func EvaluateOpen(target, skill int, dice []int) (Outcome, error) {
	if err := validatePool(skill, dice); err != nil {
		return Outcome{}, err
	}

	results := newResults(dice)
	worst := 0
	for i, face := range dice {
		if face > dice[worst] {
			worst = i
		}
	}
	results[worst].Ignored = true

	kept := make([]int, 0, 2)
	for i := range results {
		if i != worst {
			kept = append(kept, i)
		}
	}
	hi, lo := kept[0], kept[1]
	if results[lo].Original > results[hi].Original {
		hi, lo = lo, hi
	}

	remaining := skill
	gap := results[hi].Modified - results[lo].Modified
	spend := min(remaining, gap)
	results[hi].Modified -= spend
	remaining -= spend

	turn := []int{hi, lo}
	for t := 0; remaining > 0 && (results[hi].Modified > 1 || results[lo].Modified > 1); t++ {
		i := turn[t%2]
		if results[i].Modified > 1 {
			results[i].Modified--
			remaining--
		}
	}

	successes := 0
	for _, i := range kept {
		results[i].Success = results[i].Modified <= target
		if results[i].Success {
			successes++
		}
	}
	advantage := target - max(results[hi].Modified, results[lo].Modified)

	return Outcome{
		Mode:         ModeOpen,
		Target:       target,
		SkillBudget:  skill,
		SkillSpent:   skill - remaining,
		SuccessCount: successes,
		Advantage:    advantage,
		Dice:         results,
		Passed:       advantage >= 0,
		CritSuccess:  results[hi].Original == 1 && results[lo].Original == 1,
		CritFailure:  results[hi].Original == NaturalFailure,
	}, nil
}

// EvaluateAimed scores a ranged or thrown pool of one to three dice where
// only the lowest face is active. Skill lowers that die to at least 1. A
// Closed success also requires the face not to be a natural 20; Open
// advantage is target minus the modified die.
func EvaluateAimed(mode Mode, target, skill int, dice []int) (Outcome, error) {
	if skill < 0 {
		return Outcome{}, ErrNegativeSkill
	}
	if len(dice) < 1 || len(dice) > PoolSize {
		return Outcome{}, ErrInvalidSingleDice
	}
	for _, face := range dice {
		if face < 1 || face > 20 {
			return Outcome{}, ErrInvalidSingleDice
		}
	}
	if mode != ModeClosed && mode != ModeOpen {
		return Outcome{}, fmt.Errorf("%w: %d", ErrUnknownMode, int(mode))
	}

	results := newResults(dice)
	active := 0
	for i, face := range dice {
		if face < dice[active] {
			active = i
		}
	}
	for i := range results {
		results[i].Ignored = i != active
	}

	lowest := dice[active]
	modified := bounds.AtLeast(lowest-skill, 1)
	results[active].Modified = modified
	advantage := target - modified

	success := modified <= target
	if mode == ModeClosed {
		success = success && lowest != NaturalFailure
	}
	results[active].Success = success

	passed := success
	if mode == ModeOpen {
		passed = advantage >= 0
	}
	successes := 0
	if success {
		successes = 1
	}

	return Outcome{
		Mode:         mode,
		Target:       target,
		SkillBudget:  skill,
		SkillSpent:   lowest - modified,
		SuccessCount: successes,
		Advantage:    advantage,
		Dice:         results,
		Passed:       passed,
		CritSuccess:  lowest == 1,
		CritFailure:  lowest == NaturalFailure,
	}, nil
}
