// Package heal resolves healing attempts on stored wounds.
package heal

import (
	"errors"
	"strings"

	"github.com/louisbranch/dicecore/internal/core/check"
	"github.com/louisbranch/dicecore/internal/core/dice"
	"github.com/louisbranch/dicecore/internal/core/difficulty"
	"github.com/louisbranch/dicecore/internal/core/wound"
	"github.com/louisbranch/dicecore/internal/rules"
	"github.com/louisbranch/dicecore/internal/storage"
)

var (
	// ErrMissingWound indicates a wound record without an id.
	ErrMissingWound = errors.New("wound id is required")
	// ErrAlreadyHealed indicates a wound with no severity left.
	ErrAlreadyHealed = errors.New("wound is already healed")
)

// Healer is the character treating the wound.
type Healer struct {
	Attribute int
	Skill     int
}

// Result is one healing attempt. Mutation is nil when the attempt failed.
type Result struct {
	WoundID  string           `json:"wound_id"`
	Tier     difficulty.Tier  `json:"tier"`
	Outcome  check.Outcome    `json:"outcome"`
	Before   wound.Severity   `json:"before"`
	After    wound.Severity   `json:"after"`
	Healed   bool             `json:"healed"`
	Mutation storage.Mutation `json:"-"`
}

// Attempt rolls a Closed test against the healing tier for the wound's
// severity. A pass lowers the severity one step, two on a critical success.
// A wound reduced to None is deleted; otherwise it keeps the lower pain
// penalty of its new severity.
func Attempt(w storage.WoundRecord, h Healer, settings rules.Settings, src dice.Source, override []int) (Result, error) {
	if strings.TrimSpace(w.ID) == "" {
		return Result{}, ErrMissingWound
	}
	if w.Severity <= wound.None {
		return Result{}, ErrAlreadyHealed
	}
	if h.Skill < 0 {
		return Result{}, check.ErrNegativeSkill
	}
	tier, err := settings.HealingTier(w.Severity)
	if err != nil {
		return Result{}, err
	}
	faces, err := dice.RollPool(src, check.PoolSize, override)
	if err != nil {
		return Result{}, err
	}
	outcome, err := check.EvaluateClosed(check.Target(h.Attribute, tier), h.Skill, faces)
	if err != nil {
		return Result{}, err
	}

	res := Result{WoundID: w.ID, Tier: tier, Outcome: outcome, Before: w.Severity, After: w.Severity}
	if !outcome.Passed {
		return res, nil
	}
	steps := 1
	if outcome.CritSuccess {
		steps = 2
	}
	res.After = w.Severity.Lower(steps)
	res.Healed = res.After == wound.None
	if res.Healed {
		res.Mutation = storage.DeleteWound{WoundID: w.ID}
		return res, nil
	}
	pair, err := settings.PainPenalty(res.After)
	if err != nil {
		return Result{}, err
	}
	res.Mutation = storage.UpdateWound{WoundID: w.ID, Severity: res.After, Penalty: pair.Select(true)}
	return res, nil
}
