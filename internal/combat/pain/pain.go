// Package pain runs the pain resistance test for each incoming wound and
// decides the penalty the wound is stored with.
package pain

import (
	"errors"
	"fmt"

	"github.com/louisbranch/dicecore/internal/core/check"
	"github.com/louisbranch/dicecore/internal/core/dice"
	"github.com/louisbranch/dicecore/internal/core/difficulty"
	"github.com/louisbranch/dicecore/internal/core/wound"
	"github.com/louisbranch/dicecore/internal/rules"
	"github.com/louisbranch/dicecore/internal/storage"
)

// ErrNoWound indicates an incoming wound with no severity.
var ErrNoWound = errors.New("incoming wound has no severity")

// Incoming is one wound waiting for its pain test.
type Incoming struct {
	Location wound.Location
	Severity wound.Severity
	// Override forces the three faces of this wound's test (debug roll).
	Override []int
}

// Resister is the character taking the wounds. Attribute and Skill are the
// willpower and pain resistance values.
type Resister struct {
	CharacterID string
	Attribute   int
	Skill       int
}

// Result is the pain test of one wound.
type Result struct {
	Incoming Incoming        `json:"incoming"`
	Tier     difficulty.Tier `json:"tier"`
	Outcome  check.Outcome   `json:"outcome"`
	Penalty  int             `json:"penalty"`
}

// Batch is the outcome of a whole batch and the wounds to create.
type Batch struct {
	Results   []Result           `json:"results"`
	Mutations []storage.Mutation `json:"-"`
}

// Process rolls one fresh Closed test per wound. Each test ignores existing
// wound and armor penalties and uses only the severity's own tier. A pass
// stores the lower penalty for the severity, a failure the higher one.
// The batch either fully resolves or returns an error before any mutation.
func Process(batch []Incoming, r Resister, settings rules.Settings, src dice.Source) (Batch, error) {
	if r.Skill < 0 {
		return Batch{}, check.ErrNegativeSkill
	}
	for i, in := range batch {
		if in.Severity <= wound.None {
			return Batch{}, fmt.Errorf("wound %d: %w", i, ErrNoWound)
		}
		if _, err := wound.ParseLocation(string(in.Location)); err != nil {
			return Batch{}, fmt.Errorf("wound %d: %w", i, err)
		}
	}

	out := Batch{Results: make([]Result, 0, len(batch))}
	for i, in := range batch {
		res, err := resist(in, r, settings, src)
		if err != nil {
			return Batch{}, fmt.Errorf("wound %d: %w", i, err)
		}
		out.Results = append(out.Results, res)
		out.Mutations = append(out.Mutations, storage.CreateWound{Wound: storage.WoundRecord{
			CharacterID: r.CharacterID,
			Location:    in.Location,
			Severity:    in.Severity,
			Penalty:     res.Penalty,
		}})
	}
	return out, nil
}

func resist(in Incoming, r Resister, settings rules.Settings, src dice.Source) (Result, error) {
	tier, err := settings.PainTier(in.Severity)
	if err != nil {
		return Result{}, err
	}
	pair, err := settings.PainPenalty(in.Severity)
	if err != nil {
		return Result{}, err
	}
	faces, err := dice.RollPool(src, check.PoolSize, in.Override)
	if err != nil {
		return Result{}, err
	}
	outcome, err := check.EvaluateClosed(check.Target(r.Attribute, tier), r.Skill, faces)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Incoming: in,
		Tier:     tier,
		Outcome:  outcome,
		Penalty:  pair.Select(outcome.Passed),
	}, nil
}
