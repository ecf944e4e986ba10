package engine

import (
	"context"

	"github.com/louisbranch/dicecore/internal/core/check"
	"github.com/louisbranch/dicecore/internal/core/dice"
	"github.com/louisbranch/dicecore/internal/core/difficulty"
	"go.opentelemetry.io/otel/attribute"
)

// TestRequest is a plain attribute test for one character.
type TestRequest struct {
	CharacterID string
	Attribute   string
	Skill       string
	Difficulty  difficulty.Key
	// Modifier is a percentage added to the difficulty's base percent.
	Modifier int
	Mode     check.Mode
	Override []int
}

// TestResult is a resolved test and its replayable steps.
type TestResult struct {
	CharacterID string              `json:"character_id"`
	Tier        difficulty.Tier     `json:"tier"`
	Target      int                 `json:"target"`
	Outcome     check.Outcome       `json:"outcome"`
	Steps       []check.ExplainStep `json:"steps"`
}

// Test rolls a three-die test for a character. With a zero Modifier the
// named difficulty is used as is; otherwise the tier is looked up from the
// difficulty's base percent plus the modifier.
func (e *Engine) Test(ctx context.Context, req TestRequest) (TestResult, error) {
	ctx, span := e.start(ctx, "test", attribute.String("dicecore.character_id", req.CharacterID))
	defer span.End()

	c, err := e.character(ctx, req.CharacterID)
	if err != nil {
		return TestResult{}, e.fail(span, "test", err)
	}
	attr, skill, err := e.stats(c, req.Attribute, req.Skill)
	if err != nil {
		return TestResult{}, e.fail(span, "test", err)
	}
	tier, err := e.tier(req.Difficulty, req.Modifier)
	if err != nil {
		return TestResult{}, e.fail(span, "test", err)
	}
	outcome, err := e.roll(req.Mode, check.Target(attr, tier), skill, req.Override)
	if err != nil {
		return TestResult{}, e.fail(span, "test", err)
	}

	span.SetAttributes(
		attribute.String("dicecore.tier", string(tier.Key)),
		attribute.Bool("dicecore.passed", outcome.Passed),
		attribute.Int("dicecore.points", outcome.Points()),
	)
	e.logger.Debug().
		Str("action", "test").
		Str("character_id", c.ID).
		Str("tier", string(tier.Key)).
		Ints("dice", outcome.Originals()).
		Bool("passed", outcome.Passed).
		Msg("test resolved")

	return TestResult{
		CharacterID: c.ID,
		Tier:        tier,
		Target:      outcome.Target,
		Outcome:     outcome,
		Steps:       check.Explain(outcome),
	}, nil
}

func (e *Engine) tier(key difficulty.Key, modifier int) (difficulty.Tier, error) {
	table := e.settings.Table
	if key == "" {
		key = difficulty.Average
	}
	if modifier == 0 {
		return table.Lookup(key)
	}
	base, err := table.BasePercent(key)
	if err != nil {
		return difficulty.Tier{}, err
	}
	return table.FromPercent(base + modifier), nil
}

func (e *Engine) roll(mode check.Mode, target, skill int, override []int) (check.Outcome, error) {
	if skill < 0 {
		return check.Outcome{}, check.ErrNegativeSkill
	}
	faces, err := dice.RollPool(e.source, check.PoolSize, override)
	if err != nil {
		return check.Outcome{}, err
	}
	return check.Evaluate(mode, target, skill, faces)
}
