package engine

import (
	"context"

	"github.com/louisbranch/dicecore/internal/combat/heal"
	"github.com/louisbranch/dicecore/internal/combat/pain"
	"github.com/louisbranch/dicecore/internal/storage"
	"go.opentelemetry.io/otel/attribute"
)

// PainRequest is a batch of wounds a character takes at once. Empty
// Attribute and Skill fall back to PainAttribute and PainSkill.
type PainRequest struct {
	CharacterID string
	Attribute   string
	Skill       string
	Wounds      []pain.Incoming
}

// ResistPain runs one pain test per incoming wound and stores the wounds
// with the penalties the tests chose. Nothing is stored when any wound in
// the batch is invalid.
func (e *Engine) ResistPain(ctx context.Context, req PainRequest) (pain.Batch, error) {
	ctx, span := e.start(ctx, "resist_pain",
		attribute.String("dicecore.character_id", req.CharacterID),
		attribute.Int("dicecore.wounds", len(req.Wounds)),
	)
	defer span.End()

	batch, err := e.resistPain(ctx, req)
	if err != nil {
		return pain.Batch{}, e.fail(span, "resist_pain", err)
	}
	if err := e.apply(ctx, batch.Mutations); err != nil {
		return pain.Batch{}, e.fail(span, "resist_pain", err)
	}

	for _, r := range batch.Results {
		e.logger.Debug().
			Str("action", "resist_pain").
			Str("character_id", req.CharacterID).
			Str("location", string(r.Incoming.Location)).
			Str("severity", r.Incoming.Severity.String()).
			Bool("passed", r.Outcome.Passed).
			Int("penalty", r.Penalty).
			Msg("pain resisted")
	}
	return batch, nil
}

func (e *Engine) resistPain(ctx context.Context, req PainRequest) (pain.Batch, error) {
	c, err := e.character(ctx, req.CharacterID)
	if err != nil {
		return pain.Batch{}, err
	}
	attr, skill, err := e.stats(c, orDefault(req.Attribute, PainAttribute), orDefault(req.Skill, PainSkill))
	if err != nil {
		return pain.Batch{}, err
	}
	return pain.Process(req.Wounds, pain.Resister{CharacterID: c.ID, Attribute: attr, Skill: skill}, e.settings, e.source)
}

// HealRequest is one healing attempt on a stored wound. Empty Attribute and
// Skill fall back to HealingAttribute and HealingSkill.
type HealRequest struct {
	HealerID  string
	WoundID   string
	Attribute string
	Skill     string
	Override  []int
}

// Heal treats a stored wound and writes the new severity, deleting the
// wound once it reaches none. A failed attempt changes nothing.
func (e *Engine) Heal(ctx context.Context, req HealRequest) (heal.Result, error) {
	ctx, span := e.start(ctx, "heal",
		attribute.String("dicecore.character_id", req.HealerID),
		attribute.String("dicecore.wound_id", req.WoundID),
	)
	defer span.End()

	res, err := e.heal(ctx, req)
	if err != nil {
		return heal.Result{}, e.fail(span, "heal", err)
	}
	if res.Mutation != nil {
		if err := e.apply(ctx, []storage.Mutation{res.Mutation}); err != nil {
			return heal.Result{}, e.fail(span, "heal", err)
		}
	}

	span.SetAttributes(
		attribute.Bool("dicecore.passed", res.Outcome.Passed),
		attribute.String("dicecore.after", res.After.String()),
	)
	e.logger.Debug().
		Str("action", "heal").
		Str("healer_id", req.HealerID).
		Str("wound_id", res.WoundID).
		Str("before", res.Before.String()).
		Str("after", res.After.String()).
		Bool("healed", res.Healed).
		Msg("heal attempted")
	return res, nil
}

func (e *Engine) heal(ctx context.Context, req HealRequest) (heal.Result, error) {
	if req.WoundID == "" {
		return heal.Result{}, missingReference("wound", req.WoundID)
	}
	c, err := e.character(ctx, req.HealerID)
	if err != nil {
		return heal.Result{}, err
	}
	attr, skill, err := e.stats(c, orDefault(req.Attribute, HealingAttribute), orDefault(req.Skill, HealingSkill))
	if err != nil {
		return heal.Result{}, err
	}
	w, err := e.store.GetWound(ctx, req.WoundID)
	if err != nil {
		return heal.Result{}, err
	}
	return heal.Attempt(w, heal.Healer{Attribute: attr, Skill: skill}, e.settings, e.source, req.Override)
}
