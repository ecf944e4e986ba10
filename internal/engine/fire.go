package engine

import (
	"context"
	"fmt"

	"github.com/louisbranch/dicecore/internal/combat/ammo"
	"github.com/louisbranch/dicecore/internal/combat/fire"
	"github.com/louisbranch/dicecore/internal/core/check"
	"github.com/louisbranch/dicecore/internal/core/difficulty"
	"github.com/louisbranch/dicecore/internal/core/wound"
	apperrors "github.com/louisbranch/dicecore/internal/platform/errors"
	"github.com/louisbranch/dicecore/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// FireRequest is an attack with a stored weapon.
type FireRequest struct {
	CharacterID string
	WeaponID    string
	Attribute   string
	Skill       string

	BaseDifficulty difficulty.Key
	ManualModifier int
	// ArmorPenalty is the attacker's armor encumbrance in percent.
	ArmorPenalty    int
	UseArmorPenalty bool
	// UseWoundPenalty adds the stored penalties of the attacker's wounds.
	UseWoundPenalty bool

	Location wound.Location
	Aiming   int
	Burst    fire.Burst
	Mode     check.Mode
	Distance float64
	Override []int
}

// FirePlan is a planned attack. Magazine is the magazine contents the plan
// was computed from; a commit is refused when the stored magazine no longer
// matches it.
type FirePlan struct {
	CharacterID string      `json:"character_id"`
	WeaponID    string      `json:"weapon_id"`
	MagazineID  string      `json:"magazine_id,omitempty"`
	Magazine    *ammo.Stack `json:"magazine,omitempty"`
	Plan        fire.Plan   `json:"plan"`
	Committed   bool        `json:"committed"`
	// Remaining is the magazine after a commit.
	Remaining *ammo.Stack `json:"remaining,omitempty"`
}

// PlanFire resolves an attack without touching the magazine.
func (e *Engine) PlanFire(ctx context.Context, req FireRequest) (FirePlan, error) {
	ctx, span := e.startFire(ctx, "plan_fire", req)
	defer span.End()

	plan, err := e.planFire(ctx, req)
	if err != nil {
		return FirePlan{}, e.fail(span, "plan_fire", err)
	}
	e.traceFire(span, "plan_fire", plan)
	return plan, nil
}

// CommitFire writes a planned draw to the stored magazine. Plans that
// jammed or drew nothing return NOTHING_TO_COMMIT; a magazine changed since
// planning returns MAGAZINE_CHANGED.
func (e *Engine) CommitFire(ctx context.Context, plan FirePlan) (FirePlan, error) {
	ctx, span := e.start(ctx, "commit_fire",
		attribute.String("dicecore.character_id", plan.CharacterID),
		attribute.String("dicecore.weapon_id", plan.WeaponID),
	)
	defer span.End()

	unlock := e.weapons.Lock(plan.WeaponID)
	defer unlock()

	committed, err := e.commitFire(ctx, plan)
	if err != nil {
		return FirePlan{}, e.fail(span, "commit_fire", err)
	}
	e.traceFire(span, "commit_fire", committed)
	return committed, nil
}

// Fire plans and commits an attack while holding the weapon, so concurrent
// attacks with one weapon never interleave their magazine updates. A jammed
// attack is returned uncommitted with a nil error.
func (e *Engine) Fire(ctx context.Context, req FireRequest) (FirePlan, error) {
	ctx, span := e.startFire(ctx, "fire", req)
	defer span.End()

	unlock := e.weapons.Lock(req.WeaponID)
	defer unlock()

	plan, err := e.planFire(ctx, req)
	if err != nil {
		return FirePlan{}, e.fail(span, "fire", err)
	}
	if plan.Plan.Commit {
		if plan, err = e.commitFire(ctx, plan); err != nil {
			return FirePlan{}, e.fail(span, "fire", err)
		}
	}
	e.traceFire(span, "fire", plan)
	return plan, nil
}

func (e *Engine) planFire(ctx context.Context, req FireRequest) (FirePlan, error) {
	c, err := e.character(ctx, req.CharacterID)
	if err != nil {
		return FirePlan{}, err
	}
	attr, skill, err := e.stats(c, req.Attribute, req.Skill)
	if err != nil {
		return FirePlan{}, err
	}
	if req.WeaponID == "" {
		return FirePlan{}, missingReference("weapon", req.WeaponID)
	}
	weapon, err := e.store.GetWeapon(ctx, req.WeaponID)
	if err != nil {
		return FirePlan{}, err
	}
	if weapon.CharacterID != c.ID {
		return FirePlan{}, fmt.Errorf("%w: weapon %s", ErrWrongOwner, weapon.ID)
	}

	var magazine *ammo.Stack
	if weapon.MagazineID != "" {
		record, err := e.store.GetMagazine(ctx, weapon.MagazineID)
		if err != nil {
			return FirePlan{}, err
		}
		stack := record.Stack.Normalize()
		magazine = &stack
	}

	woundPenalty := 0
	if req.UseWoundPenalty {
		wounds, err := e.store.ListWounds(ctx, c.ID)
		if err != nil {
			return FirePlan{}, err
		}
		for _, w := range wounds {
			woundPenalty += w.Penalty
		}
	}

	plan, err := fire.Resolve(fire.Request{
		Attribute:       attr,
		Skill:           skill,
		Weapon:          weapon.Weapon,
		Magazine:        magazine,
		BaseDifficulty:  req.BaseDifficulty,
		ManualModifier:  req.ManualModifier,
		ArmorPenalty:    req.ArmorPenalty,
		UseArmorPenalty: req.UseArmorPenalty,
		WoundPenalty:    woundPenalty,
		UseWoundPenalty: req.UseWoundPenalty,
		Location:        req.Location,
		Aiming:          req.Aiming,
		Burst:           req.Burst,
		Mode:            req.Mode,
		Distance:        req.Distance,
		Override:        req.Override,
	}, e.settings, e.source)
	if err != nil {
		return FirePlan{}, withWeapon(err, weapon.Weapon.Name)
	}
	return FirePlan{
		CharacterID: c.ID,
		WeaponID:    weapon.ID,
		MagazineID:  weapon.MagazineID,
		Magazine:    magazine,
		Plan:        plan,
	}, nil
}

// commitFire expects the weapon lock to be held.
func (e *Engine) commitFire(ctx context.Context, plan FirePlan) (FirePlan, error) {
	remaining, err := fire.Commit(plan.Plan)
	if err != nil {
		return FirePlan{}, err
	}
	if plan.MagazineID == "" || plan.Magazine == nil {
		return FirePlan{}, fire.ErrNothingToCommit
	}
	current, err := e.store.GetMagazine(ctx, plan.MagazineID)
	if err != nil {
		return FirePlan{}, err
	}
	if !current.Stack.Equal(*plan.Magazine) {
		return FirePlan{}, withWeapon(fmt.Errorf("%w: magazine %s", ErrMagazineChanged, plan.MagazineID), plan.Plan.Weapon.Name)
	}
	if err := e.apply(ctx, []storage.Mutation{
		storage.UpdateMagazine{MagazineID: plan.MagazineID, Stack: remaining},
	}); err != nil {
		return FirePlan{}, err
	}
	plan.Committed = true
	plan.Remaining = &remaining
	return plan, nil
}

func (e *Engine) startFire(ctx context.Context, action string, req FireRequest) (context.Context, trace.Span) {
	return e.start(ctx, action,
		attribute.String("dicecore.character_id", req.CharacterID),
		attribute.String("dicecore.weapon_id", req.WeaponID),
		attribute.String("dicecore.burst", req.Burst.String()),
		attribute.Int("dicecore.aiming", req.Aiming),
	)
}

func (e *Engine) traceFire(span trace.Span, action string, plan FirePlan) {
	p := plan.Plan
	span.SetAttributes(
		attribute.Bool("dicecore.passed", p.Outcome.Passed),
		attribute.Bool("dicecore.jammed", p.Jammed),
		attribute.Int("dicecore.fired", p.Fired),
		attribute.Int("dicecore.shortfall", p.Shortfall),
		attribute.Int("dicecore.hits", len(p.Hits)),
		attribute.Bool("dicecore.committed", plan.Committed),
	)
	if p.Shortfall > 0 {
		e.logger.Warn().
			Str("action", action).
			Str("weapon_id", plan.WeaponID).
			Int("requested", p.Rounds).
			Int("fired", p.Fired).
			Int("shortfall", p.Shortfall).
			Msg("magazine ran short")
	}
	e.logger.Debug().
		Str("action", action).
		Str("character_id", plan.CharacterID).
		Str("weapon_id", plan.WeaponID).
		Ints("dice", p.Outcome.Originals()).
		Bool("passed", p.Outcome.Passed).
		Bool("jammed", p.Jammed).
		Int("hits", len(p.Hits)).
		Bool("committed", plan.Committed).
		Msg("attack resolved")
}

func withWeapon(err error, weapon string) error {
	classified := classify(err)
	domainErr, ok := apperrors.As(classified)
	if !ok {
		return err
	}
	switch domainErr.Code {
	case apperrors.CodeMagazineMissing, apperrors.CodeMagazineEmpty, apperrors.CodeMagazineChanged:
		return apperrors.WrapWithMetadata(domainErr.Code, "", map[string]string{"Weapon": weapon}, err)
	}
	return classified
}
