package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/dicecore/internal/combat/armor"
	"github.com/louisbranch/dicecore/internal/combat/fire"
	"github.com/louisbranch/dicecore/internal/combat/opposed"
	"github.com/louisbranch/dicecore/internal/combat/pain"
	"github.com/louisbranch/dicecore/internal/core/check"
	"github.com/louisbranch/dicecore/internal/core/difficulty"
	"github.com/louisbranch/dicecore/internal/core/wound"
	"github.com/louisbranch/dicecore/internal/storage"
	"go.opentelemetry.io/otel/attribute"
)

// ErrNotMelee indicates an opposed attack with a ranged or thrown weapon.
var ErrNotMelee = errors.New("opposed attacks need a melee weapon")

const (
	detailWeapon   = "weapon_id"
	detailLocation = "location"
)

// AttackRequest opens an opposed melee exchange.
type AttackRequest struct {
	AttackerID string
	DefenderID string
	WeaponID   string
	Attribute  string
	Skill      string
	Difficulty difficulty.Key
	Modifier   int
	Location   wound.Location
	Override   []int
}

// DefenseRequest answers an open exchange. WeaponID is optional; a melee
// weapon adds its defense bonus.
type DefenseRequest struct {
	RequestID  string
	Attribute  string
	Skill      string
	WeaponID   string
	Difficulty difficulty.Key
	Modifier   int
	Override   []int
}

// Exchange is one side's roll in an opposed exchange.
type Exchange struct {
	RequestID string        `json:"request_id"`
	Outcome   check.Outcome `json:"outcome"`
}

// OpposedResult is the verdict of an exchange. Resolved is false when
// another call already resolved it or is resolving it; the other fields
// are then empty.
type OpposedResult struct {
	RequestID string             `json:"request_id"`
	Resolved  bool               `json:"resolved"`
	Outcome   opposed.Outcome    `json:"outcome"`
	Reduction *armor.Detail      `json:"reduction,omitempty"`
	Pain      *pain.Batch        `json:"pain,omitempty"`
	Wound     wound.Severity     `json:"wound"`
	Mutations []storage.Mutation `json:"-"`
}

// OpenOpposed rolls the attacker's Closed test and opens the exchange.
func (e *Engine) OpenOpposed(ctx context.Context, req AttackRequest) (Exchange, error) {
	ctx, span := e.start(ctx, "open_opposed",
		attribute.String("dicecore.character_id", req.AttackerID),
		attribute.String("dicecore.defender_id", req.DefenderID),
	)
	defer span.End()

	ex, err := e.openOpposed(ctx, req)
	if err != nil {
		return Exchange{}, e.fail(span, "open_opposed", err)
	}
	span.SetAttributes(attribute.String("dicecore.request_id", ex.RequestID))
	e.logger.Debug().
		Str("action", "open_opposed").
		Str("request_id", ex.RequestID).
		Str("attacker_id", req.AttackerID).
		Str("defender_id", req.DefenderID).
		Int("successes", ex.Outcome.SuccessCount).
		Msg("opposed exchange opened")
	return ex, nil
}

func (e *Engine) openOpposed(ctx context.Context, req AttackRequest) (Exchange, error) {
	attacker, err := e.character(ctx, req.AttackerID)
	if err != nil {
		return Exchange{}, err
	}
	if _, err := e.character(ctx, req.DefenderID); err != nil {
		return Exchange{}, err
	}
	if _, err := wound.ParseLocation(string(req.Location)); err != nil {
		return Exchange{}, err
	}
	attr, skill, err := e.stats(attacker, req.Attribute, req.Skill)
	if err != nil {
		return Exchange{}, err
	}
	if req.WeaponID == "" {
		return Exchange{}, missingReference("weapon", req.WeaponID)
	}
	weapon, err := e.meleeWeapon(ctx, attacker.ID, req.WeaponID)
	if err != nil {
		return Exchange{}, err
	}

	modifier := req.Modifier + e.settings.LocationPenalty(fire.Melee.String(), req.Location)
	tier, err := e.tier(req.Difficulty, modifier)
	if err != nil {
		return Exchange{}, err
	}
	outcome, err := e.roll(check.ModeClosed, check.Target(attr+weapon.Weapon.AttackBonus, tier), skill, req.Override)
	if err != nil {
		return Exchange{}, err
	}
	requestID, err := e.sessions.Open(attacker.ID, req.DefenderID, outcome, map[string]string{
		detailWeapon:   weapon.ID,
		detailLocation: string(req.Location),
	})
	if err != nil {
		return Exchange{}, err
	}
	return Exchange{RequestID: requestID, Outcome: outcome}, nil
}

// SubmitDefense rolls the defender's Closed test and readies the exchange.
func (e *Engine) SubmitDefense(ctx context.Context, req DefenseRequest) (Exchange, error) {
	ctx, span := e.start(ctx, "submit_defense", attribute.String("dicecore.request_id", req.RequestID))
	defer span.End()

	ex, err := e.submitDefense(ctx, req)
	if err != nil {
		return Exchange{}, e.fail(span, "submit_defense", err)
	}
	e.logger.Debug().
		Str("action", "submit_defense").
		Str("request_id", ex.RequestID).
		Int("successes", ex.Outcome.SuccessCount).
		Msg("opposed defense submitted")
	return ex, nil
}

func (e *Engine) submitDefense(ctx context.Context, req DefenseRequest) (Exchange, error) {
	session, ok := e.sessions.Get(req.RequestID)
	if !ok {
		return Exchange{}, fmt.Errorf("%w: %s", opposed.ErrSessionNotFound, req.RequestID)
	}
	if session.State != opposed.StateWaiting {
		return Exchange{}, fmt.Errorf("%w: session %s is %s", opposed.ErrInvalidState, req.RequestID, session.State)
	}
	defender, err := e.character(ctx, session.DefenderID)
	if err != nil {
		return Exchange{}, err
	}
	attr, skill, err := e.stats(defender, req.Attribute, req.Skill)
	if err != nil {
		return Exchange{}, err
	}
	if req.WeaponID != "" {
		weapon, err := e.meleeWeapon(ctx, defender.ID, req.WeaponID)
		if err != nil {
			return Exchange{}, err
		}
		attr += weapon.Weapon.DefenseBonus
	}
	tier, err := e.tier(req.Difficulty, req.Modifier)
	if err != nil {
		return Exchange{}, err
	}
	outcome, err := e.roll(check.ModeClosed, check.Target(attr, tier), skill, req.Override)
	if err != nil {
		return Exchange{}, err
	}
	if err := e.sessions.Submit(req.RequestID, outcome); err != nil {
		return Exchange{}, err
	}
	return Exchange{RequestID: req.RequestID, Outcome: outcome}, nil
}

// ResolveOpposed scores a ready exchange with the configured mode. When the
// attacker wins, the weapon damage raised by the damage bonus goes through
// the defender's armor, and a wound that gets through is stored after its
// pain test. Resolving an exchange twice is a silent no-op. If either party
// is gone the exchange stays ready and OPPOSED_COUNTERPART_MISSING is
// returned.
func (e *Engine) ResolveOpposed(ctx context.Context, requestID string) (OpposedResult, error) {
	ctx, span := e.start(ctx, "resolve_opposed", attribute.String("dicecore.request_id", requestID))
	defer span.End()

	result := OpposedResult{RequestID: requestID}
	finalize := func(ctx context.Context, session opposed.Session, outcome opposed.Outcome) error {
		return e.finalizeOpposed(ctx, session, outcome, &result)
	}
	outcome, resolved, err := e.sessions.Resolve(ctx, requestID, e.settings.OpposedMode, finalize)
	if err != nil {
		return OpposedResult{}, e.fail(span, "resolve_opposed", err)
	}
	if !resolved {
		e.logger.Warn().
			Str("action", "resolve_opposed").
			Str("request_id", requestID).
			Msg("opposed exchange already resolved")
		return OpposedResult{RequestID: requestID}, nil
	}
	result.Resolved = true
	result.Outcome = outcome

	span.SetAttributes(
		attribute.String("dicecore.winner", outcome.Winner.String()),
		attribute.Int("dicecore.damage_bonus", outcome.DamageBonus),
		attribute.String("dicecore.wound", result.Wound.String()),
	)
	e.logger.Debug().
		Str("action", "resolve_opposed").
		Str("request_id", requestID).
		Str("mode", outcome.Mode.String()).
		Str("winner", outcome.Winner.String()).
		Int("damage_bonus", outcome.DamageBonus).
		Str("wound", result.Wound.String()).
		Msg("opposed exchange resolved")
	return result, nil
}

func (e *Engine) finalizeOpposed(ctx context.Context, session opposed.Session, outcome opposed.Outcome, result *OpposedResult) error {
	if _, err := e.counterpart(ctx, "attacker", session.AttackerID); err != nil {
		return err
	}
	defender, err := e.counterpart(ctx, "defender", session.DefenderID)
	if err != nil {
		return err
	}
	if outcome.Winner != opposed.Attacker {
		return nil
	}

	weapon, err := e.store.GetWeapon(ctx, session.Details[detailWeapon])
	if isNotFound(err) {
		return fmt.Errorf("%w: weapon %s", opposed.ErrMissingCounterpart, session.Details[detailWeapon])
	}
	if err != nil {
		return err
	}
	loc := wound.Location(session.Details[detailLocation])
	records, err := e.store.ListArmor(ctx, defender.ID)
	if err != nil {
		return err
	}
	pieces := make([]armor.Piece, len(records))
	for i, r := range records {
		pieces[i] = r.Piece
	}
	severity := fire.ApplyBonus(weapon.Weapon.Damage, outcome.DamageBonus)
	detail := armor.Reduce(pieces, loc, severity, weapon.Weapon.Piercing)
	if detail.Reduced == wound.None {
		result.Reduction = &detail
		return nil
	}

	attr, skill, err := e.stats(defender, PainAttribute, PainSkill)
	if err != nil {
		return err
	}
	batch, err := pain.Process(
		[]pain.Incoming{{Location: loc, Severity: detail.Reduced}},
		pain.Resister{CharacterID: defender.ID, Attribute: attr, Skill: skill},
		e.settings,
		e.source,
	)
	if err != nil {
		return err
	}
	if err := e.apply(ctx, batch.Mutations); err != nil {
		return err
	}
	result.Reduction = &detail
	result.Pain = &batch
	result.Wound = detail.Reduced
	result.Mutations = batch.Mutations
	return nil
}

func (e *Engine) counterpart(ctx context.Context, side, characterID string) (storage.Character, error) {
	c, err := e.store.GetCharacter(ctx, characterID)
	if isNotFound(err) {
		return storage.Character{}, fmt.Errorf("%w: %s %s", opposed.ErrMissingCounterpart, side, characterID)
	}
	return c, err
}

func (e *Engine) meleeWeapon(ctx context.Context, ownerID, weaponID string) (storage.WeaponRecord, error) {
	weapon, err := e.store.GetWeapon(ctx, weaponID)
	if err != nil {
		return storage.WeaponRecord{}, err
	}
	if weapon.CharacterID != ownerID {
		return storage.WeaponRecord{}, fmt.Errorf("%w: weapon %s", ErrWrongOwner, weapon.ID)
	}
	if weapon.Weapon.Category != fire.Melee {
		return storage.WeaponRecord{}, fmt.Errorf("%w: %s is %s", ErrNotMelee, weapon.Weapon.Name, weapon.Weapon.Category)
	}
	return weapon, nil
}

// Opposed returns a snapshot of an exchange.
func (e *Engine) Opposed(requestID string) (opposed.Session, bool) {
	return e.sessions.Get(requestID)
}

// ClearOpposed abandons an exchange in any state. Waiting exchanges never
// expire on their own.
func (e *Engine) ClearOpposed(requestID string) bool {
	cleared := e.sessions.Clear(requestID)
	if cleared {
		e.logger.Debug().Str("action", "clear_opposed").Str("request_id", requestID).Msg("opposed exchange cleared")
	}
	return cleared
}
