package engine

import (
	"context"
	"fmt"

	"github.com/louisbranch/dicecore/internal/combat/armor"
	"github.com/louisbranch/dicecore/internal/core/wound"
	"github.com/louisbranch/dicecore/internal/storage"
	"go.opentelemetry.io/otel/attribute"
)

// ReduceRequest is an incoming hit against a character's armor.
type ReduceRequest struct {
	CharacterID string
	Location    wound.Location
	Severity    wound.Severity
	Piercing    float64
	// Wear is added to the damage of every equipped piece covering the
	// location. Zero leaves the armor untouched.
	Wear float64
}

// ReduceResult is the reduction breakdown and the armor wear written.
type ReduceResult struct {
	Detail    armor.Detail       `json:"detail"`
	Mutations []storage.Mutation `json:"-"`
}

// ReduceDamage runs the armor reduction for a hit. The reduction itself is
// side-effect free; only a positive Wear writes armor damage.
func (e *Engine) ReduceDamage(ctx context.Context, req ReduceRequest) (ReduceResult, error) {
	ctx, span := e.start(ctx, "reduce",
		attribute.String("dicecore.character_id", req.CharacterID),
		attribute.String("dicecore.location", string(req.Location)),
		attribute.String("dicecore.severity", req.Severity.String()),
	)
	defer span.End()

	result, err := e.reduce(ctx, req)
	if err != nil {
		return ReduceResult{}, e.fail(span, "reduce", err)
	}
	if err := e.apply(ctx, result.Mutations); err != nil {
		return ReduceResult{}, e.fail(span, "reduce", err)
	}

	d := result.Detail
	span.SetAttributes(
		attribute.Int("dicecore.reduction", d.Reduction),
		attribute.String("dicecore.reduced", d.Reduced.String()),
		attribute.Bool("dicecore.negated", d.Negated),
	)
	e.logger.Debug().
		Str("action", "reduce").
		Str("character_id", req.CharacterID).
		Float64("total_armor", d.TotalArmor).
		Int("reduction", d.Reduction).
		Str("original", d.Original.String()).
		Str("reduced", d.Reduced.String()).
		Int("worn_pieces", len(result.Mutations)).
		Msg("damage reduced")
	return result, nil
}

func (e *Engine) reduce(ctx context.Context, req ReduceRequest) (ReduceResult, error) {
	if _, err := wound.ParseLocation(string(req.Location)); err != nil {
		return ReduceResult{}, err
	}
	if req.Wear < 0 {
		return ReduceResult{}, armor.ErrInvalidWear
	}
	if _, err := e.character(ctx, req.CharacterID); err != nil {
		return ReduceResult{}, err
	}
	records, err := e.store.ListArmor(ctx, req.CharacterID)
	if err != nil {
		return ReduceResult{}, err
	}

	pieces := make([]armor.Piece, len(records))
	for i, r := range records {
		pieces[i] = r.Piece
	}
	result := ReduceResult{Detail: armor.Reduce(pieces, req.Location, req.Severity, req.Piercing)}
	if req.Wear == 0 {
		return result, nil
	}

	for _, r := range records {
		if !r.Piece.Equipped || r.Piece.Ratings[req.Location] <= 0 {
			continue
		}
		worn, err := armor.Wear(r.Piece, req.Location, req.Wear)
		if err != nil {
			return ReduceResult{}, fmt.Errorf("wear %s: %w", r.Piece.Name, err)
		}
		result.Mutations = append(result.Mutations, storage.UpdateArmorDamage{
			ArmorID:  r.ID,
			Location: req.Location,
			Damage:   worn.Damage[req.Location],
		})
	}
	return result, nil
}
