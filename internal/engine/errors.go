package engine

import (
	"errors"

	"github.com/louisbranch/dicecore/internal/combat/ammo"
	"github.com/louisbranch/dicecore/internal/combat/armor"
	"github.com/louisbranch/dicecore/internal/combat/fire"
	"github.com/louisbranch/dicecore/internal/combat/heal"
	"github.com/louisbranch/dicecore/internal/combat/opposed"
	"github.com/louisbranch/dicecore/internal/combat/pain"
	"github.com/louisbranch/dicecore/internal/core/check"
	"github.com/louisbranch/dicecore/internal/core/dice"
	"github.com/louisbranch/dicecore/internal/core/difficulty"
	"github.com/louisbranch/dicecore/internal/core/wound"
	apperrors "github.com/louisbranch/dicecore/internal/platform/errors"
	"github.com/louisbranch/dicecore/internal/rules"
	"github.com/louisbranch/dicecore/internal/storage"
)

var (
	// ErrMagazineChanged indicates a commit against a magazine that changed
	// after the attack was planned.
	ErrMagazineChanged = errors.New("magazine changed since the attack was planned")
	// ErrWrongOwner indicates a record that belongs to another character.
	ErrWrongOwner = errors.New("record belongs to another character")
)

type mapping struct {
	target error
	code   apperrors.Code
}

// Order matters: the first sentinel found in the chain wins.
var mappings = []mapping{
	{check.ErrNegativeSkill, apperrors.CodeSkillNegative},
	{dice.ErrInvalidPoolSize, apperrors.CodeDicePoolSizeInvalid},
	{dice.ErrInvalidFace, apperrors.CodeDicePoolSizeInvalid},
	{check.ErrInvalidDice, apperrors.CodeDicePoolSizeInvalid},
	{check.ErrInvalidSingleDice, apperrors.CodeDicePoolSizeInvalid},
	{fire.ErrInvalidAiming, apperrors.CodeDicePoolSizeInvalid},
	{fire.ErrMagazineMissing, apperrors.CodeMagazineMissing},
	{fire.ErrMagazineEmpty, apperrors.CodeMagazineEmpty},
	{fire.ErrNothingToCommit, apperrors.CodeNothingToCommit},
	{ErrMagazineChanged, apperrors.CodeMagazineChanged},
	{heal.ErrAlreadyHealed, apperrors.CodeWoundHealed},
	{opposed.ErrMissingCounterpart, apperrors.CodeOpposedCounterpartMissing},
	{opposed.ErrSessionNotFound, apperrors.CodeOpposedSessionNotFound},
	{opposed.ErrInvalidState, apperrors.CodeOpposedInvalidState},
	{rules.ErrInvalidSettings, apperrors.CodeRulesSettingsInvalid},
	{difficulty.ErrInvalidTable, apperrors.CodeRulesSettingsInvalid},
	{storage.ErrNotFound, apperrors.CodeNotFound},
	{storage.ErrInvalidMutation, apperrors.CodeInvalidInput},
	{fire.ErrMissingWeapon, apperrors.CodeInvalidInput},
	{fire.ErrInvalidDistance, apperrors.CodeInvalidInput},
	{fire.ErrUnknownCategory, apperrors.CodeInvalidInput},
	{fire.ErrUnknownBurst, apperrors.CodeInvalidInput},
	{heal.ErrMissingWound, apperrors.CodeInvalidInput},
	{pain.ErrNoWound, apperrors.CodeInvalidInput},
	{armor.ErrInvalidWear, apperrors.CodeInvalidInput},
	{ammo.ErrInvalidDraw, apperrors.CodeInvalidInput},
	{wound.ErrUnknownLocation, apperrors.CodeInvalidInput},
	{wound.ErrUnknownSeverity, apperrors.CodeInvalidInput},
	{difficulty.ErrUnknownTier, apperrors.CodeInvalidInput},
	{check.ErrUnknownMode, apperrors.CodeInvalidInput},
	{opposed.ErrUnknownMode, apperrors.CodeInvalidInput},
	{opposed.ErrNotClosed, apperrors.CodeInvalidInput},
	{ErrWrongOwner, apperrors.CodeInvalidInput},
	{ErrNotMelee, apperrors.CodeInvalidInput},
}

// classify wraps a resolver or store error in a coded domain error. Errors
// that already carry a code, and errors no sentinel matches (context
// cancellation, driver failures), are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return apperrors.Wrap(m.code, "", err)
		}
	}
	return err
}

func codeOf(err error) apperrors.Code {
	if domainErr, ok := apperrors.As(err); ok {
		return domainErr.Code
	}
	return ""
}

func isResourceExhausted(code apperrors.Code) bool {
	return code == apperrors.CodeMagazineMissing || code == apperrors.CodeMagazineEmpty
}

func missingReference(kind, id string) error {
	return apperrors.WithMetadata(apperrors.CodeReferenceMissing, kind+" reference is missing", map[string]string{
		"Kind": kind,
		"ID":   id,
	})
}
