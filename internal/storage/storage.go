// Package storage defines the record-store contracts the rules engine reads
// from and the mutation batches it asks the store to apply.
package storage

import (
	"context"
	"errors"

	"github.com/louisbranch/dicecore/internal/combat/ammo"
	"github.com/louisbranch/dicecore/internal/combat/armor"
	"github.com/louisbranch/dicecore/internal/combat/fire"
	"github.com/louisbranch/dicecore/internal/core/wound"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a record with the same id already exists.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrInvalidMutation indicates a mutation missing its target or payload.
	ErrInvalidMutation = errors.New("invalid mutation")
)

// Character is the subset of a character sheet the rules read. Attributes
// and skills are keyed by their sheet names.
type Character struct {
	ID         string
	Name       string
	Attributes map[string]int
	Skills     map[string]int
}

// Attribute returns the named attribute value and whether it exists.
func (c Character) Attribute(name string) (int, bool) {
	v, ok := c.Attributes[name]
	return v, ok
}

// Skill returns the named skill value; untrained skills are zero.
func (c Character) Skill(name string) int {
	return c.Skills[name]
}

// WeaponRecord is a weapon owned by a character. MagazineID names the
// loaded magazine, if any.
type WeaponRecord struct {
	ID          string
	CharacterID string
	Weapon      fire.Weapon
	MagazineID  string
}

// MagazineRecord is a magazine and its LIFO contents.
type MagazineRecord struct {
	ID          string
	CharacterID string
	Name        string
	Stack       ammo.Stack
}

// ArmorRecord is an armor piece owned by a character.
type ArmorRecord struct {
	ID          string
	CharacterID string
	Piece       armor.Piece
}

// WoundRecord is a stored wound. Penalty is the percentage penalty chosen by
// the pain resistance test.
type WoundRecord struct {
	ID          string
	CharacterID string
	Location    wound.Location
	Severity    wound.Severity
	Penalty     int
}

// CharacterReader reads characters.
type CharacterReader interface {
	GetCharacter(ctx context.Context, id string) (Character, error)
}

// EquipmentReader reads weapons, magazines and armor.
type EquipmentReader interface {
	ListWeapons(ctx context.Context, characterID string) ([]WeaponRecord, error)
	GetWeapon(ctx context.Context, id string) (WeaponRecord, error)
	GetMagazine(ctx context.Context, id string) (MagazineRecord, error)
	ListArmor(ctx context.Context, characterID string) ([]ArmorRecord, error)
}

// WoundReader reads wounds.
type WoundReader interface {
	GetWound(ctx context.Context, id string) (WoundRecord, error)
	ListWounds(ctx context.Context, characterID string) ([]WoundRecord, error)
}

// MutationApplier applies a batch of mutations atomically: either every
// mutation lands or none does.
type MutationApplier interface {
	Apply(ctx context.Context, mutations []Mutation) error
}

// Store is the full record-store collaborator.
type Store interface {
	CharacterReader
	EquipmentReader
	WoundReader
	MutationApplier
}
