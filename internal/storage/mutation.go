package storage

import (
	"fmt"
	"strings"

	"github.com/louisbranch/dicecore/internal/combat/ammo"
	"github.com/louisbranch/dicecore/internal/core/wound"
)

// MutationKind names a mutation type.
type MutationKind string

const (
	KindCreateWound       MutationKind = "create_wound"
	KindUpdateWound       MutationKind = "update_wound"
	KindDeleteWound       MutationKind = "delete_wound"
	KindUpdateMagazine    MutationKind = "update_magazine"
	KindUpdateArmorDamage MutationKind = "update_armor_damage"
)

// Mutation is one intended durable change. The set of implementations is
// closed to this package.
type Mutation interface {
	Kind() MutationKind
	// Validate reports ErrInvalidMutation for an incomplete mutation.
	Validate() error
	mutation()
}

// CreateWound stores a new wound. An empty Wound.ID is assigned by the store.
type CreateWound struct {
	Wound WoundRecord
}

// UpdateWound changes a stored wound's severity and penalty.
type UpdateWound struct {
	WoundID  string
	Severity wound.Severity
	Penalty  int
}

// DeleteWound removes a healed wound.
type DeleteWound struct {
	WoundID string
}

// UpdateMagazine replaces a magazine's contents.
type UpdateMagazine struct {
	MagazineID string
	Stack      ammo.Stack
}

// UpdateArmorDamage sets the accumulated wear of an armor piece at one
// location.
type UpdateArmorDamage struct {
	ArmorID  string
	Location wound.Location
	Damage   float64
}

func (CreateWound) Kind() MutationKind       { return KindCreateWound }
func (UpdateWound) Kind() MutationKind       { return KindUpdateWound }
func (DeleteWound) Kind() MutationKind       { return KindDeleteWound }
func (UpdateMagazine) Kind() MutationKind    { return KindUpdateMagazine }
func (UpdateArmorDamage) Kind() MutationKind { return KindUpdateArmorDamage }

func (CreateWound) mutation()       {}
func (UpdateWound) mutation()       {}
func (DeleteWound) mutation()       {}
func (UpdateMagazine) mutation()    {}
func (UpdateArmorDamage) mutation() {}

func (m CreateWound) Validate() error {
	if strings.TrimSpace(m.Wound.CharacterID) == "" {
		return fmt.Errorf("%w: create wound: character id is required", ErrInvalidMutation)
	}
	if m.Wound.Severity == wound.None {
		return fmt.Errorf("%w: create wound: severity is required", ErrInvalidMutation)
	}
	if _, err := wound.ParseLocation(string(m.Wound.Location)); err != nil {
		return fmt.Errorf("%w: create wound: %w", ErrInvalidMutation, err)
	}
	return nil
}

func (m UpdateWound) Validate() error {
	if strings.TrimSpace(m.WoundID) == "" {
		return fmt.Errorf("%w: update wound: wound id is required", ErrInvalidMutation)
	}
	if m.Severity == wound.None {
		return fmt.Errorf("%w: update wound: healed wounds are deleted", ErrInvalidMutation)
	}
	return nil
}

func (m DeleteWound) Validate() error {
	if strings.TrimSpace(m.WoundID) == "" {
		return fmt.Errorf("%w: delete wound: wound id is required", ErrInvalidMutation)
	}
	return nil
}

func (m UpdateMagazine) Validate() error {
	if strings.TrimSpace(m.MagazineID) == "" {
		return fmt.Errorf("%w: update magazine: magazine id is required", ErrInvalidMutation)
	}
	return nil
}

func (m UpdateArmorDamage) Validate() error {
	if strings.TrimSpace(m.ArmorID) == "" {
		return fmt.Errorf("%w: update armor damage: armor id is required", ErrInvalidMutation)
	}
	if m.Damage < 0 {
		return fmt.Errorf("%w: update armor damage: damage is negative", ErrInvalidMutation)
	}
	if _, err := wound.ParseLocation(string(m.Location)); err != nil {
		return fmt.Errorf("%w: update armor damage: %w", ErrInvalidMutation, err)
	}
	return nil
}

// ValidateBatch checks every mutation before a store applies any of them.
func ValidateBatch(mutations []Mutation) error {
	for i, m := range mutations {
		if m == nil {
			return fmt.Errorf("%w: mutation %d is nil", ErrInvalidMutation, i)
		}
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}
