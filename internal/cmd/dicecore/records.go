package dicecore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/louisbranch/dicecore/internal/combat/ammo"
	"github.com/louisbranch/dicecore/internal/combat/armor"
	"github.com/louisbranch/dicecore/internal/combat/fire"
	"github.com/louisbranch/dicecore/internal/core/wound"
	"github.com/louisbranch/dicecore/internal/storage"
	"gopkg.in/yaml.v3"
)

// recordsFile is the YAML layout read by the import action.
type recordsFile struct {
	Characters []characterDoc `yaml:"characters"`
	Magazines  []magazineDoc  `yaml:"magazines"`
	Weapons    []weaponDoc    `yaml:"weapons"`
	Armor      []armorDoc     `yaml:"armor"`
}

type characterDoc struct {
	ID         string         `yaml:"id"`
	Name       string         `yaml:"name"`
	Attributes map[string]int `yaml:"attributes"`
	Skills     map[string]int `yaml:"skills"`
}

type roundDoc struct {
	Name         string            `yaml:"name"`
	Quantity     int               `yaml:"quantity"`
	Damage       *wound.Severity   `yaml:"damage"`
	Piercing     *float64          `yaml:"piercing"`
	Jamming      *int              `yaml:"jamming"`
	PelletCount  *int              `yaml:"pelletCount"`
	PelletRanges []ammo.PelletBand `yaml:"pelletRanges"`
}

type magazineDoc struct {
	ID          string     `yaml:"id"`
	CharacterID string     `yaml:"character"`
	Name        string     `yaml:"name"`
	Rounds      []roundDoc `yaml:"rounds"`
}

type weaponDoc struct {
	ID               string         `yaml:"id"`
	CharacterID      string         `yaml:"character"`
	MagazineID       string         `yaml:"magazine"`
	Name             string         `yaml:"name"`
	Category         fire.Category  `yaml:"category"`
	Damage           wound.Severity `yaml:"damage"`
	Piercing         float64        `yaml:"piercing"`
	Jamming          int            `yaml:"jamming"`
	FireRate         int            `yaml:"fireRate"`
	AttackBonus      int            `yaml:"attackBonus"`
	DefenseBonus     int            `yaml:"defenseBonus"`
	RequiresMagazine bool           `yaml:"requiresMagazine"`
}

type armorDoc struct {
	ID          string                     `yaml:"id"`
	CharacterID string                     `yaml:"character"`
	Name        string                     `yaml:"name"`
	Equipped    bool                       `yaml:"equipped"`
	Ratings     map[wound.Location]float64 `yaml:"ratings"`
	Damage      map[wound.Location]float64 `yaml:"damage"`
}

// recordWriter is the write side of the sqlite store the import action
// needs.
type recordWriter interface {
	PutCharacter(ctx context.Context, c storage.Character) (storage.Character, error)
	PutMagazine(ctx context.Context, m storage.MagazineRecord) (storage.MagazineRecord, error)
	PutWeapon(ctx context.Context, w storage.WeaponRecord) (storage.WeaponRecord, error)
	PutArmor(ctx context.Context, a storage.ArmorRecord) (storage.ArmorRecord, error)
}

// ImportSummary lists the ids written by an import.
type ImportSummary struct {
	Characters []string `json:"characters"`
	Magazines  []string `json:"magazines"`
	Weapons    []string `json:"weapons"`
	Armor      []string `json:"armor"`
}

func loadRecords(path string) (recordsFile, error) {
	if path == "" {
		return recordsFile{}, errors.New("records file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return recordsFile{}, fmt.Errorf("read records: %w", err)
	}
	var doc recordsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return recordsFile{}, fmt.Errorf("parse records: %w", err)
	}
	return doc, nil
}

// importRecords writes characters first so equipment references resolve,
// then magazines before the weapons that load them.
func importRecords(ctx context.Context, w recordWriter, doc recordsFile) (ImportSummary, error) {
	var summary ImportSummary
	for _, c := range doc.Characters {
		stored, err := w.PutCharacter(ctx, storage.Character{
			ID:         c.ID,
			Name:       c.Name,
			Attributes: c.Attributes,
			Skills:     c.Skills,
		})
		if err != nil {
			return summary, fmt.Errorf("import character %q: %w", c.Name, err)
		}
		summary.Characters = append(summary.Characters, stored.ID)
	}
	for _, m := range doc.Magazines {
		stored, err := w.PutMagazine(ctx, storage.MagazineRecord{
			ID:          m.ID,
			CharacterID: m.CharacterID,
			Name:        m.Name,
			Stack:       m.stack(),
		})
		if err != nil {
			return summary, fmt.Errorf("import magazine %q: %w", m.Name, err)
		}
		summary.Magazines = append(summary.Magazines, stored.ID)
	}
	for _, wd := range doc.Weapons {
		stored, err := w.PutWeapon(ctx, storage.WeaponRecord{
			ID:          wd.ID,
			CharacterID: wd.CharacterID,
			MagazineID:  wd.MagazineID,
			Weapon: fire.Weapon{
				Name:             wd.Name,
				Category:         wd.Category,
				Damage:           wd.Damage,
				Piercing:         wd.Piercing,
				Jamming:          wd.Jamming,
				FireRate:         wd.FireRate,
				AttackBonus:      wd.AttackBonus,
				DefenseBonus:     wd.DefenseBonus,
				RequiresMagazine: wd.RequiresMagazine,
			},
		})
		if err != nil {
			return summary, fmt.Errorf("import weapon %q: %w", wd.Name, err)
		}
		summary.Weapons = append(summary.Weapons, stored.ID)
	}
	for _, a := range doc.Armor {
		stored, err := w.PutArmor(ctx, storage.ArmorRecord{
			ID:          a.ID,
			CharacterID: a.CharacterID,
			Piece: armor.Piece{
				Name:     a.Name,
				Equipped: a.Equipped,
				Ratings:  a.Ratings,
				Damage:   a.Damage,
			},
		})
		if err != nil {
			return summary, fmt.Errorf("import armor %q: %w", a.Name, err)
		}
		summary.Armor = append(summary.Armor, stored.ID)
	}
	return summary, nil
}

// stack loads rounds bottom to top in file order.
func (m magazineDoc) stack() ammo.Stack {
	var s ammo.Stack
	for _, r := range m.Rounds {
		s.Entries = append(s.Entries, ammo.Entry{
			Name:     r.Name,
			Quantity: r.Quantity,
			Overrides: ammo.Overrides{
				Damage:       r.Damage,
				Piercing:     r.Piercing,
				Jamming:      r.Jamming,
				PelletCount:  r.PelletCount,
				PelletRanges: r.PelletRanges,
			},
		})
	}
	return s.Normalize()
}
