package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/louisbranch/dicecore/internal/core/wound"
	"github.com/louisbranch/dicecore/internal/storage"
)

// fakeStore is an in-memory storage.Store. Apply stages every mutation on
// copies and swaps them in only when the whole batch succeeds.
type fakeStore struct {
	mu         sync.Mutex
	characters map[string]storage.Character
	weapons    map[string]storage.WeaponRecord
	magazines  map[string]storage.MagazineRecord
	armor      map[string]storage.ArmorRecord
	wounds     map[string]storage.WoundRecord
	order      []string
	nextID     int
	applied    int
	applyErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		characters: map[string]storage.Character{},
		weapons:    map[string]storage.WeaponRecord{},
		magazines:  map[string]storage.MagazineRecord{},
		armor:      map[string]storage.ArmorRecord{},
		wounds:     map[string]storage.WoundRecord{},
	}
}

func (s *fakeStore) putCharacter(c storage.Character) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.characters[c.ID] = c
}

func (s *fakeStore) deleteCharacter(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.characters, id)
}

func (s *fakeStore) putWeapon(w storage.WeaponRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weapons[w.ID] = w
}

func (s *fakeStore) putMagazine(m storage.MagazineRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.magazines[m.ID] = m
}

func (s *fakeStore) putArmor(a storage.ArmorRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armor[a.ID] = a
}

func (s *fakeStore) putWound(w storage.WoundRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wounds[w.ID] = w
	s.order = append(s.order, w.ID)
}

func (s *fakeStore) GetCharacter(_ context.Context, id string) (storage.Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.characters[id]
	if !ok {
		return storage.Character{}, fmt.Errorf("character %q: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

func (s *fakeStore) ListWeapons(_ context.Context, characterID string) ([]storage.WeaponRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.WeaponRecord
	for _, w := range s.weapons {
		if w.CharacterID == characterID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) GetWeapon(_ context.Context, id string) (storage.WeaponRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.weapons[id]
	if !ok {
		return storage.WeaponRecord{}, fmt.Errorf("weapon %q: %w", id, storage.ErrNotFound)
	}
	return w, nil
}

func (s *fakeStore) GetMagazine(_ context.Context, id string) (storage.MagazineRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.magazines[id]
	if !ok {
		return storage.MagazineRecord{}, fmt.Errorf("magazine %q: %w", id, storage.ErrNotFound)
	}
	m.Stack = m.Stack.Clone()
	return m, nil
}

func (s *fakeStore) ListArmor(_ context.Context, characterID string) ([]storage.ArmorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.ArmorRecord
	for _, a := range s.armor {
		if a.CharacterID == characterID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) GetWound(_ context.Context, id string) (storage.WoundRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wounds[id]
	if !ok {
		return storage.WoundRecord{}, fmt.Errorf("wound %q: %w", id, storage.ErrNotFound)
	}
	return w, nil
}

func (s *fakeStore) ListWounds(_ context.Context, characterID string) ([]storage.WoundRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.WoundRecord
	for _, id := range s.order {
		if w, ok := s.wounds[id]; ok && w.CharacterID == characterID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *fakeStore) Apply(_ context.Context, mutations []storage.Mutation) error {
	if err := storage.ValidateBatch(mutations); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return s.applyErr
	}

	wounds := make(map[string]storage.WoundRecord, len(s.wounds))
	for k, v := range s.wounds {
		wounds[k] = v
	}
	magazines := make(map[string]storage.MagazineRecord, len(s.magazines))
	for k, v := range s.magazines {
		magazines[k] = v
	}
	armor := make(map[string]storage.ArmorRecord, len(s.armor))
	for k, v := range s.armor {
		armor[k] = v
	}
	order := append([]string(nil), s.order...)
	nextID := s.nextID

	for _, m := range mutations {
		switch m := m.(type) {
		case storage.CreateWound:
			w := m.Wound
			if w.ID == "" {
				nextID++
				w.ID = fmt.Sprintf("wound-%d", nextID)
			}
			wounds[w.ID] = w
			order = append(order, w.ID)
		case storage.UpdateWound:
			w, ok := wounds[m.WoundID]
			if !ok {
				return fmt.Errorf("wound %q: %w", m.WoundID, storage.ErrNotFound)
			}
			w.Severity, w.Penalty = m.Severity, m.Penalty
			wounds[m.WoundID] = w
		case storage.DeleteWound:
			if _, ok := wounds[m.WoundID]; !ok {
				return fmt.Errorf("wound %q: %w", m.WoundID, storage.ErrNotFound)
			}
			delete(wounds, m.WoundID)
		case storage.UpdateMagazine:
			mag, ok := magazines[m.MagazineID]
			if !ok {
				return fmt.Errorf("magazine %q: %w", m.MagazineID, storage.ErrNotFound)
			}
			mag.Stack = m.Stack.Normalize()
			magazines[m.MagazineID] = mag
		case storage.UpdateArmorDamage:
			a, ok := armor[m.ArmorID]
			if !ok {
				return fmt.Errorf("armor %q: %w", m.ArmorID, storage.ErrNotFound)
			}
			piece := a.Piece
			piece.Damage = cloneDamage(piece.Damage)
			piece.Damage[m.Location] = m.Damage
			a.Piece = piece
			armor[m.ArmorID] = a
		}
	}

	s.wounds, s.magazines, s.armor, s.order, s.nextID = wounds, magazines, armor, order, nextID
	s.applied++
	return nil
}

func cloneDamage(m map[wound.Location]float64) map[wound.Location]float64 {
	out := make(map[wound.Location]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
