package storage

import (
	"testing"

	"github.com/louisbranch/dicecore/internal/core/wound"
	"github.com/stretchr/testify/require"
)

func TestValidateBatch(t *testing.T) {
	valid := []Mutation{
		CreateWound{Wound: WoundRecord{CharacterID: "c1", Location: wound.Torso, Severity: wound.Light, Penalty: 10}},
		UpdateWound{WoundID: "w1", Severity: wound.Grazing, Penalty: 5},
		DeleteWound{WoundID: "w2"},
		UpdateMagazine{MagazineID: "m1"},
		UpdateArmorDamage{ArmorID: "a1", Location: wound.Head, Damage: 1},
	}
	require.NoError(t, ValidateBatch(valid))
	require.NoError(t, ValidateBatch(nil))

	tests := []struct {
		name string
		m    Mutation
	}{
		{name: "nil", m: nil},
		{name: "create without character", m: CreateWound{Wound: WoundRecord{Location: wound.Torso, Severity: wound.Light}}},
		{name: "create without severity", m: CreateWound{Wound: WoundRecord{CharacterID: "c1", Location: wound.Torso}}},
		{name: "create bad location", m: CreateWound{Wound: WoundRecord{CharacterID: "c1", Location: "tail", Severity: wound.Light}}},
		{name: "update to none", m: UpdateWound{WoundID: "w1"}},
		{name: "delete without id", m: DeleteWound{}},
		{name: "magazine without id", m: UpdateMagazine{}},
		{name: "armor negative", m: UpdateArmorDamage{ArmorID: "a1", Location: wound.Head, Damage: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := append([]Mutation{DeleteWound{WoundID: "ok"}}, tt.m)
			require.ErrorIs(t, ValidateBatch(batch), ErrInvalidMutation)
		})
	}
}

func TestMutationKinds(t *testing.T) {
	require.Equal(t, KindCreateWound, CreateWound{}.Kind())
	require.Equal(t, KindUpdateWound, UpdateWound{}.Kind())
	require.Equal(t, KindDeleteWound, DeleteWound{}.Kind())
	require.Equal(t, KindUpdateMagazine, UpdateMagazine{}.Kind())
	require.Equal(t, KindUpdateArmorDamage, UpdateArmorDamage{}.Kind())
}

func TestCharacterLookups(t *testing.T) {
	c := Character{Attributes: map[string]int{"agility": 12}, Skills: map[string]int{"firearms": 3}}
	v, ok := c.Attribute("agility")
	require.True(t, ok)
	require.Equal(t, 12, v)
	_, ok = c.Attribute("luck")
	require.False(t, ok)
	require.Equal(t, 3, c.Skill("firearms"))
	require.Zero(t, c.Skill("swimming"))
}
