package engine

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/louisbranch/dicecore/internal/combat/ammo"
	"github.com/louisbranch/dicecore/internal/combat/armor"
	"github.com/louisbranch/dicecore/internal/combat/fire"
	"github.com/louisbranch/dicecore/internal/combat/opposed"
	"github.com/louisbranch/dicecore/internal/combat/pain"
	"github.com/louisbranch/dicecore/internal/core/check"
	"github.com/louisbranch/dicecore/internal/core/dice"
	"github.com/louisbranch/dicecore/internal/core/difficulty"
	"github.com/louisbranch/dicecore/internal/core/wound"
	apperrors "github.com/louisbranch/dicecore/internal/platform/errors"
	"github.com/louisbranch/dicecore/internal/rules"
	"github.com/louisbranch/dicecore/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var _ storage.Store = (*fakeStore)(nil)

func newTestEngine(t *testing.T, store *fakeStore, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithSource(dice.Fixed(1))}, opts...)
	e, err := New(store, opts...)
	require.NoError(t, err)
	return e
}

func seed(store *fakeStore) {
	store.putCharacter(storage.Character{
		ID:         "ada",
		Name:       "Ada",
		Attributes: map[string]int{"dexterity": 12, "strength": 12, PainAttribute: 12, HealingAttribute: 12},
	})
	store.putCharacter(storage.Character{
		ID:         "bea",
		Name:       "Bea",
		Attributes: map[string]int{"dexterity": 12, "strength": 12, PainAttribute: 12},
	})
}

func requireCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, apperrors.CodeOf(err), "error: %v", err)
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestNewRejectsInvalidSettings(t *testing.T) {
	settings := rules.Default()
	settings.Table = difficulty.Table{}
	_, err := New(newFakeStore(), WithSettings(settings))
	requireCode(t, err, apperrors.CodeRulesSettingsInvalid)
}

func TestTest(t *testing.T) {
	store := newFakeStore()
	seed(store)
	e := newTestEngine(t, store)

	res, err := e.Test(context.Background(), TestRequest{
		CharacterID: "ada",
		Attribute:   "dexterity",
		Difficulty:  difficulty.Average,
		Override:    []int{5, 9, 20},
	})
	require.NoError(t, err)
	require.Equal(t, 12, res.Target)
	require.True(t, res.Outcome.Passed)
	require.Equal(t, 2, res.Outcome.SuccessCount)
	require.NotEmpty(t, res.Steps)
}

func TestTestModifierShiftsTier(t *testing.T) {
	store := newFakeStore()
	seed(store)
	e := newTestEngine(t, store)

	res, err := e.Test(context.Background(), TestRequest{
		CharacterID: "ada",
		Attribute:   "dexterity",
		Difficulty:  difficulty.Average,
		Modifier:    55,
		Override:    []int{5, 9, 20},
	})
	require.NoError(t, err)
	require.Equal(t, difficulty.Hard, res.Tier.Key)
	require.Equal(t, 7, res.Target)
}

func TestTestErrors(t *testing.T) {
	store := newFakeStore()
	seed(store)
	e := newTestEngine(t, store)
	ctx := context.Background()

	_, err := e.Test(ctx, TestRequest{CharacterID: "ghost", Attribute: "dexterity"})
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = e.Test(ctx, TestRequest{Attribute: "dexterity"})
	requireCode(t, err, apperrors.CodeReferenceMissing)

	_, err = e.Test(ctx, TestRequest{CharacterID: "ada", Attribute: "charm"})
	requireCode(t, err, apperrors.CodeReferenceMissing)

	_, err = e.Test(ctx, TestRequest{CharacterID: "ada", Attribute: "dexterity", Override: []int{1, 2}})
	requireCode(t, err, apperrors.CodeDicePoolSizeInvalid)

	_, err = e.Test(ctx, TestRequest{CharacterID: "ada", Attribute: "dexterity", Difficulty: "impossible"})
	requireCode(t, err, apperrors.CodeInvalidInput)
}

func seedRifle(store *fakeStore, rounds int, jamming int) {
	store.putMagazine(storage.MagazineRecord{
		ID:          "mag",
		CharacterID: "ada",
		Name:        "box",
		Stack:       ammo.Stack{Entries: []ammo.Entry{{Name: "fmj", Quantity: rounds}}},
	})
	store.putWeapon(storage.WeaponRecord{
		ID:          "rifle",
		CharacterID: "ada",
		MagazineID:  "mag",
		Weapon: fire.Weapon{
			Name:             "rifle",
			Category:         fire.Ranged,
			Damage:           wound.Heavy,
			Piercing:         1,
			Jamming:          jamming,
			FireRate:         2,
			RequiresMagazine: true,
		},
	})
}

func fireRequest(burst fire.Burst, override ...int) FireRequest {
	return FireRequest{
		CharacterID: "ada",
		WeaponID:    "rifle",
		Attribute:   "dexterity",
		Burst:       burst,
		Override:    override,
	}
}

func TestFireShortfallCommitsDrawnRounds(t *testing.T) {
	store := newFakeStore()
	seed(store)
	seedRifle(store, 4, 0)
	e := newTestEngine(t, store)

	plan, err := e.Fire(context.Background(), fireRequest(fire.Long, 1))
	require.NoError(t, err)
	require.Equal(t, 6, plan.Plan.Rounds)
	require.Equal(t, 4, plan.Plan.Fired)
	require.Equal(t, 2, plan.Plan.Shortfall)
	require.Len(t, plan.Plan.Hits, 4)
	require.True(t, plan.Committed)
	require.NotNil(t, plan.Remaining)
	require.True(t, plan.Remaining.Empty())

	mag, err := store.GetMagazine(context.Background(), "mag")
	require.NoError(t, err)
	require.True(t, mag.Stack.Empty())
}

func TestFireJamLeavesMagazine(t *testing.T) {
	store := newFakeStore()
	seed(store)
	seedRifle(store, 4, 15)
	e := newTestEngine(t, store)

	plan, err := e.Fire(context.Background(), fireRequest(fire.Short, 16))
	require.NoError(t, err)
	require.True(t, plan.Plan.Jammed)
	require.False(t, plan.Committed)
	require.Empty(t, plan.Plan.Hits)

	mag, err := store.GetMagazine(context.Background(), "mag")
	require.NoError(t, err)
	require.Equal(t, 4, mag.Stack.Total())
	require.Zero(t, store.applied)

	_, err = e.CommitFire(context.Background(), plan)
	requireCode(t, err, apperrors.CodeNothingToCommit)
}

func TestFireResourceExhausted(t *testing.T) {
	store := newFakeStore()
	seed(store)
	seedRifle(store, 0, 0)
	e := newTestEngine(t, store)

	_, err := e.Fire(context.Background(), fireRequest(fire.Single))
	requireCode(t, err, apperrors.CodeMagazineEmpty)
	domainErr, ok := apperrors.As(err)
	require.True(t, ok)
	require.Equal(t, "rifle", domainErr.Metadata["Weapon"])

	store.putWeapon(storage.WeaponRecord{
		ID:          "rifle",
		CharacterID: "ada",
		Weapon:      fire.Weapon{Name: "rifle", Category: fire.Ranged, FireRate: 1, RequiresMagazine: true},
	})
	_, err = e.Fire(context.Background(), fireRequest(fire.Single))
	requireCode(t, err, apperrors.CodeMagazineMissing)
}

func TestFireRejectsForeignWeapon(t *testing.T) {
	store := newFakeStore()
	seed(store)
	seedRifle(store, 4, 0)
	e := newTestEngine(t, store)

	req := fireRequest(fire.Single, 1)
	req.CharacterID = "bea"
	_, err := e.Fire(context.Background(), req)
	requireCode(t, err, apperrors.CodeInvalidInput)
}

func TestPlanThenCommitFire(t *testing.T) {
	store := newFakeStore()
	seed(store)
	seedRifle(store, 5, 0)
	e := newTestEngine(t, store)
	ctx := context.Background()

	plan, err := e.PlanFire(ctx, fireRequest(fire.Short, 1))
	require.NoError(t, err)
	require.True(t, plan.Plan.Commit)
	require.False(t, plan.Committed)

	mag, err := store.GetMagazine(ctx, "mag")
	require.NoError(t, err)
	require.Equal(t, 5, mag.Stack.Total(), "planning does not touch the magazine")

	committed, err := e.CommitFire(ctx, plan)
	require.NoError(t, err)
	require.True(t, committed.Committed)
	mag, err = store.GetMagazine(ctx, "mag")
	require.NoError(t, err)
	require.Equal(t, 3, mag.Stack.Total())

	_, err = e.CommitFire(ctx, plan)
	requireCode(t, err, apperrors.CodeMagazineChanged)
}

func TestConcurrentFireSerializesPerWeapon(t *testing.T) {
	store := newFakeStore()
	seed(store)
	seedRifle(store, 10, 0)
	e := newTestEngine(t, store)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			plan, err := e.Fire(context.Background(), fireRequest(fire.Single, 1))
			if err == nil && !plan.Committed {
				err = fire.ErrNothingToCommit
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	mag, err := store.GetMagazine(context.Background(), "mag")
	require.NoError(t, err)
	require.True(t, mag.Stack.Empty())
	require.Zero(t, e.weapons.len())
}

func TestReduceDamageWearsArmor(t *testing.T) {
	store := newFakeStore()
	seed(store)
	store.putArmor(storage.ArmorRecord{ID: "vest", CharacterID: "bea", Piece: armor.Piece{
		Name: "vest", Equipped: true, Ratings: map[wound.Location]float64{wound.Torso: 2},
	}})
	store.putArmor(storage.ArmorRecord{ID: "plate", CharacterID: "bea", Piece: armor.Piece{
		Name: "plate", Equipped: true,
		Ratings: map[wound.Location]float64{wound.Torso: 1.5},
		Damage:  map[wound.Location]float64{wound.Torso: 0.5},
	}})
	store.putArmor(storage.ArmorRecord{ID: "spare", CharacterID: "bea", Piece: armor.Piece{
		Name: "spare", Ratings: map[wound.Location]float64{wound.Torso: 5},
	}})
	e := newTestEngine(t, store)

	res, err := e.ReduceDamage(context.Background(), ReduceRequest{
		CharacterID: "bea",
		Location:    wound.Torso,
		Severity:    wound.Heavy,
		Piercing:    1,
		Wear:        1,
	})
	require.NoError(t, err)
	require.InDelta(t, 3.0, res.Detail.TotalArmor, 1e-9)
	require.Equal(t, 2, res.Detail.Reduction)
	require.Equal(t, wound.Grazing, res.Detail.Reduced)
	require.Len(t, res.Mutations, 2, "unequipped pieces do not wear")

	pieces, err := store.ListArmor(context.Background(), "bea")
	require.NoError(t, err)
	byID := map[string]armor.Piece{}
	for _, p := range pieces {
		byID[p.ID] = p.Piece
	}
	require.InDelta(t, 1.0, byID["vest"].Damage[wound.Torso], 1e-9)
	require.InDelta(t, 1.5, byID["plate"].Damage[wound.Torso], 1e-9, "wear caps at the rating")
	require.Empty(t, byID["spare"].Damage)
}

func TestReduceDamageWithoutWearIsReadOnly(t *testing.T) {
	store := newFakeStore()
	seed(store)
	e := newTestEngine(t, store)

	res, err := e.ReduceDamage(context.Background(), ReduceRequest{
		CharacterID: "bea",
		Location:    wound.Head,
		Severity:    wound.Light,
	})
	require.NoError(t, err)
	require.Equal(t, wound.Light, res.Detail.Reduced)
	require.Empty(t, res.Mutations)
	require.Zero(t, store.applied)

	_, err = e.ReduceDamage(context.Background(), ReduceRequest{CharacterID: "bea", Location: "tail", Severity: wound.Light})
	requireCode(t, err, apperrors.CodeInvalidInput)
}

func TestResistPainStoresWounds(t *testing.T) {
	store := newFakeStore()
	seed(store)
	e := newTestEngine(t, store)

	batch, err := e.ResistPain(context.Background(), PainRequest{
		CharacterID: "bea",
		Wounds: []pain.Incoming{
			{Location: wound.Torso, Severity: wound.Heavy, Override: []int{1, 1, 1}},
			{Location: wound.LeftArm, Severity: wound.Grazing, Override: []int{20, 20, 20}},
		},
	})
	require.NoError(t, err)
	require.Len(t, batch.Results, 2)

	wounds, err := store.ListWounds(context.Background(), "bea")
	require.NoError(t, err)
	require.Len(t, wounds, 2)
	require.Equal(t, wound.Heavy, wounds[0].Severity)
	require.Equal(t, 30, wounds[0].Penalty)
	require.Equal(t, wound.Grazing, wounds[1].Severity)
	require.Equal(t, 10, wounds[1].Penalty)
}

func TestResistPainInvalidBatchStoresNothing(t *testing.T) {
	store := newFakeStore()
	seed(store)
	e := newTestEngine(t, store)

	_, err := e.ResistPain(context.Background(), PainRequest{
		CharacterID: "bea",
		Wounds: []pain.Incoming{
			{Location: wound.Torso, Severity: wound.Heavy},
			{Location: wound.Torso, Severity: wound.None},
		},
	})
	requireCode(t, err, apperrors.CodeInvalidInput)
	require.Zero(t, store.applied)
}

func TestHealLowersThenDeletes(t *testing.T) {
	store := newFakeStore()
	seed(store)
	store.putWound(storage.WoundRecord{ID: "w1", CharacterID: "bea", Location: wound.Torso, Severity: wound.Light, Penalty: 30})
	e := newTestEngine(t, store)
	ctx := context.Background()

	res, err := e.Heal(ctx, HealRequest{HealerID: "ada", WoundID: "w1", Override: []int{5, 6, 20}})
	require.NoError(t, err)
	require.Equal(t, wound.Grazing, res.After)
	got, err := store.GetWound(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, wound.Grazing, got.Severity)
	require.Equal(t, 5, got.Penalty)

	res, err = e.Heal(ctx, HealRequest{HealerID: "ada", WoundID: "w1", Override: []int{5, 6, 20}})
	require.NoError(t, err)
	require.True(t, res.Healed)
	_, err = store.GetWound(ctx, "w1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = e.Heal(ctx, HealRequest{HealerID: "ada", WoundID: "w1"})
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestHealFailureChangesNothing(t *testing.T) {
	store := newFakeStore()
	seed(store)
	store.putWound(storage.WoundRecord{ID: "w1", CharacterID: "bea", Location: wound.Torso, Severity: wound.Heavy, Penalty: 50})
	e := newTestEngine(t, store)

	res, err := e.Heal(context.Background(), HealRequest{HealerID: "ada", WoundID: "w1", Override: []int{19, 19, 20}})
	require.NoError(t, err)
	require.False(t, res.Outcome.Passed)
	require.Nil(t, res.Mutation)
	require.Zero(t, store.applied)
}

func seedSword(store *fakeStore) {
	store.putWeapon(storage.WeaponRecord{
		ID:          "sword",
		CharacterID: "ada",
		Weapon:      fire.Weapon{Name: "sword", Category: fire.Melee, Damage: wound.Light},
	})
}

func openExchange(t *testing.T, e *Engine, attack, defense []int) string {
	t.Helper()
	ex, err := e.OpenOpposed(context.Background(), AttackRequest{
		AttackerID: "ada",
		DefenderID: "bea",
		WeaponID:   "sword",
		Attribute:  "strength",
		Location:   wound.Torso,
		Override:   attack,
	})
	require.NoError(t, err)
	_, err = e.SubmitDefense(context.Background(), DefenseRequest{
		RequestID: ex.RequestID,
		Attribute: "dexterity",
		Override:  defense,
	})
	require.NoError(t, err)
	return ex.RequestID
}

func TestOpposedAttackerWinsStoresWoundOnce(t *testing.T) {
	store := newFakeStore()
	seed(store)
	seedSword(store)
	e := newTestEngine(t, store)
	ctx := context.Background()

	requestID := openExchange(t, e, []int{1, 1, 1}, []int{20, 20, 20})
	res, err := e.ResolveOpposed(ctx, requestID)
	require.NoError(t, err)
	require.True(t, res.Resolved)
	require.Equal(t, opposed.Attacker, res.Outcome.Winner)
	require.Equal(t, 3, res.Outcome.DamageBonus)
	require.Equal(t, wound.Critical, res.Wound)

	wounds, err := store.ListWounds(ctx, "bea")
	require.NoError(t, err)
	require.Len(t, wounds, 1)
	require.Equal(t, wound.Critical, wounds[0].Severity)
	require.Equal(t, 50, wounds[0].Penalty)

	again, err := e.ResolveOpposed(ctx, requestID)
	require.NoError(t, err)
	require.False(t, again.Resolved)
	wounds, err = store.ListWounds(ctx, "bea")
	require.NoError(t, err)
	require.Len(t, wounds, 1)
}

func TestOpposedTieFavoursDefender(t *testing.T) {
	store := newFakeStore()
	seed(store)
	seedSword(store)
	e := newTestEngine(t, store)

	requestID := openExchange(t, e, []int{1, 1, 20}, []int{2, 2, 20})
	res, err := e.ResolveOpposed(context.Background(), requestID)
	require.NoError(t, err)
	require.Equal(t, opposed.Defender, res.Outcome.Winner)
	require.Zero(t, res.Outcome.DamageBonus)
	require.Zero(t, store.applied)
}

func TestOpposedMissingCounterpartKeepsSessionReady(t *testing.T) {
	store := newFakeStore()
	seed(store)
	seedSword(store)
	e := newTestEngine(t, store)

	requestID := openExchange(t, e, []int{1, 1, 1}, []int{20, 20, 20})
	store.deleteCharacter("bea")

	_, err := e.ResolveOpposed(context.Background(), requestID)
	requireCode(t, err, apperrors.CodeOpposedCounterpartMissing)
	session, ok := e.Opposed(requestID)
	require.True(t, ok)
	require.Equal(t, opposed.StateReady, session.State)
}

func TestOpposedStateErrors(t *testing.T) {
	store := newFakeStore()
	seed(store)
	seedSword(store)
	e := newTestEngine(t, store)
	ctx := context.Background()

	_, err := e.SubmitDefense(ctx, DefenseRequest{RequestID: "nope", Attribute: "dexterity"})
	requireCode(t, err, apperrors.CodeOpposedSessionNotFound)

	ex, err := e.OpenOpposed(ctx, AttackRequest{
		AttackerID: "ada", DefenderID: "bea", WeaponID: "sword",
		Attribute: "strength", Location: wound.Head, Override: []int{1, 1, 1},
	})
	require.NoError(t, err)
	_, err = e.ResolveOpposed(ctx, ex.RequestID)
	requireCode(t, err, apperrors.CodeOpposedInvalidState)

	require.True(t, e.ClearOpposed(ex.RequestID))
	require.False(t, e.ClearOpposed(ex.RequestID))
}

func TestOpposedRequiresMeleeWeapon(t *testing.T) {
	store := newFakeStore()
	seed(store)
	seedRifle(store, 1, 0)
	e := newTestEngine(t, store)

	_, err := e.OpenOpposed(context.Background(), AttackRequest{
		AttackerID: "ada", DefenderID: "bea", WeaponID: "rifle",
		Attribute: "strength", Location: wound.Torso,
	})
	require.ErrorIs(t, err, ErrNotMelee)
	requireCode(t, err, apperrors.CodeInvalidInput)
}

func TestFailLogsResourceExhaustionAsWarning(t *testing.T) {
	store := newFakeStore()
	seed(store)
	seedRifle(store, 0, 0)
	var buf bytes.Buffer
	e := newTestEngine(t, store, WithLogger(zerolog.New(&buf).Level(zerolog.WarnLevel)))

	_, err := e.Fire(context.Background(), fireRequest(fire.Single))
	require.Error(t, err)
	require.Contains(t, buf.String(), `"level":"warn"`)
	require.Contains(t, buf.String(), `"action":"fire"`)
}

func TestCheckModeIsPassedThrough(t *testing.T) {
	store := newFakeStore()
	seed(store)
	e := newTestEngine(t, store)

	res, err := e.Test(context.Background(), TestRequest{
		CharacterID: "ada",
		Attribute:   "dexterity",
		Mode:        check.ModeOpen,
		Override:    []int{3, 9, 20},
	})
	require.NoError(t, err)
	require.Equal(t, check.ModeOpen, res.Outcome.Mode)
	require.Equal(t, 3, res.Outcome.Advantage)
}
