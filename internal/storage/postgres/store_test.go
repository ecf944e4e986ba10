package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/louisbranch/dicecore/internal/combat/ammo"
	"github.com/louisbranch/dicecore/internal/combat/armor"
	"github.com/louisbranch/dicecore/internal/combat/fire"
	"github.com/louisbranch/dicecore/internal/core/wound"
	"github.com/louisbranch/dicecore/internal/platform/id"
	"github.com/louisbranch/dicecore/internal/storage"
	"github.com/stretchr/testify/require"
)

// openTestStore connects to DICECORE_TEST_POSTGRES_DSN and skips when it is
// unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DICECORE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DICECORE_TEST_POSTGRES_DSN not set")
	}
	store, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}

func uniqueID(t *testing.T, prefix string) string {
	t.Helper()
	v, err := id.NewID()
	require.NoError(t, err)
	return prefix + "-" + v
}

func TestIsDSN(t *testing.T) {
	require.True(t, IsDSN("postgres://localhost/dicecore"))
	require.True(t, IsDSN(" postgresql://u:p@db/x"))
	require.False(t, IsDSN("dicecore.db"))
	require.False(t, IsDSN(""))
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), " ")
	require.Error(t, err)
}

func TestNilStore(t *testing.T) {
	var s *Store
	require.NoError(t, s.Close())
	_, err := s.GetCharacter(context.Background(), "ada")
	require.Error(t, err)
}

func TestWrapWriteError(t *testing.T) {
	require.NoError(t, wrapWriteError("op", nil))
	require.ErrorIs(t, wrapWriteError("op", &pgconn.PgError{Code: uniqueViolation}), storage.ErrAlreadyExists)
	require.ErrorIs(t, wrapWriteError("op", &pgconn.PgError{Code: foreignKeyViolation}), storage.ErrNotFound)

	other := errors.New("boom")
	require.ErrorIs(t, wrapWriteError("op", other), other)
}

func TestNullable(t *testing.T) {
	require.Nil(t, nullable("  "))
	v := nullable(" mag ")
	require.NotNil(t, v)
	require.Equal(t, "mag", *v)
}

func TestStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	c, err := store.PutCharacter(ctx, storage.Character{
		ID:         uniqueID(t, "char"),
		Name:       "Ada",
		Attributes: map[string]int{"dexterity": 12},
	})
	require.NoError(t, err)

	mag, err := store.PutMagazine(ctx, storage.MagazineRecord{
		ID:          uniqueID(t, "mag"),
		CharacterID: c.ID,
		Name:        "box",
		Stack: ammo.Stack{Entries: []ammo.Entry{
			{Name: "fmj", Quantity: 2},
			{Name: "fmj", Quantity: 3},
		}},
	})
	require.NoError(t, err)
	require.Len(t, mag.Stack.Entries, 1)

	w, err := store.PutWeapon(ctx, storage.WeaponRecord{
		ID:          uniqueID(t, "weapon"),
		CharacterID: c.ID,
		MagazineID:  mag.ID,
		Weapon:      fire.Weapon{Name: "rifle", Category: fire.Ranged, Damage: wound.Heavy, FireRate: 2},
	})
	require.NoError(t, err)

	got, err := store.GetWeapon(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, mag.ID, got.MagazineID)
	require.Equal(t, fire.Ranged, got.Weapon.Category)

	storedMag, err := store.GetMagazine(ctx, mag.ID)
	require.NoError(t, err)
	require.Equal(t, 5, storedMag.Stack.Total())

	_, err = store.PutWeapon(ctx, storage.WeaponRecord{
		CharacterID: uniqueID(t, "ghost"),
		Weapon:      fire.Weapon{Name: "club"},
	})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStoreApplyIsAtomic(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	c, err := store.PutCharacter(ctx, storage.Character{ID: uniqueID(t, "char"), Name: "Bea"})
	require.NoError(t, err)
	a, err := store.PutArmor(ctx, storage.ArmorRecord{
		ID:          uniqueID(t, "armor"),
		CharacterID: c.ID,
		Piece:       armor.Piece{Name: "vest", Equipped: true, Ratings: map[wound.Location]float64{wound.Torso: 2}},
	})
	require.NoError(t, err)

	require.NoError(t, store.Apply(ctx, []storage.Mutation{
		storage.CreateWound{Wound: storage.WoundRecord{CharacterID: c.ID, Location: wound.Torso, Severity: wound.Light, Penalty: 10}},
		storage.CreateWound{Wound: storage.WoundRecord{CharacterID: c.ID, Location: wound.Head, Severity: wound.Grazing, Penalty: 5}},
		storage.UpdateArmorDamage{ArmorID: a.ID, Location: wound.Torso, Damage: 1},
	}))

	wounds, err := store.ListWounds(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, wounds, 2)
	require.Equal(t, wound.Torso, wounds[0].Location)
	require.Equal(t, wound.Head, wounds[1].Location)

	pieces, err := store.ListArmor(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, pieces, 1)
	require.Equal(t, 1.0, pieces[0].Piece.Damage[wound.Torso])

	err = store.Apply(ctx, []storage.Mutation{
		storage.DeleteWound{WoundID: wounds[0].ID},
		storage.UpdateWound{WoundID: "missing", Severity: wound.Grazing, Penalty: 5},
	})
	require.ErrorIs(t, err, storage.ErrNotFound)

	wounds, err = store.ListWounds(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, wounds, 2, "failed batch leaves every wound in place")
}
