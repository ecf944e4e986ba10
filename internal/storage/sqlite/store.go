// Package sqlite provides the SQLite-backed record store: characters, their
// equipment, and their wounds.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/dicecore/internal/combat/armor"
	"github.com/louisbranch/dicecore/internal/combat/fire"
	"github.com/louisbranch/dicecore/internal/core/wound"
	"github.com/louisbranch/dicecore/internal/platform/id"
	sqlitemigrate "github.com/louisbranch/dicecore/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/dicecore/internal/storage"
	"github.com/louisbranch/dicecore/internal/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const pragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

// Store persists records in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
	newID func() (string, error)
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a SQLite record store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	sqlDB, err := sql.Open("sqlite", filepath.Clean(path)+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	ctx := context.Background()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now, newID: id.NewID}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func (s *Store) assignID(current string) (string, error) {
	if v := strings.TrimSpace(current); v != "" {
		return v, nil
	}
	return s.newID()
}

// PutCharacter inserts or replaces a character. An empty ID is generated.
func (s *Store) PutCharacter(ctx context.Context, c storage.Character) (storage.Character, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Character{}, err
	}
	if strings.TrimSpace(c.Name) == "" {
		return storage.Character{}, fmt.Errorf("character name is required")
	}
	recordID, err := s.assignID(c.ID)
	if err != nil {
		return storage.Character{}, err
	}
	c.ID = recordID
	attributes, err := marshalCounts(c.Attributes)
	if err != nil {
		return storage.Character{}, fmt.Errorf("marshal attributes: %w", err)
	}
	skills, err := marshalCounts(c.Skills)
	if err != nil {
		return storage.Character{}, fmt.Errorf("marshal skills: %w", err)
	}
	now := toMillis(s.now())
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO characters (id, name, attributes_json, skills_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   attributes_json = excluded.attributes_json,
		   skills_json = excluded.skills_json,
		   updated_at = excluded.updated_at`,
		c.ID, strings.TrimSpace(c.Name), attributes, skills, now, now,
	)
	if err != nil {
		return storage.Character{}, fmt.Errorf("put character: %w", err)
	}
	return c, nil
}

// GetCharacter fetches a character by ID.
func (s *Store) GetCharacter(ctx context.Context, characterID string) (storage.Character, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Character{}, err
	}
	var (
		c                  storage.Character
		attributes, skills string
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, attributes_json, skills_json FROM characters WHERE id = ?`,
		strings.TrimSpace(characterID),
	).Scan(&c.ID, &c.Name, &attributes, &skills)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Character{}, fmt.Errorf("character %q: %w", characterID, storage.ErrNotFound)
	}
	if err != nil {
		return storage.Character{}, fmt.Errorf("get character: %w", err)
	}
	if err := json.Unmarshal([]byte(attributes), &c.Attributes); err != nil {
		return storage.Character{}, fmt.Errorf("decode attributes: %w", err)
	}
	if err := json.Unmarshal([]byte(skills), &c.Skills); err != nil {
		return storage.Character{}, fmt.Errorf("decode skills: %w", err)
	}
	return c, nil
}

// PutMagazine inserts or replaces a magazine. The stack is normalized
// before it is written.
func (s *Store) PutMagazine(ctx context.Context, m storage.MagazineRecord) (storage.MagazineRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.MagazineRecord{}, err
	}
	if strings.TrimSpace(m.CharacterID) == "" {
		return storage.MagazineRecord{}, fmt.Errorf("character id is required")
	}
	recordID, err := s.assignID(m.ID)
	if err != nil {
		return storage.MagazineRecord{}, err
	}
	m.ID = recordID
	m.Stack = m.Stack.Normalize()
	payload, err := json.Marshal(m.Stack)
	if err != nil {
		return storage.MagazineRecord{}, fmt.Errorf("marshal stack: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO magazines (id, character_id, name, stack_json, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   character_id = excluded.character_id,
		   name = excluded.name,
		   stack_json = excluded.stack_json,
		   updated_at = excluded.updated_at`,
		m.ID, m.CharacterID, m.Name, string(payload), toMillis(s.now()),
	)
	if err != nil {
		return storage.MagazineRecord{}, wrapWriteError("put magazine", err)
	}
	return m, nil
}

// GetMagazine fetches a magazine by ID.
func (s *Store) GetMagazine(ctx context.Context, magazineID string) (storage.MagazineRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.MagazineRecord{}, err
	}
	var (
		m       storage.MagazineRecord
		payload string
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, character_id, name, stack_json FROM magazines WHERE id = ?`,
		strings.TrimSpace(magazineID),
	).Scan(&m.ID, &m.CharacterID, &m.Name, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.MagazineRecord{}, fmt.Errorf("magazine %q: %w", magazineID, storage.ErrNotFound)
	}
	if err != nil {
		return storage.MagazineRecord{}, fmt.Errorf("get magazine: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &m.Stack); err != nil {
		return storage.MagazineRecord{}, fmt.Errorf("decode stack: %w", err)
	}
	return m, nil
}

// PutWeapon inserts or replaces a weapon.
func (s *Store) PutWeapon(ctx context.Context, w storage.WeaponRecord) (storage.WeaponRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.WeaponRecord{}, err
	}
	if strings.TrimSpace(w.CharacterID) == "" {
		return storage.WeaponRecord{}, fmt.Errorf("character id is required")
	}
	if strings.TrimSpace(w.Weapon.Name) == "" {
		return storage.WeaponRecord{}, fmt.Errorf("weapon name is required")
	}
	recordID, err := s.assignID(w.ID)
	if err != nil {
		return storage.WeaponRecord{}, err
	}
	w.ID = recordID
	payload, err := json.Marshal(w.Weapon)
	if err != nil {
		return storage.WeaponRecord{}, fmt.Errorf("marshal weapon: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO weapons (id, character_id, name, weapon_json, magazine_id, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   character_id = excluded.character_id,
		   name = excluded.name,
		   weapon_json = excluded.weapon_json,
		   magazine_id = excluded.magazine_id,
		   updated_at = excluded.updated_at`,
		w.ID, w.CharacterID, w.Weapon.Name, string(payload), nullString(w.MagazineID), toMillis(s.now()),
	)
	if err != nil {
		return storage.WeaponRecord{}, wrapWriteError("put weapon", err)
	}
	return w, nil
}

// GetWeapon fetches a weapon by ID.
func (s *Store) GetWeapon(ctx context.Context, weaponID string) (storage.WeaponRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.WeaponRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, character_id, weapon_json, magazine_id FROM weapons WHERE id = ?`,
		strings.TrimSpace(weaponID),
	)
	w, err := scanWeapon(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.WeaponRecord{}, fmt.Errorf("weapon %q: %w", weaponID, storage.ErrNotFound)
	}
	if err != nil {
		return storage.WeaponRecord{}, fmt.Errorf("get weapon: %w", err)
	}
	return w, nil
}

// ListWeapons returns a character's weapons ordered by name.
func (s *Store) ListWeapons(ctx context.Context, characterID string) ([]storage.WeaponRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, character_id, weapon_json, magazine_id FROM weapons
		 WHERE character_id = ? ORDER BY name, id`,
		strings.TrimSpace(characterID),
	)
	if err != nil {
		return nil, fmt.Errorf("list weapons: %w", err)
	}
	defer rows.Close()

	var weapons []storage.WeaponRecord
	for rows.Next() {
		w, err := scanWeapon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan weapon: %w", err)
		}
		weapons = append(weapons, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weapons: %w", err)
	}
	return weapons, nil
}

// PutArmor inserts or replaces an armor piece.
func (s *Store) PutArmor(ctx context.Context, a storage.ArmorRecord) (storage.ArmorRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ArmorRecord{}, err
	}
	if strings.TrimSpace(a.CharacterID) == "" {
		return storage.ArmorRecord{}, fmt.Errorf("character id is required")
	}
	recordID, err := s.assignID(a.ID)
	if err != nil {
		return storage.ArmorRecord{}, err
	}
	a.ID = recordID
	payload, err := json.Marshal(a.Piece)
	if err != nil {
		return storage.ArmorRecord{}, fmt.Errorf("marshal armor: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO armor (id, character_id, name, piece_json, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   character_id = excluded.character_id,
		   name = excluded.name,
		   piece_json = excluded.piece_json,
		   updated_at = excluded.updated_at`,
		a.ID, a.CharacterID, a.Piece.Name, string(payload), toMillis(s.now()),
	)
	if err != nil {
		return storage.ArmorRecord{}, wrapWriteError("put armor", err)
	}
	return a, nil
}

// ListArmor returns a character's armor pieces ordered by name.
func (s *Store) ListArmor(ctx context.Context, characterID string) ([]storage.ArmorRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, character_id, piece_json FROM armor
		 WHERE character_id = ? ORDER BY name, id`,
		strings.TrimSpace(characterID),
	)
	if err != nil {
		return nil, fmt.Errorf("list armor: %w", err)
	}
	defer rows.Close()

	var pieces []storage.ArmorRecord
	for rows.Next() {
		var (
			a       storage.ArmorRecord
			payload string
		)
		if err := rows.Scan(&a.ID, &a.CharacterID, &payload); err != nil {
			return nil, fmt.Errorf("scan armor: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &a.Piece); err != nil {
			return nil, fmt.Errorf("decode armor: %w", err)
		}
		pieces = append(pieces, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate armor: %w", err)
	}
	return pieces, nil
}

// GetWound fetches a wound by ID.
func (s *Store) GetWound(ctx context.Context, woundID string) (storage.WoundRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.WoundRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, character_id, location, severity, penalty FROM wounds WHERE id = ?`,
		strings.TrimSpace(woundID),
	)
	w, err := scanWound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.WoundRecord{}, fmt.Errorf("wound %q: %w", woundID, storage.ErrNotFound)
	}
	if err != nil {
		return storage.WoundRecord{}, fmt.Errorf("get wound: %w", err)
	}
	return w, nil
}

// ListWounds returns a character's wounds in the order they were taken.
func (s *Store) ListWounds(ctx context.Context, characterID string) ([]storage.WoundRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, character_id, location, severity, penalty FROM wounds
		 WHERE character_id = ? ORDER BY created_at, id`,
		strings.TrimSpace(characterID),
	)
	if err != nil {
		return nil, fmt.Errorf("list wounds: %w", err)
	}
	defer rows.Close()

	var wounds []storage.WoundRecord
	for rows.Next() {
		w, err := scanWound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wound: %w", err)
		}
		wounds = append(wounds, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wounds: %w", err)
	}
	return wounds, nil
}

// Apply writes a mutation batch in one transaction. The batch is validated
// up front, and any failing mutation rolls back the whole batch.
func (s *Store) Apply(ctx context.Context, mutations []storage.Mutation) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := storage.ValidateBatch(mutations); err != nil {
		return err
	}
	if len(mutations) == 0 {
		return nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mutation batch: %w", err)
	}
	now := toMillis(s.now())
	for i, m := range mutations {
		if err := s.applyOne(ctx, tx, m, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("mutation %d (%s): %w", i, m.Kind(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mutation batch: %w", err)
	}
	return nil
}

func (s *Store) applyOne(ctx context.Context, tx *sql.Tx, m storage.Mutation, now int64) error {
	switch m := m.(type) {
	case storage.CreateWound:
		woundID, err := s.assignID(m.Wound.ID)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO wounds (id, character_id, location, severity, penalty, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			woundID, m.Wound.CharacterID, string(m.Wound.Location), int(m.Wound.Severity), m.Wound.Penalty, now, now,
		)
		return wrapWriteError("create wound", err)
	case storage.UpdateWound:
		res, err := tx.ExecContext(ctx,
			`UPDATE wounds SET severity = ?, penalty = ?, updated_at = ? WHERE id = ?`,
			int(m.Severity), m.Penalty, now, m.WoundID,
		)
		return requireRow(res, err, "wound", m.WoundID)
	case storage.DeleteWound:
		res, err := tx.ExecContext(ctx, `DELETE FROM wounds WHERE id = ?`, m.WoundID)
		return requireRow(res, err, "wound", m.WoundID)
	case storage.UpdateMagazine:
		payload, err := json.Marshal(m.Stack.Normalize())
		if err != nil {
			return fmt.Errorf("marshal stack: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE magazines SET stack_json = ?, updated_at = ? WHERE id = ?`,
			string(payload), now, m.MagazineID,
		)
		return requireRow(res, err, "magazine", m.MagazineID)
	case storage.UpdateArmorDamage:
		return updateArmorDamage(ctx, tx, m, now)
	default:
		return fmt.Errorf("%w: unsupported kind %s", storage.ErrInvalidMutation, m.Kind())
	}
}

func updateArmorDamage(ctx context.Context, tx *sql.Tx, m storage.UpdateArmorDamage, now int64) error {
	var payload string
	err := tx.QueryRowContext(ctx, `SELECT piece_json FROM armor WHERE id = ?`, m.ArmorID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("armor %q: %w", m.ArmorID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load armor: %w", err)
	}
	var piece armor.Piece
	if err := json.Unmarshal([]byte(payload), &piece); err != nil {
		return fmt.Errorf("decode armor: %w", err)
	}
	if piece.Damage == nil {
		piece.Damage = map[wound.Location]float64{}
	}
	if m.Damage == 0 {
		delete(piece.Damage, m.Location)
	} else {
		piece.Damage[m.Location] = m.Damage
	}
	updated, err := json.Marshal(piece)
	if err != nil {
		return fmt.Errorf("marshal armor: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE armor SET piece_json = ?, updated_at = ? WHERE id = ?`,
		string(updated), now, m.ArmorID,
	)
	if err != nil {
		return fmt.Errorf("update armor: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWeapon(row rowScanner) (storage.WeaponRecord, error) {
	var (
		w          storage.WeaponRecord
		payload    string
		magazineID sql.NullString
	)
	if err := row.Scan(&w.ID, &w.CharacterID, &payload, &magazineID); err != nil {
		return storage.WeaponRecord{}, err
	}
	var weapon fire.Weapon
	if err := json.Unmarshal([]byte(payload), &weapon); err != nil {
		return storage.WeaponRecord{}, fmt.Errorf("decode weapon: %w", err)
	}
	w.Weapon = weapon
	w.MagazineID = magazineID.String
	return w, nil
}

func scanWound(row rowScanner) (storage.WoundRecord, error) {
	var (
		w        storage.WoundRecord
		location string
		severity int
	)
	if err := row.Scan(&w.ID, &w.CharacterID, &location, &severity, &w.Penalty); err != nil {
		return storage.WoundRecord{}, err
	}
	w.Location = wound.Location(location)
	w.Severity = wound.Severity(severity)
	return w, nil
}

func requireRow(res sql.Result, err error, kind, recordID string) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", kind, recordID, storage.ErrNotFound)
	}
	return nil
}

func wrapWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		case sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%s: referenced record: %w", op, storage.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func marshalCounts(values map[string]int) (string, error) {
	if values == nil {
		values = map[string]int{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func nullString(value string) sql.NullString {
	v := strings.TrimSpace(value)
	return sql.NullString{String: v, Valid: v != ""}
}

var _ storage.Store = (*Store)(nil)
