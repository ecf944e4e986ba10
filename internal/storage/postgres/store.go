// Package postgres provides a Postgres-backed record store for deployments
// that share one database between several dicecore processes.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/louisbranch/dicecore/internal/combat/armor"
	"github.com/louisbranch/dicecore/internal/core/wound"
	"github.com/louisbranch/dicecore/internal/platform/id"
	"github.com/louisbranch/dicecore/internal/storage"
	"github.com/louisbranch/dicecore/internal/storage/postgres/migrations"
)

// Postgres SQLSTATE codes the store maps to storage errors.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Store persists records in Postgres.
type Store struct {
	pool  *pgxpool.Pool
	newID func() (string, error)
}

// IsDSN reports whether value is a Postgres connection URL.
func IsDSN(value string) bool {
	v := strings.TrimSpace(value)
	return strings.HasPrefix(v, "postgres://") || strings.HasPrefix(v, "postgresql://")
}

// Open connects to Postgres and applies embedded migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := applyMigrations(ctx, pool, migrations.FS); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{pool: pool, newID: id.NewID}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.pool == nil {
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
	_, err = s.pool.Exec(ctx,
		`INSERT INTO characters (id, name, attributes, skills)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   attributes = EXCLUDED.attributes,
		   skills = EXCLUDED.skills,
		   updated_at = now()`,
		c.ID, strings.TrimSpace(c.Name), attributes, skills,
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
		attributes, skills []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, attributes, skills FROM characters WHERE id = $1`,
		strings.TrimSpace(characterID),
	).Scan(&c.ID, &c.Name, &attributes, &skills)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.Character{}, fmt.Errorf("character %q: %w", characterID, storage.ErrNotFound)
	}
	if err != nil {
		return storage.Character{}, fmt.Errorf("get character: %w", err)
	}
	if err := json.Unmarshal(attributes, &c.Attributes); err != nil {
		return storage.Character{}, fmt.Errorf("decode attributes: %w", err)
	}
	if err := json.Unmarshal(skills, &c.Skills); err != nil {
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
	_, err = s.pool.Exec(ctx,
		`INSERT INTO magazines (id, character_id, name, stack)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
		   character_id = EXCLUDED.character_id,
		   name = EXCLUDED.name,
		   stack = EXCLUDED.stack,
		   updated_at = now()`,
		m.ID, m.CharacterID, m.Name, payload,
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
		payload []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, character_id, name, stack FROM magazines WHERE id = $1`,
		strings.TrimSpace(magazineID),
	).Scan(&m.ID, &m.CharacterID, &m.Name, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.MagazineRecord{}, fmt.Errorf("magazine %q: %w", magazineID, storage.ErrNotFound)
	}
	if err != nil {
		return storage.MagazineRecord{}, fmt.Errorf("get magazine: %w", err)
	}
	if err := json.Unmarshal(payload, &m.Stack); err != nil {
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
	_, err = s.pool.Exec(ctx,
		`INSERT INTO weapons (id, character_id, name, weapon, magazine_id)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   character_id = EXCLUDED.character_id,
		   name = EXCLUDED.name,
		   weapon = EXCLUDED.weapon,
		   magazine_id = EXCLUDED.magazine_id,
		   updated_at = now()`,
		w.ID, w.CharacterID, w.Weapon.Name, payload, nullable(w.MagazineID),
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
	row := s.pool.QueryRow(ctx,
		`SELECT id, character_id, weapon, magazine_id FROM weapons WHERE id = $1`,
		strings.TrimSpace(weaponID),
	)
	w, err := scanWeapon(row)
	if errors.Is(err, pgx.ErrNoRows) {
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
	rows, err := s.pool.Query(ctx,
		`SELECT id, character_id, weapon, magazine_id FROM weapons
		 WHERE character_id = $1 ORDER BY name, id`,
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
	_, err = s.pool.Exec(ctx,
		`INSERT INTO armor (id, character_id, name, piece)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
		   character_id = EXCLUDED.character_id,
		   name = EXCLUDED.name,
		   piece = EXCLUDED.piece,
		   updated_at = now()`,
		a.ID, a.CharacterID, a.Piece.Name, payload,
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
	rows, err := s.pool.Query(ctx,
		`SELECT id, character_id, piece FROM armor
		 WHERE character_id = $1 ORDER BY name, id`,
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
			payload []byte
		)
		if err := rows.Scan(&a.ID, &a.CharacterID, &payload); err != nil {
			return nil, fmt.Errorf("scan armor: %w", err)
		}
		if err := json.Unmarshal(payload, &a.Piece); err != nil {
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
	row := s.pool.QueryRow(ctx,
		`SELECT id, character_id, location, severity, penalty FROM wounds WHERE id = $1`,
		strings.TrimSpace(woundID),
	)
	w, err := scanWound(row)
	if errors.Is(err, pgx.ErrNoRows) {
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
	rows, err := s.pool.Query(ctx,
		`SELECT id, character_id, location, severity, penalty FROM wounds
		 WHERE character_id = $1 ORDER BY seq`,
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

// Apply writes a mutation batch in one transaction. Any failing mutation
// rolls back the whole batch.
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin mutation batch: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, m := range mutations {
		if err := s.applyOne(ctx, tx, m); err != nil {
			return fmt.Errorf("mutation %d (%s): %w", i, m.Kind(), err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit mutation batch: %w", err)
	}
	return nil
}

func (s *Store) applyOne(ctx context.Context, tx pgx.Tx, m storage.Mutation) error {
	switch m := m.(type) {
	case storage.CreateWound:
		woundID, err := s.assignID(m.Wound.ID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO wounds (id, character_id, location, severity, penalty)
			 VALUES ($1, $2, $3, $4, $5)`,
			woundID, m.Wound.CharacterID, string(m.Wound.Location), int(m.Wound.Severity), m.Wound.Penalty,
		)
		return wrapWriteError("create wound", err)
	case storage.UpdateWound:
		tag, err := tx.Exec(ctx,
			`UPDATE wounds SET severity = $1, penalty = $2, updated_at = now() WHERE id = $3`,
			int(m.Severity), m.Penalty, m.WoundID,
		)
		return requireRow(tag, err, "wound", m.WoundID)
	case storage.DeleteWound:
		tag, err := tx.Exec(ctx, `DELETE FROM wounds WHERE id = $1`, m.WoundID)
		return requireRow(tag, err, "wound", m.WoundID)
	case storage.UpdateMagazine:
		payload, err := json.Marshal(m.Stack.Normalize())
		if err != nil {
			return fmt.Errorf("marshal stack: %w", err)
		}
		tag, err := tx.Exec(ctx,
			`UPDATE magazines SET stack = $1, updated_at = now() WHERE id = $2`,
			payload, m.MagazineID,
		)
		return requireRow(tag, err, "magazine", m.MagazineID)
	case storage.UpdateArmorDamage:
		return updateArmorDamage(ctx, tx, m)
	default:
		return fmt.Errorf("%w: unsupported kind %s", storage.ErrInvalidMutation, m.Kind())
	}
}

// updateArmorDamage locks the armor row so concurrent wear on the same
// piece is applied in sequence.
func updateArmorDamage(ctx context.Context, tx pgx.Tx, m storage.UpdateArmorDamage) error {
	var payload []byte
	err := tx.QueryRow(ctx, `SELECT piece FROM armor WHERE id = $1 FOR UPDATE`, m.ArmorID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("armor %q: %w", m.ArmorID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load armor: %w", err)
	}
	var piece armor.Piece
	if err := json.Unmarshal(payload, &piece); err != nil {
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
	if _, err := tx.Exec(ctx, `UPDATE armor SET piece = $1, updated_at = now() WHERE id = $2`, updated, m.ArmorID); err != nil {
		return fmt.Errorf("update armor: %w", err)
	}
	return nil
}

func scanWeapon(row pgx.Row) (storage.WeaponRecord, error) {
	var (
		w          storage.WeaponRecord
		payload    []byte
		magazineID *string
	)
	if err := row.Scan(&w.ID, &w.CharacterID, &payload, &magazineID); err != nil {
		return storage.WeaponRecord{}, err
	}
	if err := json.Unmarshal(payload, &w.Weapon); err != nil {
		return storage.WeaponRecord{}, fmt.Errorf("decode weapon: %w", err)
	}
	if magazineID != nil {
		w.MagazineID = *magazineID
	}
	return w, nil
}

func scanWound(row pgx.Row) (storage.WoundRecord, error) {
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

func requireRow(tag pgconn.CommandTag, err error, kind, recordID string) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %q: %w", kind, recordID, storage.ErrNotFound)
	}
	return nil
}

func wrapWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		case foreignKeyViolation:
			return fmt.Errorf("%s: referenced record: %w", op, storage.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func marshalCounts(values map[string]int) ([]byte, error) {
	if values == nil {
		values = map[string]int{}
	}
	return json.Marshal(values)
}

func nullable(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}

var _ storage.Store = (*Store)(nil)
