package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func createItems() fstest.MapFS {
	return fstest.MapFS{
		"001_create.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE items(id TEXT PRIMARY KEY);\n-- +migrate Down\nDROP TABLE items;"),
		},
	}
}

func TestApplyMigrationsRecordsApplied(t *testing.T) {
	db := openInMemoryDB(t)

	applied, err := ApplyMigrations(context.Background(), db, createItems(), "")
	require.NoError(t, err)
	require.Equal(t, []string{"001_create.sql"}, applied)
	require.EqualValues(t, 1, queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"))
	require.True(t, tableExists(t, db, "items"))
}

func TestApplyMigrationsSkipsAlreadyApplied(t *testing.T) {
	db := openInMemoryDB(t)

	_, err := ApplyMigrations(context.Background(), db, createItems(), "")
	require.NoError(t, err)
	applied, err := ApplyMigrations(context.Background(), db, createItems(), "")
	require.NoError(t, err)
	require.Empty(t, applied)
	require.EqualValues(t, 1, queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"))
}

func TestApplyMigrationsDoesNotRecordFailedMigration(t *testing.T) {
	db := openInMemoryDB(t)

	bad := fstest.MapFS{
		"001_bad.sql": &fstest.MapFile{Data: []byte("-- +migrate Up\nCREAT table things(id INT);")},
	}
	_, err := ApplyMigrations(context.Background(), db, bad, "")
	require.Error(t, err)
	require.Zero(t, queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"))

	good := fstest.MapFS{
		"001_bad.sql": &fstest.MapFile{Data: []byte("-- +migrate Up\nCREATE TABLE things(id INTEGER PRIMARY KEY);")},
	}
	_, err = ApplyMigrations(context.Background(), db, good, "")
	require.NoError(t, err)
	require.EqualValues(t, 1, queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"))
}

func TestApplyMigrationsRespectsMigrationRoot(t *testing.T) {
	db := openInMemoryDB(t)

	migrations := fstest.MapFS{
		"wounds/001_wounds.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE wound_rows(id TEXT PRIMARY KEY);"),
		},
	}
	applied, err := ApplyMigrations(context.Background(), db, migrations, "wounds")
	require.NoError(t, err)
	require.Equal(t, []string{"wounds/001_wounds.sql"}, applied)
	require.True(t, tableExists(t, db, "wound_rows"))
}

func TestApplyMigrationsRequiresInputs(t *testing.T) {
	_, err := ApplyMigrations(context.Background(), nil, createItems(), "")
	require.Error(t, err)
	_, err = ApplyMigrations(context.Background(), openInMemoryDB(t), nil, "")
	require.Error(t, err)
}

func TestExtractUpMigration(t *testing.T) {
	require.Equal(t, "\nA;\n", ExtractUpMigration("-- +migrate Up\nA;\n-- +migrate Down\nB;"))
	require.Equal(t, "\nA;", ExtractUpMigration("-- +migrate Up\nA;"))
	require.Equal(t, "A;", ExtractUpMigration("A;"))
}

func TestIsAlreadyExistsError(t *testing.T) {
	require.True(t, IsAlreadyExistsError(errors.New("table items already exists")))
	require.True(t, IsAlreadyExistsError(errors.New("duplicate column name: x")))
	require.False(t, IsAlreadyExistsError(errors.New("syntax error")))
	require.False(t, IsAlreadyExistsError(nil))
}

func openInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// A single connection keeps every statement on the same in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func queryInt64(t *testing.T, db *sql.DB, query string) int64 {
	t.Helper()
	var value int64
	require.NoError(t, db.QueryRow(query).Scan(&value))
	return value
}

func tableExists(t *testing.T, db *sql.DB, tableName string) bool {
	t.Helper()
	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", tableName).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	require.NoError(t, err)
	return name == tableName
}
