package database

import (
	"bytes"
	"database/sql"
	"io/fs"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/soldojo-ledger/internal/logger"
)

func TestMigrationsDir(t *testing.T) {
	dir, err := migrationsDir(DialectPostgres)
	require.NoError(t, err)
	assert.Equal(t, "migrations/postgres", dir)

	dir, err = migrationsDir(DialectSQLite)
	require.NoError(t, err)
	assert.Equal(t, "migrations/sqlite", dir)

	_, err = migrationsDir("mysql")
	assert.Error(t, err)
}

func TestEmbeddedMigrations(t *testing.T) {
	for _, dialect := range []string{DialectPostgres, DialectSQLite} {
		dir, err := migrationsDir(dialect)
		require.NoError(t, err)

		entries, err := fs.ReadDir(migrations, dir)
		require.NoError(t, err)
		require.NotEmpty(t, entries, dialect)

		body, err := fs.ReadFile(migrations, dir+"/"+entries[0].Name())
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- +goose Up")
		assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS accounts")
	}
}

func TestMigrateDB_LogsThroughLogger(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var buf bytes.Buffer
	require.NoError(t, MigrateDB(db, DialectSQLite, logger.NewWithFormat(0, "json", &buf)))

	out := buf.String()
	assert.Contains(t, out, `"component":"migrations"`)
	assert.Contains(t, out, "successfully migrated")
	assert.NotContains(t, out, "goose: ")

	var tables int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'accounts'`).Scan(&tables))
	assert.Equal(t, 1, tables)
}

func TestMigrateDB_NilLoggerIsQuiet(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, MigrateDB(db, DialectSQLite, nil))
	require.NoError(t, MigrateDB(db, DialectSQLite, nil), "migrating twice is a no-op")
}

func TestGooseMessage(t *testing.T) {
	assert.Equal(t, "successfully migrated database to version: 1", gooseMessage("goose: successfully migrated database to version: %d\n", 1))
	assert.Equal(t, "OK   00001_create_accounts.sql", gooseMessage("OK   %s\n", "00001_create_accounts.sql"))
}
