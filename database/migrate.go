// Package database holds the embedded schema migrations for the account store.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dtroode/soldojo-ledger/internal/logger"
)

// Dialects supported by the embedded migrations.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// goose keeps its dialect, filesystem and logger in package globals.
var gooseMu sync.Mutex

// gooseLogger routes goose output through the application logger.
type gooseLogger struct {
	log *logger.Logger
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.log.Info(gooseMessage(format, v...), "component", "migrations")
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.log.Fatal(gooseMessage(format, v...), "component", "migrations")
}

func gooseMessage(format string, v ...interface{}) string {
	return strings.TrimSpace(strings.TrimPrefix(fmt.Sprintf(format, v...), "goose: "))
}

// Migrate applies the Postgres migrations to the database at dsn. A nil log discards goose output.
func Migrate(ctx context.Context, dsn string, log *logger.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect for migrations: %w", err)
	}

	return MigrateDB(db, DialectPostgres, log)
}

// MigrateDB applies the migrations for dialect to an open database.
func MigrateDB(db *sql.DB, dialect string, log *logger.Logger) error {
	dir, err := migrationsDir(dialect)
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	if log == nil {
		log = logger.NewWithFormat(0, "text", io.Discard)
	}
	goose.SetLogger(gooseLogger{log: log})

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

func migrationsDir(dialect string) (string, error) {
	switch dialect {
	case DialectPostgres:
		return "migrations/postgres", nil
	case DialectSQLite:
		return "migrations/sqlite", nil
	default:
		return "", fmt.Errorf("unsupported migration dialect %q", dialect)
	}
}
