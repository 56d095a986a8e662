// Package sqlite is the single-node account store used for local runs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dtroode/soldojo-ledger/database"
	"github.com/dtroode/soldojo-ledger/internal/logger"
	"github.com/dtroode/soldojo-ledger/internal/model"
)

var (
	_ model.AccountStore = (*Store)(nil)
	_ model.AccountTx    = (*accountTx)(nil)
)

// Store keeps program accounts in a SQLite database.
//
// SQLite allows one writer at a time, so the pool is capped at a single
// connection and every Atomic call runs to completion before the next starts.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies migrations, logging them to log.
func Open(path string, log *logger.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := database.MigrateDB(db, database.DialectSQLite, log); err != nil {
		db.Close()
		return nil, err
	}

	return newStore(db), nil
}

func newStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

const selectAccount = `
	SELECT address, program_id, data, created_at, updated_at
	FROM accounts
	WHERE address = ?`

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) GetAccount(ctx context.Context, address model.Pubkey) (model.Account, error) {
	return getAccount(ctx, s.db, address)
}

// Atomic runs fn in a transaction, rolling back when fn or the commit fails.
func (s *Store) Atomic(ctx context.Context, fn func(tx model.AccountTx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("failed to rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(&accountTx{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type accountTx struct {
	tx *sql.Tx
}

func (t *accountTx) Exists(ctx context.Context, address model.Pubkey) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE address = ?)`, address[:]).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account existence: %w", err)
	}
	return exists, nil
}

// Lock reads the account. The single connection already excludes other writers.
func (t *accountTx) Lock(ctx context.Context, address model.Pubkey) (model.Account, error) {
	return getAccount(ctx, t.tx, address)
}

func (t *accountTx) Create(ctx context.Context, account model.Account) error {
	query := `
		INSERT INTO accounts (address, program_id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (address) DO NOTHING`

	createdAt, updatedAt := timestamps(account)

	res, err := t.tx.ExecContext(ctx, query, account.Address[:], account.ProgramID[:], account.Data, createdAt, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("allocate %s: %w", account.Address, model.ErrAccountAlreadyInUse)
	}
	return nil
}

func (t *accountTx) Update(ctx context.Context, account model.Account) error {
	updatedAt := account.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	res, err := t.tx.ExecContext(ctx, `UPDATE accounts SET data = ?, updated_at = ? WHERE address = ?`,
		account.Data, updatedAt, account.Address[:])
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// timestamps returns the account's write times, falling back to the wall clock when unset.
func timestamps(account model.Account) (createdAt, updatedAt time.Time) {
	createdAt = account.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt = account.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	return createdAt, updatedAt
}

func getAccount(ctx context.Context, q querier, address model.Pubkey) (model.Account, error) {
	var (
		account   model.Account
		addr      []byte
		programID []byte
	)

	err := q.QueryRowContext(ctx, selectAccount, address[:]).
		Scan(&addr, &programID, &account.Data, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, model.ErrNotFound
		}
		return model.Account{}, fmt.Errorf("failed to get account: %w", err)
	}

	if account.Address, err = model.PubkeyFromBytes(addr); err != nil {
		return model.Account{}, fmt.Errorf("corrupt account address: %w", err)
	}
	if account.ProgramID, err = model.PubkeyFromBytes(programID); err != nil {
		return model.Account{}, fmt.Errorf("corrupt account program id: %w", err)
	}
	return account, nil
}
