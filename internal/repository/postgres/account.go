package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dtroode/soldojo-ledger/internal/model"
)

var (
	_ model.AccountStore = (*AccountRepository)(nil)
	_ model.AccountTx    = (*accountTx)(nil)
)

// AccountRepository stores program accounts in the accounts table.
type AccountRepository struct {
	db *Connection
}

func NewAccountRepository(db *Connection) *AccountRepository {
	return &AccountRepository{
		db: db,
	}
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const selectAccount = `
	SELECT address, program_id, data, created_at, updated_at
	FROM accounts
	WHERE address = $1`

func (r *AccountRepository) GetAccount(ctx context.Context, address model.Pubkey) (model.Account, error) {
	return scanAccount(r.db.QueryRow(ctx, selectAccount, address[:]))
}

// Atomic runs fn inside a Postgres transaction and commits only when fn succeeds.
func (r *AccountRepository) Atomic(ctx context.Context, fn func(tx model.AccountTx) error) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		return fn(&accountTx{tx: tx})
	})
}

type accountTx struct {
	tx pgx.Tx
}

func (t *accountTx) Exists(ctx context.Context, address model.Pubkey) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE address = $1)`, address[:]).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account existence: %w", err)
	}
	return exists, nil
}

// Lock takes a row lock held until the transaction finishes.
func (t *accountTx) Lock(ctx context.Context, address model.Pubkey) (model.Account, error) {
	return scanAccount(t.tx.QueryRow(ctx, selectAccount+` FOR UPDATE`, address[:]))
}

func (t *accountTx) Create(ctx context.Context, account model.Account) error {
	query := `
		INSERT INTO accounts (address, program_id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (address) DO NOTHING`

	createdAt, updatedAt := timestamps(account)

	cmd, err := t.tx.Exec(ctx, query, account.Address[:], account.ProgramID[:], account.Data, createdAt, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("allocate %s: %w", account.Address, model.ErrAccountAlreadyInUse)
	}
	return nil
}

func (t *accountTx) Update(ctx context.Context, account model.Account) error {
	query := `UPDATE accounts SET data = $2, updated_at = $3 WHERE address = $1`

	updatedAt := account.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	cmd, err := t.tx.Exec(ctx, query, account.Address[:], account.Data, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// timestamps returns the account's write times. Callers stamp them from their clock;
// zero values fall back to the wall clock.
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

func scanAccount(row rowScanner) (model.Account, error) {
	var (
		account   model.Account
		address   []byte
		programID []byte
	)

	err := row.Scan(&address, &programID, &account.Data, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{}, model.ErrNotFound
		}
		return model.Account{}, fmt.Errorf("failed to get account: %w", err)
	}

	if account.Address, err = model.PubkeyFromBytes(address); err != nil {
		return model.Account{}, fmt.Errorf("corrupt account address: %w", err)
	}
	if account.ProgramID, err = model.PubkeyFromBytes(programID); err != nil {
		return model.Account{}, fmt.Errorf("corrupt account program id: %w", err)
	}

	return account, nil
}
