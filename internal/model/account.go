package model

import (
	"context"
	"time"
)

// Account is a raw record held by the account store.
type Account struct {
	Address   Pubkey
	ProgramID Pubkey
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccountStore is the key-addressed account storage the program runs on.
type AccountStore interface {
	// GetAccount returns the account at address or ErrNotFound.
	GetAccount(ctx context.Context, address Pubkey) (Account, error)
	// Atomic runs fn in a single transaction. Writes are persisted only when fn returns nil.
	Atomic(ctx context.Context, fn func(tx AccountTx) error) error
}

// AccountTx is the transactional view handed to a single instruction.
type AccountTx interface {
	Exists(ctx context.Context, address Pubkey) (bool, error)
	// Lock loads the account and holds it exclusively until the transaction ends.
	Lock(ctx context.Context, address Pubkey) (Account, error)
	// Create allocates a new account and fails with ErrAccountAlreadyInUse if the address is occupied.
	Create(ctx context.Context, account Account) error
	Update(ctx context.Context, account Account) error
}
