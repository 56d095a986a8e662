// Package redis remembers consumed instruction nonces so signed requests cannot be replayed.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dtroode/soldojo-ledger/internal/model"
)

const keyPrefix = "soldojo:nonce:"

var _ model.NonceStore = (*NonceStore)(nil)

// ErrEmptyNonce is returned when a signed instruction carries no nonce.
var ErrEmptyNonce = errors.New("nonce cannot be empty")

// setNXer is the slice of *redis.Client the store needs.
type setNXer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

type NonceStore struct {
	client setNXer
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func NewNonceStore(client *redis.Client) *NonceStore {
	return &NonceStore{client: client}
}

func newNonceStore(client setNXer) *NonceStore {
	return &NonceStore{client: client}
}

// Claim marks nonce as used by signer for ttl. It reports false if the nonce was seen before.
func (s *NonceStore) Claim(ctx context.Context, signer model.Pubkey, nonce string, ttl time.Duration) (bool, error) {
	if nonce == "" {
		return false, ErrEmptyNonce
	}

	ok, err := s.client.SetNX(ctx, nonceKey(signer, nonce), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim nonce: %w", err)
	}
	return ok, nil
}

func nonceKey(signer model.Pubkey, nonce string) string {
	return keyPrefix + signer.String() + ":" + nonce
}
