package testutil

import (
	"crypto/ed25519"
	"testing"

	"github.com/dtroode/soldojo-ledger/internal/model"
)

// ProgramID is the program id used across tests.
var ProgramID = model.MustParsePubkey("CzTcLkeLZvk77ZJQpaL5fCYVgxqU63JV8rZBwC1kQ3rQ")

// Keypair is a learner signing key.
type Keypair struct {
	Public  model.Pubkey
	Private ed25519.PrivateKey
}

// NewKeypair derives a deterministic keypair from a single seed byte.
func NewKeypair(t testing.TB, seed byte) Keypair {
	t.Helper()

	s := make([]byte, ed25519.SeedSize)
	for i := range s {
		s[i] = seed
	}
	priv := ed25519.NewKeyFromSeed(s)

	pub, err := model.PubkeyFromBytes(priv.Public().(ed25519.PublicKey))
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	return Keypair{Public: pub, Private: priv}
}
