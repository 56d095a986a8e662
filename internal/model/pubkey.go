package model

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// PubkeyLength is the size of an account address or signer key in bytes.
const PubkeyLength = 32

// Pubkey identifies a signer or an account address.
type Pubkey [PubkeyLength]byte

// ParsePubkey decodes a base58 encoded 32 byte key.
func ParsePubkey(s string) (Pubkey, error) {
	if s == "" {
		return Pubkey{}, fmt.Errorf("empty public key")
	}
	raw := base58.Decode(s)
	if len(raw) != PubkeyLength {
		return Pubkey{}, fmt.Errorf("invalid public key %q: decoded length %d", s, len(raw))
	}
	return PubkeyFromBytes(raw)
}

// MustParsePubkey is like ParsePubkey but panics on error.
func MustParsePubkey(s string) Pubkey {
	pk, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PubkeyFromBytes copies raw into a Pubkey.
func PubkeyFromBytes(raw []byte) (Pubkey, error) {
	var pk Pubkey
	if len(raw) != PubkeyLength {
		return pk, fmt.Errorf("invalid public key length %d", len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// String returns the base58 form.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// Bytes returns a copy of the key as a slice.
func (p Pubkey) Bytes() []byte {
	b := make([]byte, PubkeyLength)
	copy(b, p[:])
	return b
}

// IsZero reports whether the key is all zeroes.
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}
