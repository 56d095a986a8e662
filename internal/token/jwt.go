// Package token signs and verifies instruction envelopes.
//
// Every mutating call carries a compact JWT signed with the learner's own
// ed25519 key. The subject is the learner's base58 public key, which is also
// the verification key, so no shared secret or key registry is involved.
package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/soldojo-ledger/internal/model"
)

// ErrInvalidInstruction wraps every verification failure.
var ErrInvalidInstruction = errors.New("invalid signed instruction")

// Claims is the instruction envelope payload.
type Claims struct {
	jwt.RegisteredClaims
	Method string `json:"method"`
}

// Sign produces an envelope for method signed by priv, valid for ttl from issuedAt.
func Sign(priv ed25519.PrivateKey, method string, issuedAt time.Time, ttl time.Duration) (string, error) {
	signer, err := model.PubkeyFromBytes(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return "", fmt.Errorf("failed to read signer key: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   signer.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		Method: method,
	})

	tokenString, err := token.SignedString(priv)
	if err != nil {
		return "", fmt.Errorf("failed to sign instruction: %w", err)
	}
	return tokenString, nil
}

var _ model.InstructionVerifier = (*Verifier)(nil)

// Verifier checks envelope signatures against the key named in the subject.
type Verifier struct {
	maxAge time.Duration
	now    func() time.Time
}

// NewVerifier creates a Verifier rejecting envelopes whose lifetime exceeds maxAge.
func NewVerifier(maxAge time.Duration) *Verifier {
	return &Verifier{maxAge: maxAge, now: time.Now}
}

// Verify validates tokenString and returns the decoded envelope.
func (v *Verifier) Verify(tokenString string) (model.SignedInstruction, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		signer, err := model.ParsePubkey(claims.Subject)
		if err != nil {
			return nil, fmt.Errorf("bad subject: %w", err)
		}
		return ed25519.PublicKey(signer.Bytes()), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return model.SignedInstruction{}, fmt.Errorf("%w: %w", ErrInvalidInstruction, err)
	}

	if claims.ID == "" {
		return model.SignedInstruction{}, fmt.Errorf("%w: missing nonce", ErrInvalidInstruction)
	}
	if claims.Method == "" {
		return model.SignedInstruction{}, fmt.Errorf("%w: missing method", ErrInvalidInstruction)
	}
	if claims.IssuedAt == nil {
		return model.SignedInstruction{}, fmt.Errorf("%w: missing issue time", ErrInvalidInstruction)
	}

	lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if v.maxAge > 0 && lifetime > v.maxAge {
		return model.SignedInstruction{}, fmt.Errorf("%w: lifetime %s exceeds %s", ErrInvalidInstruction, lifetime, v.maxAge)
	}

	// ParsePubkey already succeeded inside the key func.
	signer, _ := model.ParsePubkey(claims.Subject)

	return model.SignedInstruction{
		Signer:    signer,
		Method:    claims.Method,
		Nonce:     claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
