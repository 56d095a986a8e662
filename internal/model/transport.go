package model

import (
	"context"
	"net"
	"time"
)

// SecurityLayer opens the listener the gRPC server accepts on.
type SecurityLayer interface {
	Listen(protocol, addr string) (net.Listener, error)
}

// Server is a long running network endpoint.
type Server interface {
	Start(securityLayer SecurityLayer) error
	Stop(ctx context.Context) error
	Address() string
}

// ContextManager carries the authenticated signer and request id through a request context.
type ContextManager interface {
	SetSignerToContext(ctx context.Context, signer Pubkey) context.Context
	GetSignerFromContext(ctx context.Context) (Pubkey, bool)
	GetRequestIDFromContext(ctx context.Context) (string, bool)
}

// SignedInstruction is the verified envelope of a caller's request.
type SignedInstruction struct {
	Signer    Pubkey
	Method    string
	Nonce     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// InstructionVerifier checks a caller signature over an instruction envelope.
type InstructionVerifier interface {
	Verify(token string) (SignedInstruction, error)
}

// NonceStore remembers instruction nonces so a signed envelope is accepted once.
type NonceStore interface {
	// Claim records nonce for signer and reports false when it was already used.
	Claim(ctx context.Context, signer Pubkey, nonce string, ttl time.Duration) (bool, error)
}
