package middleware

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dtroode/soldojo-ledger/internal/logger"
	"github.com/dtroode/soldojo-ledger/internal/model"
)

// minNonceTTL keeps a nonce claimed even when the envelope is about to expire.
const minNonceTTL = time.Second

// Authenticate verifies signed instruction envelopes and injects the signer into context.
type Authenticate struct {
	verifier       model.InstructionVerifier
	nonces         model.NonceStore
	contextManager model.ContextManager
	logger         *logger.Logger
	now            func() time.Time
}

// NewAuthenticate creates the middleware. nonces may be nil to disable the replay guard.
func NewAuthenticate(
	verifier model.InstructionVerifier,
	nonces model.NonceStore,
	contextManager model.ContextManager,
	logger *logger.Logger,
) *Authenticate {
	return &Authenticate{
		verifier:       verifier,
		nonces:         nonces,
		contextManager: contextManager,
		logger:         logger,
		now:            time.Now,
	}
}

// AuthFunc checks the envelope signature, the method it was signed for and its nonce.
func (m *Authenticate) AuthFunc(ctx context.Context) (context.Context, error) {
	var tokenString string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if authHeaders := md.Get("authorization"); len(authHeaders) > 0 {
			tokenString = strings.TrimPrefix(authHeaders[0], "Bearer ")
		}
	}
	if tokenString == "" {
		return nil, status.Error(codes.Unauthenticated, "missing signed instruction")
	}

	instruction, err := m.verifier.Verify(tokenString)
	if err != nil {
		m.logger.Debug("rejected signed instruction", "error", err)
		return nil, status.Error(codes.Unauthenticated, "invalid signed instruction")
	}

	method, ok := grpc.Method(ctx)
	if !ok || instruction.Method != method {
		return nil, status.Error(codes.Unauthenticated, "instruction was signed for a different method")
	}

	if m.nonces != nil {
		ttl := instruction.ExpiresAt.Sub(m.now())
		if ttl < minNonceTTL {
			ttl = minNonceTTL
		}
		fresh, err := m.nonces.Claim(ctx, instruction.Signer, instruction.Nonce, ttl)
		if err != nil {
			m.logger.Error("failed to claim instruction nonce", "signer", instruction.Signer.String(), "error", err)
			return nil, status.Error(codes.Unavailable, "replay guard unavailable")
		}
		if !fresh {
			return nil, status.Error(codes.Unauthenticated, "instruction already used")
		}
	}

	return m.contextManager.SetSignerToContext(ctx, instruction.Signer), nil
}
