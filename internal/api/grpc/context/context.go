package context

import (
	"context"

	"github.com/dtroode/soldojo-ledger/internal/model"
)

type contextKey int

const (
	signerKey contextKey = iota
	requestIDKey
)

// Manager stores per-request values that interceptors hand to handlers.
type Manager struct{}

// NewManager creates a new gRPC context manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// SetSignerToContext records the authenticated signer for the rest of the call chain.
func (m *Manager) SetSignerToContext(ctx context.Context, signer model.Pubkey) context.Context {
	return context.WithValue(ctx, signerKey, signer)
}

// GetSignerFromContext returns the signer placed by the authentication interceptor.
func (m *Manager) GetSignerFromContext(ctx context.Context) (model.Pubkey, bool) {
	signer, ok := ctx.Value(signerKey).(model.Pubkey)
	if !ok || signer.IsZero() {
		return model.Pubkey{}, false
	}
	return signer, true
}

// SetRequestIDToContext tags the context with the id used to correlate log lines.
func (m *Manager) SetRequestIDToContext(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestIDFromContext returns the request id set by the logging interceptor.
func (m *Manager) GetRequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}
