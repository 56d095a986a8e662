package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MockObserver mocks the Observer interface
type MockObserver struct {
	mock.Mock
}

func (m *MockObserver) Observe(method, code string, elapsed time.Duration) {
	m.Called(method, code, elapsed)
}

func TestMetrics_HandleGRPC(t *testing.T) {
	obs := new(MockObserver)
	obs.On("Observe", "/soldojo.v1.Ledger/InitProfile", "OK", mock.AnythingOfType("time.Duration")).Once()
	obs.On("Observe", "/soldojo.v1.Ledger/InitProfile", "AlreadyExists", mock.AnythingOfType("time.Duration")).Once()

	m := NewMetrics(obs)
	info := &grpc.UnaryServerInfo{FullMethod: "/soldojo.v1.Ledger/InitProfile"}

	_, err := m.HandleGRPC(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return nil, nil
	})
	assert.NoError(t, err)

	_, err = m.HandleGRPC(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return nil, status.Error(codes.AlreadyExists, "dup")
	})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	obs.AssertExpectations(t)
}
