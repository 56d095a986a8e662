package middleware

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Observer records finished calls.
type Observer interface {
	Observe(method, code string, elapsed time.Duration)
}

// Metrics is a unary interceptor feeding call outcomes to an Observer.
type Metrics struct {
	observer Observer
}

func NewMetrics(observer Observer) *Metrics {
	return &Metrics{observer: observer}
}

func (m *Metrics) HandleGRPC(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	m.observer.Observe(info.FullMethod, status.Code(err).String(), time.Since(start))
	return resp, err
}
