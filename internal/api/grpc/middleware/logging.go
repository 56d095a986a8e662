package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dtroode/soldojo-ledger/internal/logger"
)

const requestIDHeader = "x-request-id"

// RequestTagger stores the request id on the context.
type RequestTagger interface {
	SetRequestIDToContext(ctx context.Context, requestID string) context.Context
}

// Logging is a unary interceptor that logs gRPC requests and results.
type Logging struct {
	logger *logger.Logger
	tagger RequestTagger
}

// NewLogging creates a new Logging middleware.
func NewLogging(logger *logger.Logger, tagger RequestTagger) *Logging {
	return &Logging{logger: logger, tagger: tagger}
}

// HandleGRPC tags the call with a request id and logs method, duration and status.
func (l *Logging) HandleGRPC(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	requestID := incomingRequestID(ctx)
	ctx = l.tagger.SetRequestIDToContext(ctx, requestID)
	// Fails only outside a real server stream.
	_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, requestID))

	log := l.logger.With("request_id", requestID, "method", info.FullMethod)
	log.Debug("gRPC request started")

	resp, err := handler(ctx, req)

	statusCode := codes.OK
	if err != nil {
		if st, ok := status.FromError(err); ok {
			statusCode = st.Code()
		} else {
			statusCode = codes.Internal
		}
	}

	log.Info("gRPC request completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"status", statusCode.String())

	if statusCode == codes.Internal || statusCode == codes.Unknown || statusCode == codes.Unavailable {
		log.Error("gRPC request failed",
			"error", err.Error(),
			"status", statusCode.String())
	}

	return resp, err
}

func incomingRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(requestIDHeader); len(ids) > 0 && ids[0] != "" {
			return ids[0]
		}
	}
	return uuid.NewString()
}
