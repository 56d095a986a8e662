package router

import (
	"context"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dtroode/soldojo-ledger/internal/api/grpc/handler"
	"github.com/dtroode/soldojo-ledger/internal/api/grpc/middleware"
	"github.com/dtroode/soldojo-ledger/internal/logger"
	"github.com/dtroode/soldojo-ledger/internal/model"
)

// ContextManager carries the signer and request id through a call.
type ContextManager interface {
	model.ContextManager
	middleware.RequestTagger
}

// Deps are the collaborators the router wires into the server.
type Deps struct {
	Program        handler.ProgramService
	Verifier       model.InstructionVerifier
	Nonces         model.NonceStore    // nil disables the replay guard
	Observer       middleware.Observer // nil disables call metrics
	ContextManager ContextManager
	Logger         *logger.Logger
}

// Router builds the gRPC server for the Ledger service.
type Router struct {
	deps   Deps
	health *health.Server
}

// New creates new gRPC Router instance.
func New(deps Deps) *Router {
	return &Router{
		deps:   deps,
		health: health.NewServer(),
	}
}

// authRequired matches every Ledger method. Health checks stay anonymous.
func authRequired(_ context.Context, c interceptors.CallMeta) bool {
	return strings.HasPrefix(c.FullMethod(), "/"+handler.ServiceName+"/")
}

// Register builds the server with logging, metrics and signer authentication interceptors.
func (r *Router) Register() *grpc.Server {
	logging := middleware.NewLogging(r.deps.Logger, r.deps.ContextManager)
	authenticate := middleware.NewAuthenticate(r.deps.Verifier, r.deps.Nonces, r.deps.ContextManager, r.deps.Logger)

	unary := []grpc.UnaryServerInterceptor{logging.HandleGRPC}
	if r.deps.Observer != nil {
		unary = append(unary, middleware.NewMetrics(r.deps.Observer).HandleGRPC)
	}
	unary = append(unary, selector.UnaryServerInterceptor(
		auth.UnaryServerInterceptor(authenticate.AuthFunc),
		selector.MatchFunc(authRequired),
	))

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(
			selector.StreamServerInterceptor(
				auth.StreamServerInterceptor(authenticate.AuthFunc),
				selector.MatchFunc(authRequired),
			),
		),
	)

	r.registerLedgerRoutes(s)
	r.registerHealth(s)

	return s
}

// Shutdown reports NOT_SERVING to health checkers.
func (r *Router) Shutdown() {
	r.health.Shutdown()
}

func (r *Router) registerLedgerRoutes(server *grpc.Server) {
	ledger := handler.NewLedger(r.deps.Program, r.deps.ContextManager, r.deps.Logger)
	handler.RegisterLedgerServer(server, ledger)
}

func (r *Router) registerHealth(server *grpc.Server) {
	r.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	r.health.SetServingStatus(handler.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, r.health)
}
