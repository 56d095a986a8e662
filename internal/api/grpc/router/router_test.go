package router

import (
	"context"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	grpcctx "github.com/dtroode/soldojo-ledger/internal/api/grpc/context"
	"github.com/dtroode/soldojo-ledger/internal/api/grpc/handler"
	"github.com/dtroode/soldojo-ledger/internal/address"
	"github.com/dtroode/soldojo-ledger/internal/model"
	"github.com/dtroode/soldojo-ledger/internal/repository/sqlite"
	"github.com/dtroode/soldojo-ledger/internal/service"
	"github.com/dtroode/soldojo-ledger/internal/testutil"
	"github.com/dtroode/soldojo-ledger/internal/token"
)

// memoryNonces is an in-process NonceStore.
type memoryNonces struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func (m *memoryNonces) Claim(_ context.Context, signer model.Pubkey, nonce string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := signer.String() + ":" + nonce
	if _, ok := m.seen[key]; ok {
		return false, nil
	}
	m.seen[key] = struct{}{}
	return true, nil
}

// countingObserver tallies calls per method and code.
type countingObserver struct {
	mu    sync.Mutex
	calls map[string]int
}

func (o *countingObserver) Observe(method, code string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls[method+" "+code]++
}

func (o *countingObserver) count(key string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[key]
}

type harness struct {
	client   *handler.LedgerClient
	health   healthpb.HealthClient
	observer *countingObserver
}

func startServer(t *testing.T) harness {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"), testutil.MakeNoopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	certificates := service.NewCertificates(nil, "https://soldojo.dev", "https://soldojo.dev/certificate-badge.png", testutil.MakeNoopLogger())
	program := service.NewProgram(testutil.ProgramID, store, testutil.NewFixedClock(time.Unix(1735689600, 0)), certificates, testutil.MakeNoopLogger())
	observer := &countingObserver{calls: map[string]int{}}

	r := New(Deps{
		Program:        program,
		Verifier:       token.NewVerifier(5 * time.Minute),
		Nonces:         &memoryNonces{seen: map[string]struct{}{}},
		Observer:       observer,
		ContextManager: grpcctx.NewManager(),
		Logger:         testutil.MakeNoopLogger(),
	})
	s := r.Register()

	lis := bufconn.Listen(1 << 20)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return harness{
		client:   handler.NewLedgerClient(conn),
		health:   healthpb.NewHealthClient(conn),
		observer: observer,
	}
}

func signedContext(t *testing.T, kp testutil.Keypair, method string) context.Context {
	t.Helper()
	tok, err := token.Sign(kp.Private, method, time.Now(), time.Minute)
	require.NoError(t, err)
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+tok)
}

func mustStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func errorReason(t *testing.T, err error) string {
	t.Helper()
	st, ok := status.FromError(err)
	require.True(t, ok)
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.GetReason()
		}
	}
	return ""
}

func TestLedger_EndToEnd(t *testing.T) {
	h := startServer(t)
	learner := testutil.NewKeypair(t, 11)
	deriver := address.NewDeriver(testutil.ProgramID)
	profileAddr, _, err := deriver.Profile(learner.Public)
	require.NoError(t, err)

	resp, err := h.client.InitProfile(signedContext(t, learner, handler.MethodInitProfile), nil)
	require.NoError(t, err)
	assert.Equal(t, profileAddr.String(), resp.AsMap()["address"])
	assert.Equal(t, learner.Public.String(), resp.AsMap()["authority"])

	record := mustStruct(t, map[string]any{"course_slug": "rust-101", "xp_earned": 500})
	resp, err = h.client.RecordCompletion(signedContext(t, learner, handler.MethodRecordCompletion), record)
	require.NoError(t, err)
	profile := resp.AsMap()["profile"].(map[string]any)
	assert.Equal(t, float64(1), profile["courses_completed"])
	assert.Equal(t, "500", profile["total_xp"])

	_, err = h.client.RecordCompletion(signedContext(t, learner, handler.MethodRecordCompletion), record)
	assert.Equal(t, codes.AlreadyExists, status.Code(err))
	assert.Equal(t, "AccountAlreadyInUse", errorReason(t, err))

	_, err = h.client.RecordCompletion(signedContext(t, learner, handler.MethodRecordCompletion),
		mustStruct(t, map[string]any{"course_slug": "go-201", "xp_earned": 9999}))
	require.NoError(t, err)

	resp, err = h.client.GetProfile(signedContext(t, learner, handler.MethodGetProfile), nil)
	require.NoError(t, err)
	profile = resp.AsMap()["profile"].(map[string]any)
	assert.Equal(t, float64(2), profile["courses_completed"])
	assert.Equal(t, "10499", profile["total_xp"])

	resp, err = h.client.GetCompletion(signedContext(t, learner, handler.MethodGetCompletion),
		mustStruct(t, map[string]any{"course_slug": "go-201"}))
	require.NoError(t, err)
	completion := resp.AsMap()["completion"].(map[string]any)
	assert.Equal(t, float64(9999), completion["xp_earned"])
	assert.Equal(t, "1735689600", completion["completed_at"])

	resp, err = h.client.GetCertificate(signedContext(t, learner, handler.MethodGetCertificate),
		mustStruct(t, map[string]any{"course_slug": "go-201"}))
	require.NoError(t, err)
	certificate := resp.AsMap()["certificate"].(map[string]any)
	assert.Equal(t, "SolDojo Certificate: go-201", certificate["name"])
	assert.Equal(t, "https://soldojo.dev/courses/go-201", certificate["external_url"])

	_, err = h.client.GetCertificate(signedContext(t, learner, handler.MethodGetCertificate),
		mustStruct(t, map[string]any{"course_slug": "never-taken"}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	assert.Equal(t, 1, h.observer.count(handler.MethodRecordCompletion+" AlreadyExists"))
	assert.Equal(t, 2, h.observer.count(handler.MethodRecordCompletion+" OK"))
}

func TestLedger_EndToEnd_Authorization(t *testing.T) {
	h := startServer(t)
	alice := testutil.NewKeypair(t, 21)
	bob := testutil.NewKeypair(t, 22)

	_, err := h.client.InitProfile(context.Background(), nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err), "unsigned call")

	_, err = h.client.InitProfile(signedContext(t, alice, handler.MethodRecordCompletion), nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err), "envelope signed for another method")

	ctx := signedContext(t, alice, handler.MethodInitProfile)
	aliceProfile, err := h.client.InitProfile(ctx, nil)
	require.NoError(t, err)
	_, err = h.client.InitProfile(ctx, nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err), "replayed envelope")

	_, err = h.client.InitProfile(signedContext(t, bob, handler.MethodInitProfile), nil)
	require.NoError(t, err)

	_, err = h.client.RecordCompletion(signedContext(t, bob, handler.MethodRecordCompletion), mustStruct(t, map[string]any{
		"course_slug": "rust-101",
		"xp_earned":   100,
		"profile":     aliceProfile.AsMap()["address"],
	}))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	assert.Equal(t, "ConstraintHasOne", errorReason(t, err))

	_, err = h.client.RecordCompletion(signedContext(t, alice, handler.MethodRecordCompletion),
		mustStruct(t, map[string]any{"course_slug": "rust-101", "xp_earned": 10_001}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, "XPTooHigh", errorReason(t, err))
}

func TestLedger_HealthIsAnonymous(t *testing.T) {
	h := startServer(t)

	resp, err := h.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: handler.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestRouter_Shutdown(t *testing.T) {
	r := New(Deps{
		Verifier:       token.NewVerifier(time.Minute),
		ContextManager: grpcctx.NewManager(),
		Logger:         testutil.MakeNoopLogger(),
	})
	s := r.Register()
	defer s.Stop()

	r.Shutdown()

	resp, err := r.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: handler.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}
