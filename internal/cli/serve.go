package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/reflection"

	grpcctx "github.com/dtroode/soldojo-ledger/internal/api/grpc/context"
	"github.com/dtroode/soldojo-ledger/internal/api/grpc/router"
	grpcServer "github.com/dtroode/soldojo-ledger/internal/api/grpc/server"
	"github.com/dtroode/soldojo-ledger/internal/config"
	"github.com/dtroode/soldojo-ledger/internal/logger"
	"github.com/dtroode/soldojo-ledger/internal/metrics"
	"github.com/dtroode/soldojo-ledger/internal/model"
	"github.com/dtroode/soldojo-ledger/internal/repository/postgres"
	redisrepo "github.com/dtroode/soldojo-ledger/internal/repository/redis"
	"github.com/dtroode/soldojo-ledger/internal/repository/sqlite"
	"github.com/dtroode/soldojo-ledger/internal/server"
	"github.com/dtroode/soldojo-ledger/internal/service"
	storage "github.com/dtroode/soldojo-ledger/internal/storage/minio"
	"github.com/dtroode/soldojo-ledger/internal/token"
)

const shutdownTimeout = 10 * time.Second

// endpoint pairs a server with the listener it accepts on.
type endpoint struct {
	server model.Server
	layer  model.SecurityLayer
}

// NewServeCommand runs the gRPC Ledger server until interrupted.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Ledger gRPC server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return err
			}
			log := logger.NewWithFormat(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			log.Info("starting soldojo ledger",
				"version", rootOpts.Version.Version,
				"date", rootOpts.Version.Date,
				"commit", rootOpts.Version.Commit,
			)

			return serve(cmd.Context(), cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	programID, err := cfg.Program()
	if err != nil {
		return err
	}

	accounts, closeAccounts, err := openAccountStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeAccounts()

	deps := router.Deps{
		Verifier:       token.NewVerifier(cfg.Auth.MaxTokenAge),
		ContextManager: grpcctx.NewManager(),
		Logger:         log,
	}

	if cfg.Redis.Addr != "" {
		client, err := redisrepo.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer client.Close()
		deps.Nonces = redisrepo.NewNonceStore(client)
	} else {
		log.Warn("replay guard disabled, REDIS_ADDR is empty")
	}

	var objects model.Storage
	if cfg.Storage.Enabled {
		client, err := storage.Connect(ctx, storage.Options{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			return err
		}
		objects = client
	}
	certificates := service.NewCertificates(objects, cfg.Certificates.BaseURL, cfg.Certificates.ImageURL, log)

	deps.Program = service.NewProgram(programID, accounts, model.SystemClock{}, certificates, log)

	var servers []endpoint

	if cfg.Metrics.Enabled {
		m := metrics.New()
		deps.Observer = m
		metricsServer := metrics.NewServer(m, fmt.Sprintf(":%s", cfg.Metrics.Port))
		servers = append(servers, endpoint{server: metricsServer, layer: server.NewPlainListener()})
	}

	r := router.New(deps)
	s := r.Register()
	reflection.Register(s)

	ledgerServer := grpcServer.NewGRPCServer(s, fmt.Sprintf(":%s", cfg.GRPC.Port))
	servers = append(servers, endpoint{
		server: ledgerServer,
		layer:  server.NewSecurityLayer(cfg.GRPC.EnableHTTPS, cfg.GRPC.CertFileName, cfg.GRPC.PrivateKeyFileName),
	})

	errCh := make(chan error, len(servers))
	var wg sync.WaitGroup
	for _, e := range servers {
		wg.Add(1)
		go func(e endpoint) {
			defer wg.Done()
			log.Info("starting server", "address", e.server.Address())
			if err := e.server.Start(e.layer); err != nil {
				errCh <- fmt.Errorf("server %s: %w", e.server.Address(), err)
			}
		}(e)
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received interruption signal, shutting down")
	case runErr = <-errCh:
		log.Error("server failed, shutting down", "error", runErr)
	}

	r.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, e := range servers {
		if err := e.server.Stop(shutdownCtx); err != nil {
			log.Error("error during server shutdown", "error", err, "address", e.server.Address())
		}
	}

	wg.Wait()
	log.Info("shutdown complete")

	return runErr
}

// openAccountStore opens the configured store. The returned func releases it.
func openAccountStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (model.AccountStore, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.Database.SQLitePath, log)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		conn, err := postgres.NewConnection(ctx, cfg.Database.DSN, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return postgres.NewAccountRepository(conn), func() { _ = conn.Close() }, nil
	}
}
