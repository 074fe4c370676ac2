package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ulixee/payments-sub000/internal/adapters/cache"
	"github.com/ulixee/payments-sub000/internal/adapters/chain"
	eventadapter "github.com/ulixee/payments-sub000/internal/adapters/events"
	grpcadapter "github.com/ulixee/payments-sub000/internal/adapters/grpc"
	httpadapter "github.com/ulixee/payments-sub000/internal/adapters/http"
	"github.com/ulixee/payments-sub000/internal/adapters/metrics"
	"github.com/ulixee/payments-sub000/internal/adapters/postgres"
	"github.com/ulixee/payments-sub000/internal/adapters/security"
	"github.com/ulixee/payments-sub000/internal/application"
	"github.com/ulixee/payments-sub000/internal/ports"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	service    *application.Service
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	outbox     *eventadapter.OutboxWorker
	monitor    *application.BatchMonitor
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := postgres.MigrateShared(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	var closers []io.Closer
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
		_ = sqlDB.Close()
	}

	prom := metrics.NewPrometheus("micronote")
	pool, err := postgres.NewBatchStorePool(logger, postgres.NewSchemaDialer(db, cfg.DatabaseURL, cfg.MaxBatchConns), cfg.MaxOpenBatches, cfg.BatchStoreGrace, prom)
	if err != nil {
		closeAll()
		return nil, err
	}

	locks := ports.JobLock(cache.NewLocalJobLock())
	if cfg.RedisURL != "" {
		redisClient, redisErr := cache.Connect(ctx, cfg.RedisURL)
		if redisErr != nil {
			pool.Close()
			closeAll()
			return nil, redisErr
		}
		closers = append(closers, redisClient)
		locks = cache.NewRedisJobLock(redisClient)
	} else {
		logger.WarnContext(ctx, "redis not configured, job locks are process local")
	}

	bridge := ports.ChainBridge(chain.NewStaticBridge(1, "genesis"))
	if cfg.ChainBridgeURL != "" {
		bridge = chain.NewClient(cfg.ChainBridgeURL, nil, cfg.ChainCacheTTL)
	} else {
		logger.WarnContext(ctx, "chain bridge not configured, using static block")
	}

	shared := postgres.NewSharedStore(db)
	service := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:             cfg.ServiceID,
			SettlementFeeMicrogons:  cfg.SettlementFeeMicrogons,
			BurnPercent:             cfg.BurnPercent,
			MinimumNoteMicrogons:    cfg.MinimumNoteMicrogons,
			MinimumFundingCentagons: cfg.MinimumFundingCentagons,
			BatchOpenWindow:         cfg.BatchOpenWindow,
			StopNewNotesBefore:      cfg.StopNewNotesBefore,
			MinimumOpenBatches:      cfg.MinimumOpenBatches,
			OpenBatchSafetyMargin:   cfg.OpenBatchSafetyMargin,
			SettlementFeeAddress:    cfg.SettlementFeeAddress,
			BurnAddress:             cfg.BurnAddress,
			JobLockTTL:              cfg.JobLockTTL,
		},
		Logger:     logger,
		Shared:     shared,
		Batches:    pool,
		Chain:      bridge,
		Keys:       security.Ed25519KeyGenerator{},
		Signer:     security.Ed25519Signer{},
		Encryption: security.NewAESGCMEncryption(cfg.EncryptionSeed),
		Locks:      locks,
		Metrics:    prom,
	})
	if err := service.Registry().Refresh(ctx); err != nil {
		pool.Close()
		closeAll()
		return nil, fmt.Errorf("load batch registry: %w", err)
	}

	var operators ports.OperatorTokenVerifier
	if cfg.OperatorJWTSecret != "" {
		tokens, tokenErr := security.NewOperatorTokens(cfg.OperatorJWTSecret, cfg.OperatorIssuer)
		if tokenErr != nil {
			pool.Close()
			closeAll()
			return nil, tokenErr
		}
		operators = tokens
	} else {
		logger.WarnContext(ctx, "operator secret not configured, admin routes disabled")
	}

	handler := httpadapter.NewHandler(service, security.Ed25519Verifier{}, operators)
	router := httpadapter.NewRouter(handler, prom.Handler())
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewBatchInternalServer(service))

	publisher := ports.EventPublisher(eventadapter.NewLoggingPublisher(logger))
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, pubErr := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if pubErr != nil {
			logger.WarnContext(ctx, "kafka publisher disabled, using logging publisher", "error", pubErr)
		} else {
			publisher = kafkaPublisher
			closers = append(closers, kafkaPublisher)
		}
	}
	outbox := eventadapter.NewOutboxWorker(logger, shared.Outbox(), publisher, cfg.OutboxPollInterval, cfg.OutboxBatchSize, 0, cfg.OutboxMaxRetries)
	monitor := application.NewBatchMonitor(logger, service, cfg.MonitorInterval)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		service:    service,
		httpServer: httpServer,
		grpcServer: grpcServer,
		outbox:     outbox,
		monitor:    monitor,
		cleanupFn: func(context.Context) {
			pool.Close()
			closeAll()
		},
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		r.cleanupFn(ctx)
		return err
	}
	r.grpcLis = lis

	errCh := make(chan error, 3)
	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- err
		}
	}()
	go r.refreshRegistry(ctx)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.cleanupFn(context.Background())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.monitor.Run(gctx) })
	g.Go(func() error { return r.outbox.Run(gctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// refreshRegistry keeps the API process's view of open batches in step with
// the batches the worker creates and closes.
func (r *Runtime) refreshRegistry(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.service.Registry().Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.WarnContext(ctx, "batch registry refresh failed",
					"module", "bootstrap",
					"layer", "runtime",
					"operation", "refresh_registry",
					"outcome", "failure",
					"error", err,
				)
			}
		}
	}
}
