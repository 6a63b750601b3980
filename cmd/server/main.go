package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/rideledger/internal/adapter/http"
	"github.com/iho/rideledger/internal/adapter/http/handler"
	"github.com/iho/rideledger/internal/adapter/http/middleware"
	"github.com/iho/rideledger/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/rideledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/rideledger/internal/adapter/repository/redis"
	"github.com/iho/rideledger/internal/infrastructure/auth"
	"github.com/iho/rideledger/internal/infrastructure/config"
	"github.com/iho/rideledger/internal/infrastructure/eventpublisher"
	"github.com/iho/rideledger/internal/infrastructure/logger"
	"github.com/iho/rideledger/internal/infrastructure/maps"
	"github.com/iho/rideledger/internal/infrastructure/metrics"
	"github.com/iho/rideledger/internal/infrastructure/postgres"
	"github.com/iho/rideledger/internal/infrastructure/redis"
	"github.com/iho/rideledger/internal/usecase"
)

const rateLimiterIdle = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "rideledger",
	})
	log.Logger = appLogger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Fatal().Err(err).Msg("server failed")
	}

	appLogger.Info().Msg("server stopped")
}

// storage is the set of repositories behind one storage driver.
type storage struct {
	txManager usecase.TransactionManager
	accounts  usecase.AccountRepository
	entries   usecase.EntryRepository
	orders    usecase.OrderRepository
	outbox    usecase.OutboxRepository
	retrier   usecase.Retrier
	checks    []handler.ReadinessCheck
	close     func()
}

// app is the wired application, ready to serve.
type app struct {
	router      http.Handler
	publisher   *eventpublisher.EventPublisher
	settlement  *usecase.SettlementUseCase
	rateLimiter *middleware.RateLimiter
	close       func()
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	a, err := buildApp(ctx, cfg, logger, metrics.New())
	if err != nil {
		return err
	}
	defer a.close()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.HTTPPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	logger.Info().Str("port", cfg.HTTPPort).Str("storage", cfg.StorageDriver).Msg("starting server")
	return serve(ctx, cfg, logger, a, ln)
}

// serve runs the HTTP server and the background workers until ctx is done.
// Request contexts are cancelled as soon as shutdown begins, so open watch
// streams finish with an end frame instead of holding Shutdown open.
func serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger, a *app, ln net.Listener) error {
	baseCtx, cancelBase := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelBase()

	server := &http.Server{
		Handler:      a.router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}
	server.RegisterOnShutdown(cancelBase)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error { return ignoreCancel(a.publisher.Start(gctx)) })
	g.Go(func() error { return ignoreCancel(a.settlement.Run(gctx, cfg.SettlementInterval)) })
	g.Go(func() error { return ignoreCancel(a.rateLimiter.Run(gctx, rateLimiterIdle)) })

	return g.Wait()
}

func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) (*app, error) {
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	closers := []func(){store.close}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	idGen := postgresRepo.NewULIDGenerator()
	checks := store.checks

	var (
		cache            usecase.Cache
		idempotencyStore usecase.IdempotencyStore
		feed             usecase.ChangeFeed
		publishers       = eventpublisher.MultiPublisher{eventpublisher.NewLogPublisher(logger.With().Str("component", "outbox").Logger())}
	)

	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		logger.Info().Msg("connected to redis")

		changeFeed := redisRepo.NewChangeFeed(redisClient)
		cache = redisRepo.NewCache(redisClient)
		idempotencyStore = redisRepo.NewIdempotencyStore(redisClient)
		feed = changeFeed
		publishers = append(publishers, changeFeed)
		checks = append(checks, redisCheck(redisClient))
	} else {
		bus := memory.NewEventBus()
		feed = bus
		publishers = append(publishers, bus)
		logger.Warn().Msg("REDIS_URL not set; idempotency keys are disabled and change notifications are process-local")
	}

	authenticator, err := newAuthenticator(ctx, cfg)
	if err != nil {
		closeAll()
		return nil, err
	}

	var estimator usecase.RouteEstimator
	if cfg.GoogleMapsAPIKey != "" {
		e, err := maps.NewRouteEstimator(cfg.GoogleMapsAPIKey)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to create route estimator: %w", err)
		}
		estimator = e
	}

	wallet := usecase.NewWalletUseCase(store.txManager, store.accounts, store.entries, store.outbox, idGen, m)
	orders := usecase.NewOrderUseCase(store.txManager, store.orders, store.outbox, idGen, m)
	coordinator := usecase.NewCoordinatorUseCase(usecase.CoordinatorConfig{
		TxManager:   store.txManager,
		Orders:      orders,
		Wallet:      wallet,
		AccountRepo: store.accounts,
		Retrier:     store.retrier,
		Estimator:   estimator,
		Logger:      logger,
		Metrics:     m,
	})
	watch := usecase.NewWatchUseCase(store.orders, feed, store.retrier, cfg.WatchPollInterval, m)
	analytics := usecase.NewAnalyticsUseCase(store.accounts, store.entries, store.orders, cache, cfg.AnalyticsCacheTTL)
	reconciliation := usecase.NewReconciliationUseCase(store.accounts, store.entries)
	settlement := usecase.NewSettlementUseCase(store.orders, wallet, logger, m)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AccountHandler:   handler.NewAccountHandler(wallet, orders, analytics),
		WalletHandler:    handler.NewWalletHandler(wallet),
		OrderHandler:     handler.NewOrderHandler(coordinator, orders),
		WatchHandler:     handler.NewWatchHandler(watch),
		LedgerHandler:    handler.NewLedgerHandler(reconciliation),
		HealthHandler:    handler.NewHealthHandler(checks...),
		Authenticator:    authenticator,
		IdempotencyStore: idempotencyStore,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		RateLimiter:      rateLimiter,
		Logger:           logger,
		AllowedOrigins:   cfg.CORSAllowedOrigins,
	})

	publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: store.outbox,
		Publisher:  publishers,
		Logger:     logger.With().Str("component", "event_publisher").Logger(),
		Metrics:    m,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxPollInterval,
		Retention:  cfg.OutboxRetention,
	})

	return &app{
		router:      router,
		publisher:   publisher,
		settlement:  settlement,
		rateLimiter: rateLimiter,
		close:       closeAll,
	}, nil
}

func openStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*storage, error) {
	if cfg.StorageDriver == config.StorageMemory {
		logger.Warn().Msg("using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		return &storage{
			txManager: memory.NewTxManager(store),
			accounts:  memory.NewAccountRepository(store),
			entries:   memory.NewEntryRepository(store),
			orders:    memory.NewOrderRepository(store),
			outbox:    memory.NewOutboxRepository(store),
			close:     func() {},
		}, nil
	}

	if cfg.MigrateOnStart {
		if err := postgres.RunMigrations(cfg.DatabaseURL, logger); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:       cfg.DatabaseURL,
		MaxConns:          cfg.DatabaseMaxConns,
		MinConns:          cfg.DatabaseMinConns,
		ConnectTimeout:    5 * time.Second,
		HealthCheckPeriod: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	logger.Info().Msg("connected to postgres")

	return &storage{
		txManager: postgresRepo.NewTxManager(pool),
		accounts:  postgresRepo.NewAccountRepository(pool),
		entries:   postgresRepo.NewEntryRepository(pool),
		orders:    postgresRepo.NewOrderRepository(pool),
		outbox:    postgresRepo.NewOutboxRepository(pool),
		retrier:   postgresRepo.NewRetrier(postgresRepo.WithRetryLogger(logger)),
		checks:    []handler.ReadinessCheck{{Name: "postgres", Ping: pool.Ping}},
		close:     pool.Close,
	}, nil
}

func newAuthenticator(ctx context.Context, cfg *config.Config) (auth.Authenticator, error) {
	switch cfg.AuthProvider {
	case config.AuthJWT:
		return auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration), nil
	case config.AuthFirebase:
		a, err := auth.NewFirebaseAuthenticator(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
		if err != nil {
			return nil, err
		}
		return a, nil
	case config.AuthNone:
		log.Warn().Msg("AUTH_PROVIDER=none; callers are identified by request headers")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.AuthProvider)
	}
}

func redisCheck(client *goredis.Client) handler.ReadinessCheck {
	return handler.ReadinessCheck{
		Name: "redis",
		Ping: func(ctx context.Context) error { return client.Ping(ctx).Err() },
	}
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
