package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/goportfolio/internal/adapter/http"
	"github.com/iho/goportfolio/internal/adapter/http/handler"
	"github.com/iho/goportfolio/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/goportfolio/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/goportfolio/internal/adapter/repository/redis"
	"github.com/iho/goportfolio/internal/domain"
	"github.com/iho/goportfolio/internal/infrastructure/config"
	"github.com/iho/goportfolio/internal/infrastructure/logger"
	"github.com/iho/goportfolio/internal/infrastructure/metrics"
	"github.com/iho/goportfolio/internal/infrastructure/postgres"
	"github.com/iho/goportfolio/internal/infrastructure/redis"
	"github.com/iho/goportfolio/internal/infrastructure/scheduler"
	"github.com/iho/goportfolio/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	tolerance, err := reconTolerance(cfg)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Connect to PostgreSQL
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	if err := postgres.NewMigrator(cfg.DatabaseURL, cfg.MigrationsPath, log).Up(); err != nil {
		return err
	}

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool)
	instrumentRepo := postgresRepo.NewInstrumentRepository(pool)
	holdingRepo := postgresRepo.NewHoldingRepository(pool)
	transactionRepo := postgresRepo.NewTransactionRepository(pool)
	statementRepo := postgresRepo.NewStatementRepository(pool)
	snapshotRepo := postgresRepo.NewSnapshotRepository(pool)
	reconRepo := postgresRepo.NewReconciliationRepository(pool)
	retrier := postgresRepo.NewRetrier(log, m)
	idGen := postgresRepo.NewULIDGenerator()

	var priceRepo usecase.PriceRepository = postgresRepo.NewPriceRepository(pool)
	var idempotencyStore middleware.IdempotencyStore
	var redisClient *goredis.Client

	// Redis is optional: prices fall back to postgres and POSTs lose replay protection.
	if cfg.RedisEnabled {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, running without price cache")
		} else {
			defer redisClient.Close()
			log.Info().Msg("connected to redis")

			priceRepo = redisRepo.NewPriceCache(priceRepo, redisClient, cfg.PriceCacheTTL, m, log)
			idempotencyStore = redisRepo.NewIdempotencyStore(redisClient)
		}
	}

	// Initialize use cases
	clock := usecase.SystemClock{}
	instrumentUC := usecase.NewInstrumentUseCase(instrumentRepo, priceRepo, statementRepo, clock, log)
	holdingUC := usecase.NewHoldingUseCase(txManager, instrumentRepo, holdingRepo, transactionRepo, idGen, retrier, clock, m, log)
	positionUC := usecase.NewPositionUseCase(
		instrumentRepo, holdingRepo, transactionRepo, priceRepo, statementRepo, clock, positionConfig(cfg), m, log,
	)
	reconUC := usecase.NewReconciliationUseCase(txManager, positionUC, snapshotRepo, reconRepo, idGen, clock, tolerance, m, log)

	limiter := newRateLimiter(cfg)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		InstrumentHandler:     handler.NewInstrumentHandler(instrumentUC),
		PositionHandler:       handler.NewPositionHandler(positionUC, holdingUC),
		ReconciliationHandler: handler.NewReconciliationHandler(reconUC),
		HealthHandler:         handler.NewHealthHandler(pool, redisClient),
		Logger:                log,
		Metrics:               m,
		Gatherer:              registry,
		CORSAllowedOrigins:    cfg.CORSAllowedOrigins,
		RequestTimeout:        cfg.HTTPRequestTimeout,
		IdempotencyStore:      idempotencyStore,
		RateLimiter:           limiter,
	})

	sched := scheduler.New(log, cfg.DatabaseTimeout)
	if err := registerJobs(sched, cfg, reconUC, limiter); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

const defaultRateLimitIdle = 10 * time.Minute

// LatestSnapshotRunner reconciles against the last imported broker snapshot.
type LatestSnapshotRunner interface {
	RunAgainstLatestSnapshot(ctx context.Context) (*domain.ReconciliationRun, error)
}

func registerJobs(sched *scheduler.Scheduler, cfg *config.Config, recon LatestSnapshotRunner, limiter *middleware.RateLimiter) error {
	if cfg.ReconSchedule != "" {
		err := sched.AddJob(cfg.ReconSchedule, scheduler.JobFunc{
			JobName: "reconcile-latest-snapshot",
			Fn:      reconcileLatest(recon),
		})
		if err != nil {
			return fmt.Errorf("invalid RECON_SCHEDULE %q: %w", cfg.ReconSchedule, err)
		}
	}

	if limiter != nil {
		idle := cfg.RateLimitIdle
		if idle <= 0 {
			idle = defaultRateLimitIdle
		}
		err := sched.AddJob("@every "+idle.String(), scheduler.JobFunc{
			JobName: "rate-limit-cleanup",
			Fn: func(context.Context) error {
				limiter.Cleanup(idle)
				return nil
			},
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// reconcileLatest skips quietly until a first snapshot has been imported.
func reconcileLatest(recon LatestSnapshotRunner) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := recon.RunAgainstLatestSnapshot(ctx)
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			return nil
		}
		return err
	}
}

func reconTolerance(cfg *config.Config) (domain.Tolerance, error) {
	tol := domain.Tolerance{
		QuantityAbs:  decimal.NewFromFloat(cfg.ReconQuantityTolerance),
		ValuePercent: decimal.NewFromFloat(cfg.ReconValueTolerancePercent),
	}
	if err := tol.Validate(); err != nil {
		return domain.Tolerance{}, fmt.Errorf("reconciliation tolerance: %w", err)
	}
	return tol, nil
}

func positionConfig(cfg *config.Config) usecase.PositionUseCaseConfig {
	return usecase.PositionUseCaseConfig{
		XIRR: domain.XIRROptions{
			MaxIterations: cfg.XIRRMaxIterations,
			Tolerance:     cfg.XIRRTolerance,
			InitialGuess:  cfg.XIRRInitialGuess,
		},
		Concurrency:  cfg.PortfolioConcurrency,
		BaseCurrency: cfg.BaseCurrency,
	}
}

func newRateLimiter(cfg *config.Config) *middleware.RateLimiter {
	if cfg.RateLimitRPS <= 0 {
		return nil
	}

	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	return middleware.NewRateLimiter(cfg.RateLimitRPS, burst)
}
