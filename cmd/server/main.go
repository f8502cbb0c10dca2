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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/txstats/internal/adapter/http"
	"github.com/iho/txstats/internal/adapter/http/handler"
	"github.com/iho/txstats/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/txstats/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/txstats/internal/adapter/repository/redis"
	"github.com/iho/txstats/internal/infrastructure/auth"
	"github.com/iho/txstats/internal/infrastructure/config"
	"github.com/iho/txstats/internal/infrastructure/logger"
	"github.com/iho/txstats/internal/infrastructure/metrics"
	"github.com/iho/txstats/internal/infrastructure/postgres"
	"github.com/iho/txstats/internal/infrastructure/redis"
	"github.com/iho/txstats/internal/infrastructure/worker"
	"github.com/iho/txstats/internal/usecase"
)

// limiterIdleTimeout is how long a client IP may stay silent before its
// rate limiter is dropped.
const limiterIdleTimeout = time.Hour

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup logger
	appLogger := logger.New(loggerConfig(cfg))
	log.Logger = appLogger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}

	appLogger.Info().Msg("server stopped")
}

func loggerConfig(cfg *config.Config) logger.Config {
	return logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}
}

func run(ctx context.Context, cfg *config.Config, appLogger zerolog.Logger) error {
	// Connect to PostgreSQL
	pool, err := postgres.Connect(ctx, postgres.PoolConfig{
		DatabaseURL:     cfg.DatabaseURL,
		MaxConns:        cfg.DatabaseMaxConns,
		MinConns:        cfg.DatabaseMinConns,
		ConnectTimeout:  cfg.DatabaseConnectTimeout,
		ConnectAttempts: cfg.DatabaseConnectAttempts,
		ConnectBackoff:  cfg.DatabaseConnectBackoff,
	}, appLogger)
	if err != nil {
		return err
	}
	defer pool.Close()
	appLogger.Info().Msg("connected to postgres")

	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, appLogger); err != nil {
		return err
	}

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, redis.ClientConfig{
		URL:         cfg.RedisURL,
		DialTimeout: cfg.RedisDialTimeout,
	})
	if err != nil {
		return err
	}
	defer redisClient.Close()
	appLogger.Info().Msg("connected to redis")

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool)
	transactionRepo := postgresRepo.NewTransactionRepository(pool)
	idGen := postgresRepo.NewULIDGenerator()
	taskQueue := redisRepo.NewTaskQueue(redisClient)
	taskQueue.SetVisibilityTimeout(cfg.TaskVisibility)
	statsCache := redisRepo.NewStatisticsCache(redisClient)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)

	// Initialize use cases
	recomputeUC := usecase.NewRecomputeUseCase(taskQueue, idGen)

	transactionUC := usecase.NewTransactionUseCase(txManager, transactionRepo, recomputeUC, statsCache, appLogger)
	retrier := postgresRepo.NewRetrier(postgresRepo.RetrierConfig{MaxRetries: cfg.DatabaseRetryMax}, appLogger)
	retrier.SetMetrics(m)
	transactionUC.SetRetrier(retrier)
	transactionUC.SetMetrics(m)

	statisticsUC := usecase.NewStatisticsUseCase(transactionRepo, statsCache, usecase.StatisticsConfig{
		PageSize: cfg.StatsPageSize,
		TopK:     cfg.StatsTopK,
	}, appLogger)
	statisticsUC.SetMetrics(m)

	// Background processing
	recomputeWorker := worker.New(worker.Config{
		Queue:       taskQueue,
		Computer:    statisticsUC,
		Cache:       statsCache,
		Metrics:     m,
		Logger:      appLogger,
		Concurrency: cfg.WorkerConcurrency,
		Interval:    cfg.WorkerPollInterval,
		CacheTTL:    cfg.StatsCacheTTL,
		MaxRetries:  cfg.TaskMaxRetries,
		RetryDelay:  cfg.TaskRetryDelay,
	})
	scheduler := worker.NewScheduler(recomputeUC, cfg.ScheduleInterval, appLogger)

	// Initialize handlers
	routerCfg := httpAdapter.RouterConfig{
		TransactionHandler: handler.NewTransactionHandler(transactionUC),
		StatisticsHandler:  handler.NewStatisticsHandler(statisticsUC, recomputeUC),
		HealthHandler: handler.NewHealthHandler(pool, handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})),
		APIKeyVerifier:   auth.NewAPIKeyVerifier(cfg.APIKey),
		IdempotencyStore: idempotencyStore,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		Metrics:          m,
		Gatherer:         registry,
		Logger:           appLogger,

		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		limiter.SetMetrics(m)
		routerCfg.RateLimiter = limiter
	}

	server := newHTTPServer(cfg, httpAdapter.NewRouter(routerCfg))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLogger.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info().Msg("shutting down server...")

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return recomputeWorker.Start(gctx)
	})

	g.Go(func() error {
		return scheduler.Start(gctx)
	})

	if limiter != nil {
		g.Go(func() error {
			ticker := time.NewTicker(limiterIdleTimeout)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					removed := limiter.CleanupLimiters(limiterIdleTimeout)
					appLogger.Debug().Int("removed", removed).Msg("idle rate limiters dropped")
				}
			}
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      h,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}
}
