package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/iho/txstats/internal/domain"
)

// PoolConfig holds connection pool and startup retry settings.
type PoolConfig struct {
	DatabaseURL     string
	MaxConns        int
	MinConns        int
	ConnectTimeout  time.Duration
	ConnectAttempts int
	ConnectBackoff  time.Duration
}

// NewPoolWithConfig creates a new PostgreSQL connection pool and verifies it
// with a single ping.
func NewPoolWithConfig(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	if cfg.MaxConns > 0 {
		config.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns >= 0 {
		config.MinConns = int32(cfg.MinConns)
	}
	if cfg.ConnectTimeout > 0 {
		config.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

type dialFunc func(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error)

// Connect opens the pool, retrying with a constant delay up to
// cfg.ConnectAttempts times. Queries made through the pool are not retried.
func Connect(ctx context.Context, cfg PoolConfig, logger zerolog.Logger) (*pgxpool.Pool, error) {
	return connect(ctx, cfg, logger, NewPoolWithConfig)
}

func connect(ctx context.Context, cfg PoolConfig, logger zerolog.Logger, dial dialFunc) (*pgxpool.Pool, error) {
	attempts := cfg.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(cfg.ConnectBackoff)
	b = backoff.WithMaxRetries(b, uint64(attempts-1))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	var pool *pgxpool.Pool

	err := backoff.Retry(func() error {
		attempt++

		p, err := dial(ctx, cfg)
		if err != nil {
			logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_attempts", attempts).
				Msg("failed to connect to postgres")
			return err
		}

		pool = p
		return nil
	}, b)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect after %d attempts: %w", domain.ErrStoreUnavailable, attempt, err)
	}

	return pool, nil
}
