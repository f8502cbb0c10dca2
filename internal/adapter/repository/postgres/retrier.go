package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/iho/txstats/internal/infrastructure/metrics"
)

// SQLSTATE codes after which the whole database transaction is re-run.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
)

// RetrierConfig bounds the retries around ingestion and delete-all
// transactions. Zero fields take the defaults.
type RetrierConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

func (c RetrierConfig) withDefaults() RetrierConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 50 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = time.Second
	}
	if c.MaxElapsedTime <= 0 {
		c.MaxElapsedTime = 10 * time.Second
	}
	return c
}

// Retrier implements usecase.Retrier. It re-runs an operation with
// exponential backoff when PostgreSQL aborts it with a deadlock or a
// serialization failure; every other error is returned as is.
type Retrier struct {
	cfg     RetrierConfig
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewRetrier creates a Retrier.
func NewRetrier(cfg RetrierConfig, logger zerolog.Logger) *Retrier {
	return &Retrier{
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// SetMetrics enables counting of retried transactions.
func (r *Retrier) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// Retry runs operation until it succeeds, fails permanently, the retry
// budget is spent or ctx is done.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval
	b.MaxElapsedTime = r.cfg.MaxElapsedTime

	retries := 0

	return backoff.Retry(func() error {
		err := operation()
		if err == nil {
			return nil
		}

		code, ok := retryableCode(err)
		if !ok || retries >= r.cfg.MaxRetries {
			return backoff.Permanent(err)
		}
		retries++

		if r.metrics != nil {
			r.metrics.DatabaseRetries.WithLabelValues(code).Inc()
		}
		r.logger.Warn().
			Err(err).
			Str("sqlstate", code).
			Int("retry", retries).
			Msg("database transaction aborted, retrying")

		return err
	}, backoff.WithContext(b, ctx))
}

// retryableCode reports the SQLSTATE of err when a retry may succeed.
func retryableCode(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	switch pgErr.Code {
	case pgErrDeadlock, pgErrSerializationFailure:
		return pgErr.Code, true
	}
	return "", false
}
