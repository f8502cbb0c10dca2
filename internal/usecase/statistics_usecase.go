package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/txstats/internal/domain"
	"github.com/iho/txstats/internal/infrastructure/metrics"
)

// StatisticsConfig tunes the aggregation scan.
type StatisticsConfig struct {
	PageSize int // records per scan page
	TopK     int // how many of the largest transactions to report
}

// StatisticsUseCase computes statistics snapshots and serves cached ones.
type StatisticsUseCase struct {
	repo     TransactionRepository
	cache    StatisticsCache
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	pageSize int
	topK     int
}

// NewStatisticsUseCase creates a new StatisticsUseCase.
func NewStatisticsUseCase(repo TransactionRepository, cache StatisticsCache, cfg StatisticsConfig, logger zerolog.Logger) *StatisticsUseCase {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.PageSize > MaxPageSize {
		cfg.PageSize = MaxPageSize
	}
	if cfg.TopK < 0 {
		cfg.TopK = domain.DefaultTopK
	}

	return &StatisticsUseCase{
		repo:     repo,
		cache:    cache,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		pageSize: cfg.PageSize,
		topK:     cfg.TopK,
	}
}

// SetMetrics enables metric recording.
func (uc *StatisticsUseCase) SetMetrics(m *metrics.Metrics) {
	uc.metrics = m
}

// Compute builds a snapshot from the full record set. Any store error
// aborts the computation; a partial snapshot is never returned.
func (uc *StatisticsUseCase) Compute(ctx context.Context) (*domain.StatisticsSnapshot, error) {
	total, err := uc.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: count: %w", domain.ErrAggregationFailed, err)
	}

	groups, err := uc.repo.CurrencyAggregates(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: group by currency: %w", domain.ErrAggregationFailed, err)
	}

	var top []domain.TopEntry
	if total > 0 {
		top, err = uc.TopTransactions(ctx, uc.topK)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrAggregationFailed, err)
		}
	}

	return domain.NewStatisticsSnapshot(total, groups, top, uc.now()), nil
}

// TopTransactions pages through every record ordered by ID and keeps the k
// largest amounts in a bounded heap.
func (uc *StatisticsUseCase) TopTransactions(ctx context.Context, k int) ([]domain.TopEntry, error) {
	selector := domain.NewTopKSelector(k)
	if selector.K() == 0 {
		return []domain.TopEntry{}, nil
	}

	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrScanFailed, err)
		}

		page, err := uc.repo.ListPage(ctx, offset, uc.pageSize)
		if err != nil {
			return nil, fmt.Errorf("%w at offset %d: %w", domain.ErrScanFailed, offset, err)
		}

		for _, e := range page {
			selector.Offer(e)
		}

		if len(page) < uc.pageSize {
			break
		}
		offset += len(page)
	}

	return selector.Result(), nil
}

// GetStatistics returns the snapshot cached for taskID when there is one,
// and computes a fresh snapshot otherwise.
func (uc *StatisticsUseCase) GetStatistics(ctx context.Context, taskID string) (*domain.StatisticsSnapshot, error) {
	if taskID != "" && uc.cache != nil {
		snap, err := uc.cache.Load(ctx, taskID)
		switch {
		case err == nil:
			uc.recordLookup("hit")
			return snap, nil
		case errors.Is(err, domain.ErrCacheMiss):
			uc.recordLookup("miss")
		default:
			uc.recordLookup("error")
			uc.logger.Warn().Err(err).Str("task_id", taskID).Msg("statistics cache read failed, computing synchronously")
		}
	}

	return uc.Compute(ctx)
}

func (uc *StatisticsUseCase) recordLookup(result string) {
	if uc.metrics != nil {
		uc.metrics.StatisticsCacheLookups.WithLabelValues(result).Inc()
	}
}

// ClearCache removes every cached snapshot.
func (uc *StatisticsUseCase) ClearCache(ctx context.Context) error {
	if uc.cache == nil {
		return nil
	}

	removed, err := uc.cache.Clear(ctx)
	if err != nil {
		return err
	}

	uc.logger.Info().Int64("removed", removed).Msg("statistics cache cleared")
	return nil
}
