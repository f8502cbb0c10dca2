package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/txstats/internal/domain"
	"github.com/iho/txstats/internal/usecase"
	"github.com/iho/txstats/internal/usecase/mocks"
)

func record(id string, amount string, currency domain.Currency) *domain.Transaction {
	return &domain.Transaction{
		ID:        id,
		UserID:    "user001",
		Amount:    decimal.RequireFromString(amount),
		Currency:  currency,
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newStatisticsUseCase(repo usecase.TransactionRepository, cache usecase.StatisticsCache, pageSize int) *usecase.StatisticsUseCase {
	return usecase.NewStatisticsUseCase(repo, cache, usecase.StatisticsConfig{
		PageSize: pageSize,
		TopK:     domain.DefaultTopK,
	}, zerolog.Nop())
}

func TestStatisticsUseCase_Compute_Scenario(t *testing.T) {
	repo := mocks.NewInMemoryTransactionRepository()
	repo.Seed(
		record("1", "1000", domain.CurrencyUSD),
		record("2", "850", domain.CurrencyUSD),
		record("3", "500", domain.CurrencyUSD),
	)

	uc := newStatisticsUseCase(repo, nil, 1000)

	snap, err := uc.Compute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), snap.TotalTransactions)
	assert.True(t, snap.AverageAmount.Equal(decimal.RequireFromString("783.33")), "average was %s", snap.AverageAmount)

	require.Len(t, snap.TopTransactions, 3)
	for i, want := range []struct {
		id     string
		amount int64
	}{{"1", 1000}, {"2", 850}, {"3", 500}} {
		assert.Equal(t, want.id, snap.TopTransactions[i].ID)
		assert.True(t, snap.TopTransactions[i].Amount.Equal(decimal.NewFromInt(want.amount)))
	}

	require.Len(t, snap.CurrencyBreakdown, 1)
	assert.Equal(t, domain.CurrencyUSD, snap.CurrencyBreakdown[0].Currency)
	assert.Equal(t, int64(3), snap.CurrencyBreakdown[0].Count)
	assert.True(t, snap.CurrencyBreakdown[0].AverageAmount.Equal(decimal.RequireFromString("783.33")))
}

func TestStatisticsUseCase_Compute_TotalMatchesInserted(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7, 25} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			repo := mocks.NewInMemoryTransactionRepository()
			for i := 0; i < n; i++ {
				repo.Seed(record(fmt.Sprintf("tx-%03d", i), fmt.Sprintf("%d.50", i+1), domain.CurrencyEUR))
			}

			snap, err := newStatisticsUseCase(repo, nil, 4).Compute(context.Background())
			require.NoError(t, err)
			assert.Equal(t, int64(n), snap.TotalTransactions)

			wantTop := n
			if wantTop > domain.DefaultTopK {
				wantTop = domain.DefaultTopK
			}
			assert.Len(t, snap.TopTransactions, wantTop)
		})
	}
}

func TestStatisticsUseCase_Compute_EmptyStoreSkipsScan(t *testing.T) {
	repo := mocks.NewInMemoryTransactionRepository()

	snap, err := newStatisticsUseCase(repo, nil, 10).Compute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(0), snap.TotalTransactions)
	assert.True(t, snap.AverageAmount.IsZero())
	assert.Empty(t, snap.TopTransactions)
	assert.Empty(t, snap.CurrencyBreakdown)
	assert.Empty(t, repo.PageRequests)
}

func TestStatisticsUseCase_Compute_Idempotent(t *testing.T) {
	repo := mocks.NewInMemoryTransactionRepository()
	repo.Seed(
		record("a", "10.10", domain.CurrencyGBP),
		record("b", "99.99", domain.CurrencyJPY),
		record("c", "45", domain.CurrencyGBP),
		record("d", "45", domain.CurrencyCNY),
	)
	uc := newStatisticsUseCase(repo, nil, 2)

	first, err := uc.Compute(context.Background())
	require.NoError(t, err)
	second, err := uc.Compute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, describe(first), describe(second))
}

func describe(s *domain.StatisticsSnapshot) string {
	out := fmt.Sprintf("total=%d avg=%s top=", s.TotalTransactions, s.AverageAmount)
	for _, e := range s.TopTransactions {
		out += fmt.Sprintf("[%s %s]", e.ID, e.Amount)
	}
	out += " buckets="
	for _, b := range s.CurrencyBreakdown {
		out += fmt.Sprintf("[%s %s %d]", b.Currency, b.AverageAmount, b.Count)
	}
	return out
}

func TestStatisticsUseCase_TopTransactions_Pagination(t *testing.T) {
	tests := []struct {
		name         string
		records      int
		pageSize     int
		wantRequests [][2]int
	}{
		{name: "short last page", records: 5, pageSize: 2, wantRequests: [][2]int{{0, 2}, {2, 2}, {4, 2}}},
		{name: "exact multiple ends on empty page", records: 4, pageSize: 2, wantRequests: [][2]int{{0, 2}, {2, 2}, {4, 2}}},
		{name: "single page", records: 3, pageSize: 10, wantRequests: [][2]int{{0, 10}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mocks.NewInMemoryTransactionRepository()
			for i := 0; i < tt.records; i++ {
				repo.Seed(record(fmt.Sprintf("%02d", i), fmt.Sprintf("%d", (i*37)%11+1), domain.CurrencyUSD))
			}

			top, err := newStatisticsUseCase(repo, nil, tt.pageSize).TopTransactions(context.Background(), 3)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRequests, repo.PageRequests)

			for i := 1; i < len(top); i++ {
				assert.False(t, top[i-1].Amount.LessThan(top[i].Amount), "not descending: %v", top)
			}
		})
	}
}

func TestStatisticsUseCase_TopTransactions_ZeroK(t *testing.T) {
	repo := mocks.NewInMemoryTransactionRepository()
	repo.Seed(record("1", "5", domain.CurrencyUSD))

	top, err := newStatisticsUseCase(repo, nil, 10).TopTransactions(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, top)
	assert.Empty(t, repo.PageRequests)
}

func TestStatisticsUseCase_Compute_Errors(t *testing.T) {
	storeErr := errors.New("connection reset")

	t.Run("count failure", func(t *testing.T) {
		repo := mocks.NewInMemoryTransactionRepository()
		repo.CountFunc = func(context.Context) (int64, error) { return 0, storeErr }

		snap, err := newStatisticsUseCase(repo, nil, 10).Compute(context.Background())
		assert.Nil(t, snap)
		assert.ErrorIs(t, err, domain.ErrAggregationFailed)
		assert.ErrorIs(t, err, storeErr)
	})

	t.Run("grouping failure", func(t *testing.T) {
		repo := mocks.NewInMemoryTransactionRepository()
		repo.CurrencyAggregatesFunc = func(context.Context) ([]domain.CurrencyAggregate, error) { return nil, storeErr }

		snap, err := newStatisticsUseCase(repo, nil, 10).Compute(context.Background())
		assert.Nil(t, snap)
		assert.ErrorIs(t, err, domain.ErrAggregationFailed)
	})

	t.Run("scan failure mid stream", func(t *testing.T) {
		repo := mocks.NewInMemoryTransactionRepository()
		repo.Seed(record("1", "5", domain.CurrencyUSD), record("2", "6", domain.CurrencyUSD))
		repo.ListPageFunc = func(_ context.Context, offset, limit int) ([]domain.TopEntry, error) {
			if offset == 0 {
				return []domain.TopEntry{{ID: "1", Amount: decimal.NewFromInt(5)}}, nil
			}
			return nil, storeErr
		}

		snap, err := newStatisticsUseCase(repo, nil, 1).Compute(context.Background())
		assert.Nil(t, snap)
		assert.ErrorIs(t, err, domain.ErrAggregationFailed)
		assert.ErrorIs(t, err, domain.ErrScanFailed)
		assert.ErrorIs(t, err, storeErr)
	})

	t.Run("cancelled context", func(t *testing.T) {
		repo := mocks.NewInMemoryTransactionRepository()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newStatisticsUseCase(repo, nil, 10).TopTransactions(ctx, 3)
		assert.ErrorIs(t, err, domain.ErrScanFailed)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestStatisticsUseCase_GetStatistics(t *testing.T) {
	repo := mocks.NewInMemoryTransactionRepository()
	repo.Seed(record("1", "10", domain.CurrencyUSD))
	cache := mocks.NewInMemoryStatisticsCache()

	cached := domain.NewStatisticsSnapshot(42, nil, nil, time.Now())
	require.NoError(t, cache.Store(context.Background(), "task-1", cached, time.Hour))

	uc := newStatisticsUseCase(repo, cache, 10)

	t.Run("cache hit", func(t *testing.T) {
		snap, err := uc.GetStatistics(context.Background(), "task-1")
		require.NoError(t, err)
		assert.Equal(t, int64(42), snap.TotalTransactions)
	})

	t.Run("cache miss falls back to computation", func(t *testing.T) {
		snap, err := uc.GetStatistics(context.Background(), "unknown")
		require.NoError(t, err)
		assert.Equal(t, int64(1), snap.TotalTransactions)
	})

	t.Run("no task id computes", func(t *testing.T) {
		snap, err := uc.GetStatistics(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, int64(1), snap.TotalTransactions)
	})
}

func TestStatisticsUseCase_ClearCache(t *testing.T) {
	cache := mocks.NewInMemoryStatisticsCache()
	require.NoError(t, cache.Store(context.Background(), "a", &domain.StatisticsSnapshot{}, time.Hour))
	require.NoError(t, cache.Store(context.Background(), "b", &domain.StatisticsSnapshot{}, time.Hour))

	uc := newStatisticsUseCase(mocks.NewInMemoryTransactionRepository(), cache, 10)

	require.NoError(t, uc.ClearCache(context.Background()))
	assert.Equal(t, 0, cache.Len())

	// Clearing an empty cache still succeeds.
	require.NoError(t, uc.ClearCache(context.Background()))
}
