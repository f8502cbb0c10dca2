package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/iho/txstats/internal/domain"
)

// newTestRedisClient starts miniredis and returns a client bound to it. Both
// are torn down when the test ends.
func newTestRedisClient(t *testing.T) (*redislib.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

// sampleSnapshot is the snapshot for transactions 1000 USD, 850 EUR, 500 USD.
func sampleSnapshot() *domain.StatisticsSnapshot {
	return &domain.StatisticsSnapshot{
		ComputedAt:        time.Date(2024, 12, 12, 12, 0, 0, 0, time.UTC),
		TotalTransactions: 3,
		AverageAmount:     decimal.RequireFromString("783.33"),
		TopTransactions: []domain.TopEntry{
			{ID: "1", Amount: decimal.RequireFromString("1000.00")},
			{ID: "2", Amount: decimal.RequireFromString("850.00")},
			{ID: "3", Amount: decimal.RequireFromString("500.00")},
		},
		CurrencyBreakdown: []domain.CurrencyBucket{
			{Currency: domain.CurrencyEUR, AverageAmount: decimal.RequireFromString("850.00"), Count: 1},
			{Currency: domain.CurrencyUSD, AverageAmount: decimal.RequireFromString("750.00"), Count: 2},
		},
	}
}
