package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/iho/txstats/internal/domain"
)

// clearScript deletes every key matching ARGV[1] in one atomic step.
// DEL is issued in chunks to stay under Lua's unpack limit.
var clearScript = redis.NewScript(`
local keys = redis.call("KEYS", ARGV[1])
local removed = 0
for i = 1, #keys, 1000 do
	local last = math.min(i + 999, #keys)
	removed = removed + redis.call("DEL", unpack(keys, i, last))
end
return removed
`)

// StatisticsCache implements usecase.StatisticsCache using Redis.
type StatisticsCache struct {
	client *redis.Client
}

// NewStatisticsCache creates a new StatisticsCache.
func NewStatisticsCache(client *redis.Client) *StatisticsCache {
	return &StatisticsCache{client: client}
}

// Store writes the snapshot under statistics:<task_id>, replacing any
// previous value.
func (c *StatisticsCache) Store(ctx context.Context, taskID string, snapshot *domain.StatisticsSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(toSnapshotPayload(snapshot))
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return c.client.Set(ctx, domain.StatisticsCacheKey(taskID), data, ttl).Err()
}

// Load reads the snapshot cached for a task.
func (c *StatisticsCache) Load(ctx context.Context, taskID string) (*domain.StatisticsSnapshot, error) {
	data, err := c.client.Get(ctx, domain.StatisticsCacheKey(taskID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrCacheMiss
		}
		return nil, err
	}

	var payload snapshotPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode cached snapshot: %w", err)
	}

	return payload.toDomain(), nil
}

// Clear removes every cached snapshot.
func (c *StatisticsCache) Clear(ctx context.Context) (int64, error) {
	return clearScript.Run(ctx, c.client, nil, domain.StatisticsCacheKeyPrefix+"*").Int64()
}

// snapshotPayload mirrors the GET /statistics response body.
type snapshotPayload struct {
	ComputedAt        time.Time               `json:"computed_at"`
	TopTransactions   []topEntryPayload       `json:"top_transactions"`
	CurrencyBreakdown []currencyBucketPayload `json:"currency_breakdown"`
	AverageAmount     float64                 `json:"average_transaction_amount"`
	TotalTransactions int64                   `json:"total_transactions"`
}

type topEntryPayload struct {
	ID     string  `json:"transaction_id"`
	Amount float64 `json:"amount"`
}

type currencyBucketPayload struct {
	Currency      string  `json:"currency"`
	AverageAmount float64 `json:"average_amount"`
	Count         int64   `json:"transaction_count"`
}

func toSnapshotPayload(s *domain.StatisticsSnapshot) snapshotPayload {
	p := snapshotPayload{
		ComputedAt:        s.ComputedAt,
		TotalTransactions: s.TotalTransactions,
		AverageAmount:     s.AverageAmount.InexactFloat64(),
		TopTransactions:   make([]topEntryPayload, 0, len(s.TopTransactions)),
		CurrencyBreakdown: make([]currencyBucketPayload, 0, len(s.CurrencyBreakdown)),
	}

	for _, e := range s.TopTransactions {
		p.TopTransactions = append(p.TopTransactions, topEntryPayload{
			ID:     e.ID,
			Amount: e.Amount.InexactFloat64(),
		})
	}

	for _, b := range s.CurrencyBreakdown {
		p.CurrencyBreakdown = append(p.CurrencyBreakdown, currencyBucketPayload{
			Currency:      string(b.Currency),
			AverageAmount: b.AverageAmount.InexactFloat64(),
			Count:         b.Count,
		})
	}

	return p
}

func (p snapshotPayload) toDomain() *domain.StatisticsSnapshot {
	s := &domain.StatisticsSnapshot{
		ComputedAt:        p.ComputedAt,
		TotalTransactions: p.TotalTransactions,
		AverageAmount:     decimal.NewFromFloat(p.AverageAmount),
		TopTransactions:   make([]domain.TopEntry, 0, len(p.TopTransactions)),
		CurrencyBreakdown: make([]domain.CurrencyBucket, 0, len(p.CurrencyBreakdown)),
	}

	for _, e := range p.TopTransactions {
		s.TopTransactions = append(s.TopTransactions, domain.TopEntry{
			ID:     e.ID,
			Amount: decimal.NewFromFloat(e.Amount),
		})
	}

	for _, b := range p.CurrencyBreakdown {
		s.CurrencyBreakdown = append(s.CurrencyBreakdown, domain.CurrencyBucket{
			Currency:      domain.Currency(b.Currency),
			AverageAmount: decimal.NewFromFloat(b.AverageAmount),
			Count:         b.Count,
		})
	}

	return s
}
