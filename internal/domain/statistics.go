package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTopK is how many of the largest transactions a snapshot reports.
const DefaultTopK = 3

// AmountScale is the number of decimal places exposed for averages.
const AmountScale = 2

// TopEntry is one of the largest transactions by amount.
type TopEntry struct {
	ID     string
	Amount decimal.Decimal
}

// CurrencyAggregate is the store-side grouping result for one currency.
// Sum is kept in full precision so averages can be derived without
// compounding rounding error.
type CurrencyAggregate struct {
	Currency Currency
	Sum      decimal.Decimal
	Count    int64
}

// Average returns Sum/Count in full precision, or zero for an empty group.
func (a CurrencyAggregate) Average() decimal.Decimal {
	if a.Count == 0 {
		return decimal.Zero
	}
	return a.Sum.Div(decimal.NewFromInt(a.Count))
}

// CurrencyBucket is the per-currency part of a snapshot.
type CurrencyBucket struct {
	Currency      Currency
	AverageAmount decimal.Decimal
	Count         int64
}

// StatisticsSnapshot is an immutable result of one statistics computation.
type StatisticsSnapshot struct {
	ComputedAt        time.Time
	TopTransactions   []TopEntry
	CurrencyBreakdown []CurrencyBucket
	AverageAmount     decimal.Decimal
	TotalTransactions int64
}

// NewStatisticsSnapshot builds a snapshot from grouped aggregates and the
// already selected top entries. The overall average is the count-weighted
// mean of the per-currency averages; avg*count is exactly the group sum, so
// the group sums are accumulated directly.
func NewStatisticsSnapshot(total int64, groups []CurrencyAggregate, top []TopEntry, at time.Time) *StatisticsSnapshot {
	snap := &StatisticsSnapshot{
		ComputedAt:        at,
		TotalTransactions: total,
		AverageAmount:     decimal.Zero,
		TopTransactions:   make([]TopEntry, len(top)),
		CurrencyBreakdown: make([]CurrencyBucket, 0, len(groups)),
	}
	copy(snap.TopTransactions, top)

	weighted := decimal.Zero
	for _, g := range groups {
		avg := g.Average()
		weighted = weighted.Add(g.Sum)
		snap.CurrencyBreakdown = append(snap.CurrencyBreakdown, CurrencyBucket{
			Currency:      g.Currency,
			AverageAmount: avg.Round(AmountScale),
			Count:         g.Count,
		})
	}

	if total > 0 {
		snap.AverageAmount = weighted.Div(decimal.NewFromInt(total)).Round(AmountScale)
	}

	return snap
}
