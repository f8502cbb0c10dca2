package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultPageSize is how many records one scan page holds.
	DefaultPageSize = 1000

	// MaxPageSize bounds the scan page so selector memory stays predictable.
	MaxPageSize = 10000

	// StatisticsCacheTTL is how long a computed snapshot stays cached.
	StatisticsCacheTTL = time.Hour

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour
)
