package usecase

import (
	"context"
	"time"

	"github.com/iho/txstats/internal/domain"
)

// TransactionRepository defines data access for transaction records.
type TransactionRepository interface {
	ExistsTx(ctx context.Context, tx Transaction, id string) (bool, error)
	// CreateTx inserts the record unless the ID is already present and
	// reports whether a row was written.
	CreateTx(ctx context.Context, tx Transaction, record *domain.Transaction) (bool, error)
	DeleteAllTx(ctx context.Context, tx Transaction) (int64, error)
	// GetByID returns domain.ErrTransactionNotFound for unknown IDs.
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	Count(ctx context.Context) (int64, error)
	CurrencyAggregates(ctx context.Context) ([]domain.CurrencyAggregate, error)
	// ListPage returns (id, amount) pairs ordered by ID.
	ListPage(ctx context.Context, offset, limit int) ([]domain.TopEntry, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation on transient store errors such as
// serialization failures.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// TaskQueue carries recompute tasks to the worker with at-least-once
// delivery.
type TaskQueue interface {
	Enqueue(ctx context.Context, task *domain.RecomputeTask) error
	// Dequeue returns the next ready task, or nil when none is ready.
	Dequeue(ctx context.Context) (*domain.RecomputeTask, error)
	Ack(ctx context.Context, task *domain.RecomputeTask) error
	// Nack requeues the task so it becomes ready again after delay.
	Nack(ctx context.Context, task *domain.RecomputeTask, delay time.Duration) error
}

// StatisticsCache stores computed snapshots keyed by task ID.
type StatisticsCache interface {
	Store(ctx context.Context, taskID string, snapshot *domain.StatisticsSnapshot, ttl time.Duration) error
	// Load returns domain.ErrCacheMiss when nothing is cached for the task.
	Load(ctx context.Context, taskID string) (*domain.StatisticsSnapshot, error)
	// Clear removes every cached snapshot and returns how many were removed.
	Clear(ctx context.Context) (int64, error)
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release removes the key so a failed request can be retried.
	Release(ctx context.Context, key string) error
}
