package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/txstats/internal/domain"
	"github.com/iho/txstats/internal/infrastructure/metrics"
)

// Dispatcher triggers an asynchronous statistics recompute.
type Dispatcher interface {
	Trigger(ctx context.Context) (string, error)
}

// TransactionUseCase handles ingestion and bulk deletion of transactions.
type TransactionUseCase struct {
	txManager  TransactionManager
	repo       TransactionRepository
	dispatcher Dispatcher
	cache      StatisticsCache
	retrier    Retrier
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewTransactionUseCase creates a new TransactionUseCase.
func NewTransactionUseCase(
	txManager TransactionManager,
	repo TransactionRepository,
	dispatcher Dispatcher,
	cache StatisticsCache,
	logger zerolog.Logger,
) *TransactionUseCase {
	return &TransactionUseCase{
		txManager:  txManager,
		repo:       repo,
		dispatcher: dispatcher,
		cache:      cache,
		retrier:    noRetry{},
		logger:     logger,
	}
}

// SetRetrier sets the retrier used around database transactions.
func (uc *TransactionUseCase) SetRetrier(r Retrier) {
	if r == nil {
		r = noRetry{}
	}
	uc.retrier = r
}

// SetMetrics enables metric recording.
func (uc *TransactionUseCase) SetMetrics(m *metrics.Metrics) {
	uc.metrics = m
}

type noRetry struct{}

func (noRetry) Retry(_ context.Context, operation func() error) error {
	return operation()
}

// CreateTransactionInput represents input for ingesting a transaction.
type CreateTransactionInput struct {
	Timestamp     time.Time
	TransactionID string
	UserID        string
	Currency      string
	Amount        decimal.Decimal
}

// CreateTransaction validates and persists a transaction, then triggers a
// statistics recompute. A failed trigger is logged and does not fail the
// call: the record is already committed.
func (uc *TransactionUseCase) CreateTransaction(ctx context.Context, input CreateTransactionInput) (string, error) {
	record := &domain.Transaction{
		ID:        input.TransactionID,
		UserID:    input.UserID,
		Amount:    input.Amount,
		Currency:  domain.Currency(input.Currency),
		Timestamp: input.Timestamp,
	}

	if err := record.Validate(); err != nil {
		uc.recordRejected("validation")
		return "", err
	}

	err := uc.retrier.Retry(ctx, func() error {
		return uc.insert(ctx, record)
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateTransaction) {
			uc.recordRejected("duplicate")
		}
		return "", err
	}

	if uc.metrics != nil {
		uc.metrics.TransactionsIngested.Inc()
	}

	taskID, err := uc.dispatcher.Trigger(ctx)
	if err != nil {
		if uc.metrics != nil {
			uc.metrics.RecomputeEnqueueFailures.Inc()
		}
		uc.logger.Warn().
			Err(err).
			Str("transaction_id", record.ID).
			Str("task_id", taskID).
			Msg("failed to enqueue statistics recompute")
	}

	return taskID, nil
}

func (uc *TransactionUseCase) recordRejected(reason string) {
	if uc.metrics != nil {
		uc.metrics.TransactionsRejected.WithLabelValues(reason).Inc()
	}
}

func (uc *TransactionUseCase) insert(ctx context.Context, record *domain.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	exists, err := uc.repo.ExistsTx(ctx, tx, record.ID)
	if err != nil {
		return fmt.Errorf("failed to check transaction %s: %w", record.ID, err)
	}
	if exists {
		return domain.ErrDuplicateTransaction
	}

	created, err := uc.repo.CreateTx(ctx, tx, record)
	if err != nil {
		return fmt.Errorf("failed to save transaction %s: %w", record.ID, err)
	}
	// Lost a race with a concurrent insert of the same ID.
	if !created {
		return domain.ErrDuplicateTransaction
	}

	return tx.Commit(ctx)
}

// GetTransaction retrieves a stored transaction by ID.
func (uc *TransactionUseCase) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: transaction_id", domain.ErrMissingField)
	}
	return uc.repo.GetByID(ctx, id)
}

// DeleteAllTransactions removes every record in one database transaction and
// then drops cached snapshots, which no longer describe the store.
func (uc *TransactionUseCase) DeleteAllTransactions(ctx context.Context) error {
	var deleted int64
	err := uc.retrier.Retry(ctx, func() error {
		var err error
		deleted, err = uc.deleteAll(ctx)
		return err
	})
	if err != nil {
		return err
	}

	uc.logger.Info().Int64("deleted", deleted).Msg("all transactions deleted")
	if uc.metrics != nil {
		uc.metrics.TransactionsDeleted.Add(float64(deleted))
	}

	if uc.cache != nil {
		if _, err := uc.cache.Clear(ctx); err != nil {
			uc.logger.Warn().Err(err).Msg("failed to clear statistics cache after delete")
		}
	}

	return nil
}

func (uc *TransactionUseCase) deleteAll(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	deleted, err := uc.repo.DeleteAllTx(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete transactions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return deleted, nil
}
