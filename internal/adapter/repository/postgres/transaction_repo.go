package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/txstats/internal/domain"
	"github.com/iho/txstats/internal/infrastructure/postgres/generated"
	"github.com/iho/txstats/internal/usecase"
)

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	queries *generated.Queries
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return newTransactionRepositoryWithDB(pool)
}

func newTransactionRepositoryWithDB(db generated.DBTX) *TransactionRepository {
	return &TransactionRepository{queries: generated.New(db)}
}

// ExistsTx reports whether a record with the given ID is stored.
func (r *TransactionRepository) ExistsTx(ctx context.Context, tx usecase.Transaction, id string) (bool, error) {
	return r.withTx(tx).ExistsTransaction(ctx, id)
}

// CreateTx inserts a record, ignoring conflicts on the primary key.
// It reports false when a row with the same ID already existed.
func (r *TransactionRepository) CreateTx(ctx context.Context, tx usecase.Transaction, record *domain.Transaction) (bool, error) {
	affected, err := r.withTx(tx).CreateTransaction(ctx, generated.CreateTransactionParams{
		TransactionID: record.ID,
		UserID:        record.UserID,
		Amount:        decimalToNumeric(record.Amount),
		Currency:      string(record.Currency),
		Timestamp:     timeToPgTimestamptz(record.Timestamp),
	})
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// DeleteAllTx removes every record and returns how many were deleted.
func (r *TransactionRepository) DeleteAllTx(ctx context.Context, tx usecase.Transaction) (int64, error) {
	return r.withTx(tx).DeleteAllTransactions(ctx)
}

// GetByID retrieves a record by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row, err := r.queries.GetTransactionByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}

		return nil, err
	}

	return rowToTransaction(row), nil
}

// Count returns the number of stored records.
func (r *TransactionRepository) Count(ctx context.Context) (int64, error) {
	return r.queries.CountTransactions(ctx)
}

// CurrencyAggregates returns the sum and count per currency, ordered by
// currency code.
func (r *TransactionRepository) CurrencyAggregates(ctx context.Context) ([]domain.CurrencyAggregate, error) {
	rows, err := r.queries.CurrencyAggregates(ctx)
	if err != nil {
		return nil, err
	}

	aggregates := make([]domain.CurrencyAggregate, 0, len(rows))
	for _, row := range rows {
		aggregates = append(aggregates, domain.CurrencyAggregate{
			Currency: domain.Currency(row.Currency),
			Sum:      numericToDecimal(row.TotalAmount),
			Count:    row.TransactionCount,
		})
	}

	return aggregates, nil
}

// ListPage returns (id, amount) pairs ordered by ID.
func (r *TransactionRepository) ListPage(ctx context.Context, offset, limit int) ([]domain.TopEntry, error) {
	rows, err := r.queries.ListTransactionPage(ctx, generated.ListTransactionPageParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, err
	}

	entries := make([]domain.TopEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.TopEntry{
			ID:     row.TransactionID,
			Amount: numericToDecimal(row.Amount),
		})
	}

	return entries, nil
}

func (r *TransactionRepository) withTx(tx usecase.Transaction) *generated.Queries {
	return r.queries.WithTx(tx.(*Tx).PgxTx())
}

func rowToTransaction(row generated.Transaction) *domain.Transaction {
	return &domain.Transaction{
		ID:        row.TransactionID,
		UserID:    row.UserID,
		Amount:    numericToDecimal(row.Amount),
		Currency:  domain.Currency(row.Currency),
		Timestamp: row.Timestamp.Time,
	}
}

// Type conversion helpers.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric

	_ = n.Scan(d.String())

	return n
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Zero
	}

	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}
