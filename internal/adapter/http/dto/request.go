package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/txstats/internal/usecase"
)

// CreateTransactionRequest represents a request to ingest a transaction.
type CreateTransactionRequest struct {
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Timestamp     time.Time       `json:"timestamp"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateTransactionRequest) ToUseCaseInput() usecase.CreateTransactionInput {
	return usecase.CreateTransactionInput{
		TransactionID: r.TransactionID,
		UserID:        r.UserID,
		Amount:        r.Amount,
		Currency:      r.Currency,
		Timestamp:     r.Timestamp,
	}
}
