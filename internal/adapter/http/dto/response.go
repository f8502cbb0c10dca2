package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/txstats/internal/domain"
)

// TransactionCreatedResponse is returned after a transaction is ingested.
type TransactionCreatedResponse struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

// RecomputeResponse is returned when a recompute is queued manually.
type RecomputeResponse struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

// TransactionResponse represents a stored transaction in API responses.
type TransactionResponse struct {
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Timestamp     time.Time       `json:"timestamp"`
}

// TransactionFromDomain converts a domain transaction to response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		TransactionID: t.ID,
		UserID:        t.UserID,
		Amount:        t.Amount,
		Currency:      string(t.Currency),
		Timestamp:     t.Timestamp,
	}
}

// TopTransactionResponse is one entry of the top transactions list.
type TopTransactionResponse struct {
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
}

// CurrencyBreakdownResponse is the per-currency part of the statistics.
type CurrencyBreakdownResponse struct {
	Currency         string  `json:"currency"`
	AverageAmount    float64 `json:"average_amount"`
	TransactionCount int64   `json:"transaction_count"`
}

// StatisticsResponse represents a statistics snapshot in API responses.
type StatisticsResponse struct {
	TotalTransactions        int64                       `json:"total_transactions"`
	AverageTransactionAmount float64                     `json:"average_transaction_amount"`
	TopTransactions          []TopTransactionResponse    `json:"top_transactions"`
	CurrencyBreakdown        []CurrencyBreakdownResponse `json:"currency_breakdown"`
}

// StatisticsFromDomain converts a snapshot to response. Slices are never
// nil so empty statistics encode as [] rather than null.
func StatisticsFromDomain(s *domain.StatisticsSnapshot) *StatisticsResponse {
	resp := &StatisticsResponse{
		TotalTransactions:        s.TotalTransactions,
		AverageTransactionAmount: s.AverageAmount.InexactFloat64(),
		TopTransactions:          make([]TopTransactionResponse, len(s.TopTransactions)),
		CurrencyBreakdown:        make([]CurrencyBreakdownResponse, len(s.CurrencyBreakdown)),
	}

	for i, e := range s.TopTransactions {
		resp.TopTransactions[i] = TopTransactionResponse{
			TransactionID: e.ID,
			Amount:        e.Amount.InexactFloat64(),
		}
	}

	for i, b := range s.CurrencyBreakdown {
		resp.CurrencyBreakdown[i] = CurrencyBreakdownResponse{
			Currency:         string(b.Currency),
			AverageAmount:    b.AverageAmount.InexactFloat64(),
			TransactionCount: b.Count,
		}
	}

	return resp
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// AuthErrorResponse is the body of a 401 response.
type AuthErrorResponse struct {
	Detail string `json:"detail"`
}
