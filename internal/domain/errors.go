package domain

import "errors"

var (
	// Transaction errors
	ErrInvalidTransaction   = errors.New("invalid transaction")
	ErrMissingField         = errors.New("required field is missing")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInvalidCurrency      = errors.New("unsupported currency")
	ErrCurrencyNotUppercase = errors.New("currency must be in uppercase")
	ErrDuplicateTransaction = errors.New("transaction with the same ID already exists")
	ErrTransactionNotFound  = errors.New("transaction not found")

	// Store errors
	ErrStoreUnavailable = errors.New("record store unavailable")
	ErrScanFailed       = errors.New("transaction scan failed")

	// Statistics errors
	ErrAggregationFailed  = errors.New("statistics aggregation failed")
	ErrCacheMiss          = errors.New("statistics not cached")
	ErrTaskRetryExhausted = errors.New("recompute task retry budget exhausted")
)
