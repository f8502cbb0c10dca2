package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 code accepted by the service.
type Currency string

// Supported currencies.
const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyRUB Currency = "RUB"
	CurrencyGBP Currency = "GBP"
	CurrencyJPY Currency = "JPY"
	CurrencyCNY Currency = "CNY"
)

var supportedCurrencies = []Currency{
	CurrencyUSD, CurrencyEUR, CurrencyRUB, CurrencyGBP, CurrencyJPY, CurrencyCNY,
}

// SupportedCurrencies returns the accepted currency codes.
func SupportedCurrencies() []Currency {
	out := make([]Currency, len(supportedCurrencies))
	copy(out, supportedCurrencies)
	return out
}

// ParseCurrency validates a currency code. Codes are case sensitive:
// "usd" is rejected rather than normalised.
func ParseCurrency(code string) (Currency, error) {
	if code == "" {
		return "", fmt.Errorf("%w: currency", ErrMissingField)
	}

	if code != strings.ToUpper(code) {
		return "", fmt.Errorf("%w: got %q", ErrCurrencyNotUppercase, code)
	}

	for _, c := range supportedCurrencies {
		if Currency(code) == c {
			return c, nil
		}
	}

	names := make([]string, len(supportedCurrencies))
	for i, c := range supportedCurrencies {
		names[i] = string(c)
	}

	return "", fmt.Errorf("%w: %s (supported: %s)", ErrInvalidCurrency, code, strings.Join(names, ", "))
}

// Transaction is an ingested financial transaction record. It is never
// mutated after creation.
type Transaction struct {
	Timestamp time.Time
	ID        string
	UserID    string
	Currency  Currency
	Amount    decimal.Decimal
}

// Validate checks the record before it is persisted.
func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: transaction_id", ErrMissingField)
	}

	if strings.TrimSpace(t.UserID) == "" {
		return fmt.Errorf("%w: user_id", ErrMissingField)
	}

	if t.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	if _, err := ParseCurrency(string(t.Currency)); err != nil {
		return err
	}

	if t.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp", ErrMissingField)
	}

	return nil
}

// IsValidationError reports whether err was caused by bad client input.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidTransaction,
		ErrMissingField,
		ErrInvalidAmount,
		ErrInvalidCurrency,
		ErrCurrencyNotUppercase,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
