package ledger

import (
	"errors"
	"fmt"
)

// Rejection kinds. Every rejected order leaves the account untouched and
// returns an *OrderError that matches one of these with errors.Is.
var (
	ErrInvalidOrder         = errors.New("invalid order")
	ErrPriceUnavailable     = errors.New("price unavailable")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
)

// OrderError describes why an order was rejected.
type OrderError struct {
	Kind   error
	Symbol string
	Reason string
}

func (e *OrderError) Error() string {
	if e.Reason == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
}

func (e *OrderError) Unwrap() error {
	return e.Kind
}

func reject(kind error, symbol, format string, args ...any) *OrderError {
	return &OrderError{Kind: kind, Symbol: symbol, Reason: fmt.Sprintf(format, args...)}
}
