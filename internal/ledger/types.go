package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side tags a transaction as a purchase or a sale.
type Side uint8

const (
	Buy Side = iota + 1
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return fmt.Sprintf("Side(%d)", uint8(s))
	}
}

func (s Side) MarshalText() ([]byte, error) {
	if s != Buy && s != Sell {
		return nil, fmt.Errorf("invalid side %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	switch string(b) {
	case "BUY":
		*s = Buy
	case "SELL":
		*s = Sell
	default:
		return fmt.Errorf("invalid side %q", b)
	}
	return nil
}

// Transaction is an executed order. It is never modified after creation.
type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"type"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"` // unit price at execution
	Total     decimal.Decimal `json:"total"` // round(Price*Quantity, 2)
}

// Account is a point-in-time copy of the simulated account.
// Holdings never contain zero or negative quantities.
type Account struct {
	Balance  decimal.Decimal            `json:"balance"`
	Holdings map[string]decimal.Decimal `json:"holdings"`
}

// Receipt is returned for an executed order.
type Receipt struct {
	Transaction Transaction
	Message     string
}

func confirmation(tx Transaction) string {
	switch tx.Side {
	case Buy:
		return fmt.Sprintf("Bought %s of %s at $%s per unit, total cost: $%s",
			tx.Quantity.String(), tx.Symbol, tx.Price.String(), tx.Total.StringFixed(MoneyPlaces))
	default:
		return fmt.Sprintf("Sold %s of %s at $%s per unit, total revenue: $%s",
			tx.Quantity.String(), tx.Symbol, tx.Price.String(), tx.Total.StringFixed(MoneyPlaces))
	}
}
