// Package ledger executes simulated market orders against cached prices and
// keeps the account balance, holdings and transaction history.
package ledger

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the precision of every monetary amount. Rounding is
// half-up (away from zero), applied to the computed total only.
const MoneyPlaces = 2

// Quantities and prices must stay within these bounds. Decimal arithmetic
// rescales by 10^|exponent|, so an unbounded exponent would stall the
// ledger lock.
const (
	maxScale  = 18
	maxDigits = 38
)

// DefaultStartingBalance is the balance of a fresh or reset account.
var DefaultStartingBalance = decimal.NewFromInt(10000)

// PriceSource returns the latest price string for a symbol.
type PriceSource interface {
	Get(symbol string) (string, bool)
}

// Journal observes ledger mutations. Both methods are called while the
// ledger lock is held, in mutation order, so they must not block.
type Journal interface {
	Record(tx Transaction)
	Reset()
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithJournal forwards every executed transaction and reset to j.
func WithJournal(j Journal) Option {
	return func(l *Ledger) { l.journal = j }
}

// WithClock overrides the transaction timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithStartingBalance sets the balance of a fresh or reset account.
func WithStartingBalance(d decimal.Decimal) Option {
	return func(l *Ledger) { l.startingBalance = d.Round(MoneyPlaces) }
}

// Ledger owns the single simulated account. All operations are serialized
// by one mutex: the price lookup, the checks and the mutation of an order
// happen as one step.
type Ledger struct {
	mu              sync.Mutex
	prices          PriceSource
	journal         Journal
	now             func() time.Time
	startingBalance decimal.Decimal

	balance  decimal.Decimal
	holdings map[string]decimal.Decimal
	history  []Transaction
}

// New returns a ledger holding the starting balance and no positions.
func New(prices PriceSource, opts ...Option) *Ledger {
	l := &Ledger{
		prices:          prices,
		now:             time.Now,
		startingBalance: DefaultStartingBalance,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.startingBalance.IsNegative() {
		l.startingBalance = decimal.Zero
	}
	l.balance = l.startingBalance
	l.holdings = make(map[string]decimal.Decimal)
	return l
}

// Buy purchases quantity units of symbol at the cached price.
func (l *Ledger) Buy(symbol string, quantity decimal.Decimal) (Receipt, error) {
	if err := validateOrder(symbol, quantity); err != nil {
		return Receipt{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	price, err := l.priceOf(symbol)
	if err != nil {
		return Receipt{}, err
	}

	cost := price.Mul(quantity).Round(MoneyPlaces)
	if !cost.IsPositive() {
		return Receipt{}, reject(ErrInvalidOrder, symbol, "order value rounds to zero")
	}
	if l.balance.LessThan(cost) {
		return Receipt{}, reject(ErrInsufficientBalance, symbol,
			"cost $%s exceeds balance $%s", cost.StringFixed(MoneyPlaces), l.balance.StringFixed(MoneyPlaces))
	}

	l.balance = l.balance.Sub(cost)
	l.holdings[symbol] = l.holdings[symbol].Add(quantity)

	tx := l.record(symbol, Buy, quantity, price, cost)
	return Receipt{Transaction: tx, Message: confirmation(tx)}, nil
}

// Sell sells quantity units of symbol at the cached price.
func (l *Ledger) Sell(symbol string, quantity decimal.Decimal) (Receipt, error) {
	if err := validateOrder(symbol, quantity); err != nil {
		return Receipt{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	price, err := l.priceOf(symbol)
	if err != nil {
		return Receipt{}, err
	}

	held, ok := l.holdings[symbol]
	if !ok || held.LessThan(quantity) {
		return Receipt{}, reject(ErrInsufficientHoldings, symbol,
			"holding %s of %s, tried to sell %s", held.String(), symbol, quantity.String())
	}

	revenue := price.Mul(quantity).Round(MoneyPlaces)
	if !revenue.IsPositive() {
		return Receipt{}, reject(ErrInvalidOrder, symbol, "order value rounds to zero")
	}

	l.balance = l.balance.Add(revenue)
	if remaining := held.Sub(quantity); remaining.IsZero() {
		delete(l.holdings, symbol)
	} else {
		l.holdings[symbol] = remaining
	}

	tx := l.record(symbol, Sell, quantity, price, revenue)
	return Receipt{Transaction: tx, Message: confirmation(tx)}, nil
}

// Reset restores the starting balance and clears holdings and history.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balance = l.startingBalance
	clear(l.holdings)
	l.history = nil

	if l.journal != nil {
		l.journal.Reset()
	}
}

// Account returns a copy of the current account state.
func (l *Ledger) Account() Account {
	l.mu.Lock()
	defer l.mu.Unlock()

	holdings := make(map[string]decimal.Decimal, len(l.holdings))
	for sym, qty := range l.holdings {
		holdings[sym] = qty
	}
	return Account{Balance: l.balance, Holdings: holdings}
}

// History returns every executed transaction in execution order.
func (l *Ledger) History() []Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Transaction, len(l.history))
	copy(out, l.history)
	return out
}

// Restore replays previously persisted transactions on top of the starting
// balance. It is meant for startup, before any order is placed, and does not
// forward to the journal. On any inconsistency the ledger is left unchanged.
func (l *Ledger) Restore(txs []Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balance
	holdings := make(map[string]decimal.Decimal, len(l.holdings))
	for sym, qty := range l.holdings {
		holdings[sym] = qty
	}

	for i, tx := range txs {
		if tx.Symbol == "" || !tx.Quantity.IsPositive() || tx.Total.IsNegative() {
			return fmt.Errorf("restore transaction %d (%s): malformed", i, tx.ID)
		}
		switch tx.Side {
		case Buy:
			balance = balance.Sub(tx.Total)
			if balance.IsNegative() {
				return fmt.Errorf("restore transaction %d (%s): balance would go negative", i, tx.ID)
			}
			holdings[tx.Symbol] = holdings[tx.Symbol].Add(tx.Quantity)
		case Sell:
			held := holdings[tx.Symbol]
			if held.LessThan(tx.Quantity) {
				return fmt.Errorf("restore transaction %d (%s): sells more %s than held", i, tx.ID, tx.Symbol)
			}
			balance = balance.Add(tx.Total)
			if rest := held.Sub(tx.Quantity); rest.IsZero() {
				delete(holdings, tx.Symbol)
			} else {
				holdings[tx.Symbol] = rest
			}
		default:
			return fmt.Errorf("restore transaction %d (%s): %v", i, tx.ID, tx.Side)
		}
	}

	l.balance = balance
	l.holdings = holdings
	l.history = append(l.history, txs...)
	return nil
}

// ParseQuantity parses a user supplied quantity. Anything that is not a
// finite positive decimal is an invalid order.
func ParseQuantity(s string) (decimal.Decimal, error) {
	q, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, reject(ErrInvalidOrder, "", "quantity %q is not a number", s)
	}
	if err := checkQuantity("", q); err != nil {
		return decimal.Decimal{}, err
	}
	return q, nil
}

func validateOrder(symbol string, quantity decimal.Decimal) error {
	if symbol == "" {
		return reject(ErrInvalidOrder, symbol, "symbol is required")
	}
	return checkQuantity(symbol, quantity)
}

func checkQuantity(symbol string, quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return reject(ErrInvalidOrder, symbol, "quantity must be positive, got %s", quantity.String())
	}
	if !withinBounds(quantity) {
		return reject(ErrInvalidOrder, symbol, "quantity out of range")
	}
	return nil
}

// priceOf must be called with l.mu held.
func (l *Ledger) priceOf(symbol string) (decimal.Decimal, error) {
	raw, ok := l.prices.Get(symbol)
	if !ok {
		return decimal.Decimal{}, reject(ErrPriceUnavailable, symbol, "price for %s not available", symbol)
	}
	price, err := decimal.NewFromString(raw)
	if err != nil || !price.IsPositive() || !withinBounds(price) {
		return decimal.Decimal{}, reject(ErrPriceUnavailable, symbol, "price for %s not available", symbol)
	}
	return price, nil
}

// record must be called with l.mu held.
func (l *Ledger) record(symbol string, side Side, quantity, price, total decimal.Decimal) Transaction {
	tx := Transaction{
		ID:        uuid.New(),
		Timestamp: l.now(),
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		Total:     total,
	}
	l.history = append(l.history, tx)

	if l.journal != nil {
		l.journal.Record(tx)
	}
	return tx
}

// withinBounds reports whether v has at most maxDigits significant digits
// and an exponent within ±maxScale.
func withinBounds(v decimal.Decimal) bool {
	exp := v.Exponent()
	return exp >= -maxScale && exp <= maxScale && v.NumDigits() <= maxDigits
}
