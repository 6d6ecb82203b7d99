package ledger

import (
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"papertrader/internal/kraken/memorystore"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertBalance(t *testing.T, l *Ledger, want string) {
	t.Helper()
	if got := l.Account().Balance; !got.Equal(d(want)) {
		t.Fatalf("balance = %s, want %s", got, want)
	}
}

type recordingJournal struct {
	mu      sync.Mutex
	records []Transaction
	resets  int
}

func (j *recordingJournal) Record(tx Transaction) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, tx)
}

func (j *recordingJournal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.resets++
	j.records = nil
}

// go test -v --run TestBuyThenSellScenario
func TestBuyThenSellScenario(t *testing.T) {
	prices := memorystore.NewPriceStore()
	l := New(prices)

	// fresh account buys 0.1 BTC at 50000
	prices.Put("BTC/USD", "50000")
	receipt, err := l.Buy("BTC/USD", d("0.1"))
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	assertBalance(t, l, "5000.00")

	acct := l.Account()
	if q := acct.Holdings["BTC/USD"]; !q.Equal(d("0.1")) {
		t.Fatalf("holding = %s, want 0.1", q)
	}
	if receipt.Transaction.Side != Buy || !receipt.Transaction.Total.Equal(d("5000")) {
		t.Errorf("unexpected transaction: %+v", receipt.Transaction)
	}
	want := "Bought 0.1 of BTC/USD at $50000 per unit, total cost: $5000.00"
	if receipt.Message != want {
		t.Errorf("message = %q, want %q", receipt.Message, want)
	}

	// price moves, sell everything
	prices.Put("BTC/USD", "51000")
	receipt, err = l.Sell("BTC/USD", d("0.1"))
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	assertBalance(t, l, "10100.00")

	if _, ok := l.Account().Holdings["BTC/USD"]; ok {
		t.Error("expected BTC/USD holding to be removed after full sell")
	}
	want = "Sold 0.1 of BTC/USD at $51000 per unit, total revenue: $5100.00"
	if receipt.Message != want {
		t.Errorf("message = %q, want %q", receipt.Message, want)
	}

	history := l.History()
	if len(history) != 2 || history[0].Side != Buy || history[1].Side != Sell {
		t.Fatalf("unexpected history: %+v", history)
	}
}

// go test -v --run TestRejectedOrdersDoNotMutate
func TestRejectedOrdersDoNotMutate(t *testing.T) {
	prices := memorystore.NewPriceStore()
	prices.Put("ETH/USD", "3000")
	prices.Put("BAD/USD", "n/a")
	prices.Put("ZERO/USD", "0")
	prices.Put("TINY/USD", "1e-50000000")

	l := New(prices)
	if _, err := l.Buy("ETH/USD", d("1")); err != nil {
		t.Fatalf("setup buy failed: %v", err)
	}

	tests := []struct {
		name string
		run  func() error
		kind error
	}{
		{"buy without price", func() error { _, err := l.Buy("DOGE/USD", d("1")); return err }, ErrPriceUnavailable},
		{"sell without price", func() error { _, err := l.Sell("DOGE/USD", d("1")); return err }, ErrPriceUnavailable},
		{"unparsable cached price", func() error { _, err := l.Buy("BAD/USD", d("1")); return err }, ErrPriceUnavailable},
		{"zero cached price", func() error { _, err := l.Buy("ZERO/USD", d("1")); return err }, ErrPriceUnavailable},
		{"sell more than held", func() error { _, err := l.Sell("ETH/USD", d("1.5")); return err }, ErrInsufficientHoldings},
		{"sell without holding", func() error {
			prices.Put("SOL/USD", "150")
			_, err := l.Sell("SOL/USD", d("1"))
			return err
		}, ErrInsufficientHoldings},
		{"buy beyond balance", func() error { _, err := l.Buy("ETH/USD", d("3")); return err }, ErrInsufficientBalance},
		{"zero quantity", func() error { _, err := l.Buy("ETH/USD", decimal.Zero); return err }, ErrInvalidOrder},
		{"negative quantity", func() error { _, err := l.Sell("ETH/USD", d("-1")); return err }, ErrInvalidOrder},
		{"empty symbol", func() error { _, err := l.Buy("", d("1")); return err }, ErrInvalidOrder},
		{"value rounds to zero", func() error { _, err := l.Buy("ETH/USD", d("0.000001")); return err }, ErrInvalidOrder},
		{"tiny quantity exponent", func() error { _, err := l.Buy("ETH/USD", d("1e-50000000")); return err }, ErrInvalidOrder},
		{"huge quantity exponent", func() error { _, err := l.Sell("ETH/USD", d("1e50000000")); return err }, ErrInvalidOrder},
		{"too many digits", func() error { _, err := l.Buy("ETH/USD", d("1234567890123456789012345678901234567890")); return err }, ErrInvalidOrder},
		{"cached price out of range", func() error { _, err := l.Buy("TINY/USD", d("1")); return err }, ErrPriceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if !errors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
			var orderErr *OrderError
			if !errors.As(err, &orderErr) {
				t.Fatalf("expected *OrderError, got %T", err)
			}

			acct := l.Account()
			if !acct.Balance.Equal(d("7000")) {
				t.Errorf("balance changed to %s", acct.Balance)
			}
			if len(acct.Holdings) != 1 || !acct.Holdings["ETH/USD"].Equal(d("1")) {
				t.Errorf("holdings changed: %v", acct.Holdings)
			}
			if len(l.History()) != 1 {
				t.Errorf("history changed: %d entries", len(l.History()))
			}
		})
	}
}

// go test -v --run TestRoundingHalfUp
func TestRoundingHalfUp(t *testing.T) {
	prices := memorystore.NewPriceStore()
	prices.Put("BTC/USD", "100.005")

	for i := 0; i < 2; i++ {
		l := New(prices)
		receipt, err := l.Buy("BTC/USD", d("2"))
		if err != nil {
			t.Fatalf("buy failed: %v", err)
		}
		if !receipt.Transaction.Total.Equal(d("200.01")) {
			t.Fatalf("cost = %s, want 200.01", receipt.Transaction.Total)
		}
		assertBalance(t, l, "9799.99")
	}

	// revenue follows the same rule
	prices.Put("ETH/USD", "0.125")
	l := New(prices)
	if _, err := l.Buy("ETH/USD", d("100")); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	receipt, err := l.Sell("ETH/USD", d("1"))
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	if !receipt.Transaction.Total.Equal(d("0.13")) {
		t.Errorf("revenue = %s, want 0.13", receipt.Transaction.Total)
	}
}

// go test -v --run TestPartialSellKeepsRemainder
func TestPartialSellKeepsRemainder(t *testing.T) {
	prices := memorystore.NewPriceStore()
	prices.Put("SOL/USD", "150")
	l := New(prices)

	if _, err := l.Buy("SOL/USD", d("3")); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Sell("SOL/USD", d("1.25")); err != nil {
		t.Fatal(err)
	}
	if q := l.Account().Holdings["SOL/USD"]; !q.Equal(d("1.75")) {
		t.Fatalf("holding = %s, want 1.75", q)
	}
	if _, err := l.Sell("SOL/USD", d("1.75")); err != nil {
		t.Fatal(err)
	}
	if len(l.Account().Holdings) != 0 {
		t.Errorf("expected no holdings, got %v", l.Account().Holdings)
	}
	assertBalance(t, l, "10000")
}

// go test -v --run TestReset
func TestReset(t *testing.T) {
	prices := memorystore.NewPriceStore()
	prices.Put("BTC/USD", "50000")
	prices.Put("ETH/USD", "3000")

	journal := &recordingJournal{}
	l := New(prices, WithJournal(journal))

	if _, err := l.Buy("BTC/USD", d("0.05")); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Buy("ETH/USD", d("1")); err != nil {
		t.Fatal(err)
	}
	if len(journal.records) != 2 {
		t.Fatalf("expected 2 journaled transactions, got %d", len(journal.records))
	}

	l.Reset()

	assertBalance(t, l, "10000.00")
	if len(l.Account().Holdings) != 0 {
		t.Error("expected holdings cleared")
	}
	if len(l.History()) != 0 {
		t.Error("expected history cleared")
	}
	if journal.resets != 1 {
		t.Errorf("expected journal reset once, got %d", journal.resets)
	}

	// reset on a fresh account is a no-op on state
	l.Reset()
	assertBalance(t, l, "10000")
}

// go test -v --run TestHistoryOrderAndCopy
func TestHistoryOrderAndCopy(t *testing.T) {
	prices := memorystore.NewPriceStore()
	prices.Put("BTC/USD", "100")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	l := New(prices, WithClock(clock))

	quantities := []string{"1", "2", "3"}
	for _, q := range quantities {
		if _, err := l.Buy("BTC/USD", d(q)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := l.Sell("BTC/USD", d("4")); err != nil {
		t.Fatal(err)
	}

	history := l.History()
	if len(history) != 4 {
		t.Fatalf("expected 4 transactions, got %d", len(history))
	}
	for i, q := range quantities {
		if !history[i].Quantity.Equal(d(q)) || history[i].Side != Buy {
			t.Errorf("entry %d = %+v", i, history[i])
		}
	}
	if history[3].Side != Sell {
		t.Errorf("last entry should be a sell")
	}
	for i := 1; i < len(history); i++ {
		if !history[i].Timestamp.After(history[i-1].Timestamp) {
			t.Errorf("timestamps out of order at %d", i)
		}
		if history[i].ID == history[i-1].ID {
			t.Errorf("duplicate transaction id at %d", i)
		}
	}

	history[0].Symbol = "MUTATED"
	if l.History()[0].Symbol != "BTC/USD" {
		t.Error("History must return a copy")
	}

	acct := l.Account()
	acct.Holdings["BTC/USD"] = d("1000")
	if !l.Account().Holdings["BTC/USD"].Equal(d("2")) {
		t.Error("Account must return a copy of holdings")
	}
}

// go test -race -v --run TestConcurrentBuysCannotOverspend
func TestConcurrentBuysCannotOverspend(t *testing.T) {
	prices := memorystore.NewPriceStore()
	prices.Put("BTC/USD", "6000")

	for round := 0; round < 50; round++ {
		l := New(prices)

		start := make(chan struct{})
		errs := make(chan error, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := l.Buy("BTC/USD", d("1"))
				errs <- err
			}()
		}
		close(start)
		wg.Wait()
		close(errs)

		var ok, rejected int
		for err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrInsufficientBalance):
				rejected++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if ok != 1 || rejected != 1 {
			t.Fatalf("round %d: %d succeeded, %d rejected", round, ok, rejected)
		}
		assertBalance(t, l, "4000")
	}
}

// go test -v --run TestRandomSequencesKeepInvariants
func TestRandomSequencesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	symbols := []string{"BTC/USD", "ETH/USD", "SOL/USD"}
	prices := memorystore.NewPriceStore()
	l := New(prices)

	for i := 0; i < 2000; i++ {
		sym := symbols[rng.Intn(len(symbols))]
		price := decimal.NewFromInt(int64(rng.Intn(100000) + 1)).Shift(-3)
		prices.Put(sym, price.String())
		qty := decimal.NewFromInt(int64(rng.Intn(5000) + 1)).Shift(-2)

		before := len(l.History())
		var err error
		if rng.Intn(2) == 0 {
			_, err = l.Buy(sym, qty)
		} else {
			_, err = l.Sell(sym, qty)
		}

		history := l.History()
		if err == nil {
			if len(history) != before+1 {
				t.Fatalf("step %d: expected one new transaction", i)
			}
			last := history[len(history)-1]
			if !last.Total.Equal(last.Price.Mul(last.Quantity).Round(MoneyPlaces)) {
				t.Fatalf("step %d: total %s not rounded price*qty", i, last.Total)
			}
		} else if len(history) != before {
			t.Fatalf("step %d: rejected order changed history", i)
		}

		acct := l.Account()
		if acct.Balance.IsNegative() {
			t.Fatalf("step %d: negative balance %s", i, acct.Balance)
		}
		if !acct.Balance.Equal(acct.Balance.Round(MoneyPlaces)) {
			t.Fatalf("step %d: balance %s has more than 2 decimals", i, acct.Balance)
		}
		for s, q := range acct.Holdings {
			if !q.IsPositive() {
				t.Fatalf("step %d: non-positive holding %s=%s", i, s, q)
			}
		}
	}
}

// go test -v --run TestParseQuantity
func TestParseQuantity(t *testing.T) {
	if q, err := ParseQuantity(" 0.25 "); err != nil || !q.Equal(d("0.25")) {
		t.Errorf("ParseQuantity(0.25) = %s, %v", q, err)
	}
	if q, err := ParseQuantity("0.000000000000000001"); err != nil || !q.Equal(d("1e-18")) {
		t.Errorf("ParseQuantity(1e-18) = %s, %v", q, err)
	}
	for _, in := range []string{"", "abc", "NaN", "Inf", "0", "-1", "1e-50000000", "1e50000000", "1e-19", "1e19"} {
		if _, err := ParseQuantity(in); !errors.Is(err, ErrInvalidOrder) {
			t.Errorf("ParseQuantity(%q) error = %v, want ErrInvalidOrder", in, err)
		}
	}
}

// go test -v --run TestSideJSON
func TestSideJSON(t *testing.T) {
	b, err := json.Marshal(struct{ Side Side }{Sell})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"Side":"SELL"}` {
		t.Errorf("unexpected encoding %s", b)
	}

	var out struct{ Side Side }
	if err := json.Unmarshal([]byte(`{"Side":"BUY"}`), &out); err != nil || out.Side != Buy {
		t.Errorf("decode BUY: %v %v", out.Side, err)
	}
	if err := json.Unmarshal([]byte(`{"Side":"HOLD"}`), &out); err == nil {
		t.Error("expected error for unknown side")
	}
	if _, err := json.Marshal(struct{ Side Side }{}); err == nil {
		t.Error("expected error for zero side")
	}
}

// go test -v --run TestOutOfRangeQuantityDoesNotHoldLock
func TestOutOfRangeQuantityDoesNotHoldLock(t *testing.T) {
	prices := memorystore.NewPriceStore()
	prices.Put("BTC/USD", "50000")
	l := New(prices)

	done := make(chan error, 2)
	go func() {
		_, err := l.Buy("BTC/USD", decimal.New(1, -50000000))
		done <- err
	}()
	go func() {
		_, err := l.Buy("BTC/USD", decimal.New(1, 50000000))
		done <- err
	}()

	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			if !errors.Is(err, ErrInvalidOrder) {
				t.Errorf("expected ErrInvalidOrder, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("order with extreme exponent did not return promptly")
		}
	}
	assertBalance(t, l, "10000")
}

// go test -v --run TestRestoreReplaysHistory
func TestRestoreReplaysHistory(t *testing.T) {
	prices := memorystore.NewPriceStore()
	prices.Put("ETH/USD", "100.005")

	source := New(prices)
	if _, err := source.Buy("ETH/USD", d("2")); err != nil {
		t.Fatal(err)
	}
	if _, err := source.Sell("ETH/USD", d("0.5")); err != nil {
		t.Fatal(err)
	}

	journal := &recordingJournal{}
	restored := New(prices, WithJournal(journal))
	if err := restored.Restore(source.History()); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	want, got := source.Account(), restored.Account()
	if !got.Balance.Equal(want.Balance) {
		t.Errorf("balance = %s, want %s", got.Balance, want.Balance)
	}
	if !got.Holdings["ETH/USD"].Equal(want.Holdings["ETH/USD"]) {
		t.Errorf("holdings = %v, want %v", got.Holdings, want.Holdings)
	}
	if len(restored.History()) != 2 {
		t.Errorf("expected 2 restored transactions, got %d", len(restored.History()))
	}
	if len(journal.records) != 0 {
		t.Error("restore must not re-journal transactions")
	}
}

// go test -v --run TestRestoreRejectsInconsistentHistory
func TestRestoreRejectsInconsistentHistory(t *testing.T) {
	l := New(memorystore.NewPriceStore())

	txs := []Transaction{
		{Symbol: "BTC/USD", Side: Buy, Quantity: d("1"), Price: d("100"), Total: d("100")},
		{Symbol: "BTC/USD", Side: Sell, Quantity: d("2"), Price: d("100"), Total: d("200")},
	}
	if err := l.Restore(txs); err == nil {
		t.Fatal("expected error for oversold history")
	}
	assertBalance(t, l, "10000")
	if len(l.Account().Holdings) != 0 || len(l.History()) != 0 {
		t.Error("ledger changed after failed restore")
	}

	overspend := []Transaction{{Symbol: "BTC/USD", Side: Buy, Quantity: d("1"), Price: d("20000"), Total: d("20000")}}
	if err := l.Restore(overspend); err == nil {
		t.Fatal("expected error for negative balance")
	}
}
