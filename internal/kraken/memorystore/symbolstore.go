package memorystore

import (
	"sort"
	"strings"
)

var defaultDisplayNames = map[string]string{
	"BTC/USD":   "Bitcoin",
	"ETH/USD":   "Ethereum",
	"XRP/USD":   "Ripple",
	"BCH/USD":   "Bitcoin Cash",
	"LTC/USD":   "Litecoin",
	"ADA/USD":   "Cardano",
	"DOT/USD":   "Polkadot",
	"LINK/USD":  "Chainlink",
	"BNB/USD":   "Binance Coin",
	"DOGE/USD":  "Dogecoin",
	"SOL/USD":   "Solana",
	"MATIC/USD": "Polygon",
	"AVAX/USD":  "Avalanche",
	"UNI/USD":   "Uniswap",
	"ATOM/USD":  "Cosmos",
	"XLM/USD":   "Stellar",
	"ICP/USD":   "Internet Computer",
	"VET/USD":   "VeChain",
	"ALGO/USD":  "Algorand",
	"EOS/USD":   "EOS",
}

// SymbolStore maps exchange symbols to display names. It is built once at
// startup and never mutated, so it needs no locking.
type SymbolStore struct {
	names map[string]string
}

// NewSymbolStore returns the built-in names with overrides applied on top.
// Override keys are matched case-insensitively since config loaders may
// lower-case them.
func NewSymbolStore(overrides map[string]string) *SymbolStore {
	names := make(map[string]string, len(defaultDisplayNames)+len(overrides))
	for sym, name := range defaultDisplayNames {
		names[sym] = name
	}
	for sym, name := range overrides {
		if name == "" {
			continue
		}
		names[strings.ToUpper(sym)] = name
	}
	return &SymbolStore{names: names}
}

// DisplayName returns the human-readable name for symbol, or the symbol
// itself when it is unmapped.
func (s *SymbolStore) DisplayName(symbol string) string {
	if name, ok := s.names[symbol]; ok {
		return name
	}
	return symbol
}

// Symbols returns every mapped symbol in sorted order.
func (s *SymbolStore) Symbols() []string {
	out := make([]string, 0, len(s.names))
	for sym := range s.names {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
