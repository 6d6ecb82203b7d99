package stream

import "papertrader/pkg/kraken"

// TickerMessage represents a ticker channel message from the Kraken v2 feed.
type TickerMessage struct {
	Channel string          `json:"channel"` // Always "ticker"
	Type    string          `json:"type"`    // "snapshot" on subscribe, "update" afterwards
	Data    []kraken.Ticker `json:"data"`    // Ticker entries, one per symbol in practice
}
