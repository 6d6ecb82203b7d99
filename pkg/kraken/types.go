package kraken

import "encoding/json"

// SubscribeRequest is the handshake sent right after every (re)connect.
// Kraken does not keep subscriptions across connections.
type SubscribeRequest struct {
	Method string          `json:"method"` // "subscribe"
	Params SubscribeParams `json:"params"`
}

type SubscribeParams struct {
	Channel string   `json:"channel"` // e.g., "ticker"
	Symbol  []string `json:"symbol"`  // e.g., ["BTC/USD", "ETH/USD"]
}

// NewTickerSubscription builds the subscribe request for the ticker channel.
func NewTickerSubscription(symbols []string) SubscribeRequest {
	return SubscribeRequest{
		Method: MethodSubscribe,
		Params: SubscribeParams{
			Channel: ChannelTicker,
			Symbol:  symbols,
		},
	}
}

// Frame is the common envelope of channel messages on the v2 feed.
// Method responses (subscribe acks) carry Method instead of Channel.
type Frame struct {
	Channel string          `json:"channel"` // e.g., "heartbeat", "ticker", "status"
	Type    string          `json:"type"`    // "snapshot" or "update"
	Data    json.RawMessage `json:"data"`    // Delay decoding, shape depends on channel
	Method  string          `json:"method"`  // set on method responses
	Success *bool           `json:"success"` // set on method responses
	Error   string          `json:"error"`   // set on failed method responses
}

// Ticker is one element of a ticker channel data array. Numeric fields are
// kept as json.Number so the exchange's literal text is preserved.
type Ticker struct {
	Symbol    string      `json:"symbol"`     // e.g., "BTC/USD"
	Last      json.Number `json:"last"`       // Last traded price
	Bid       json.Number `json:"bid"`        // Best bid price
	Ask       json.Number `json:"ask"`        // Best ask price
	Volume    json.Number `json:"volume"`     // 24h volume in base currency
	VWAP      json.Number `json:"vwap"`       // 24h volume weighted average price
	Change    json.Number `json:"change"`     // 24h price change
	ChangePct json.Number `json:"change_pct"` // 24h price change in percent
}
