package memorystore

// Quote is one entry of a price snapshot as delivered to subscribers.
type Quote struct {
	Name   string `json:"name"`   // Display name (e.g., "Bitcoin")
	Symbol string `json:"symbol"` // Exchange symbol (e.g., "BTC/USD")
	Price  string `json:"price"`  // Last traded price as reported by the exchange
}
