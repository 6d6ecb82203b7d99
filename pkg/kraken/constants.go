package kraken

// DefaultWSURL is Kraken's public v2 WebSocket endpoint.
const DefaultWSURL = "wss://ws.kraken.com/v2"

// Channel names used by the v2 public feed.
const (
	ChannelHeartbeat = "heartbeat"
	ChannelTicker    = "ticker"
	ChannelStatus    = "status"
)

// Message types carried on data channels.
const (
	TypeSnapshot = "snapshot"
	TypeUpdate   = "update"
)

// MethodSubscribe is the request method that opens a channel subscription.
const MethodSubscribe = "subscribe"

// IsDataType reports whether typ carries market data for caching.
// Snapshot and update are treated identically.
func IsDataType(typ string) bool {
	return typ == TypeSnapshot || typ == TypeUpdate
}
