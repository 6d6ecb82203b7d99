package stream

import (
	"encoding/json"

	"papertrader/pkg/kraken"

	"go.uber.org/zap"
)

// PriceWriter receives parsed prices.
type PriceWriter interface {
	Put(symbol, price string)
}

// MakeMessageHandler returns a function that handles incoming WebSocket
// messages by parsing ticker frames and writing the last price per symbol.
// It never returns an error: bad frames are logged and dropped.
func MakeMessageHandler(logger *zap.Logger, store PriceWriter) func(msg []byte) {
	return func(msg []byte) {
		// Step 1: Extract the envelope for early filtering
		var frame kraken.Frame
		if err := json.Unmarshal(msg, &frame); err != nil {
			logger.Warn("failed to parse frame", zap.Error(err), zap.ByteString("raw", truncate(msg)))
			return
		}

		switch frame.Channel {
		case kraken.ChannelHeartbeat:
			return
		case kraken.ChannelTicker:
			// handled below
		case "":
			logMethodResponse(logger, frame)
			return
		default:
			logger.Debug("ignoring frame", zap.String("channel", frame.Channel), zap.String("type", frame.Type))
			return
		}

		if !kraken.IsDataType(frame.Type) {
			logger.Debug("ignoring ticker frame", zap.String("type", frame.Type))
			return
		}

		// Step 2: Fully parse the ticker payload
		var parsed TickerMessage
		if err := json.Unmarshal(msg, &parsed); err != nil {
			logger.Warn("failed to parse ticker payload", zap.Error(err), zap.ByteString("raw", truncate(msg)))
			return
		}
		if len(parsed.Data) == 0 {
			return
		}

		// Step 3: Store the first entry's last price as received
		ticker := parsed.Data[0]
		if ticker.Symbol == "" || ticker.Last == "" {
			logger.Debug("ticker entry without symbol or last price", zap.String("symbol", ticker.Symbol))
			return
		}
		store.Put(ticker.Symbol, ticker.Last.String())
	}
}

func logMethodResponse(logger *zap.Logger, frame kraken.Frame) {
	if frame.Method == "" {
		logger.Debug("ignoring frame without channel")
		return
	}
	if frame.Success != nil && !*frame.Success {
		logger.Warn("method request rejected", zap.String("method", frame.Method), zap.String("error", frame.Error))
		return
	}
	logger.Debug("method acknowledged", zap.String("method", frame.Method))
}

func truncate(msg []byte) []byte {
	const max = 256
	if len(msg) > max {
		return msg[:max]
	}
	return msg
}
