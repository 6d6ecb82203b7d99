package collector

import (
	"context"
	"time"

	"papertrader/config"
	"papertrader/internal/kraken/broadcaster"
	"papertrader/internal/kraken/memorystore"
	"papertrader/internal/kraken/stream"
	"papertrader/pkg/kraken"

	"go.uber.org/zap"
)

const statusInterval = 30 * time.Second

// StartCollector wires the Kraken ticker feed into prices and starts the
// broadcaster that publishes them. Everything runs until ctx is done. The
// returned channel yields the feed's terminal error, if any, then closes.
func StartCollector(ctx context.Context, cfg *config.Config, logger *zap.Logger,
	prices *memorystore.MemoryPriceStore, b *broadcaster.Broadcaster) <-chan error {

	// Initialize WebSocket client
	wsClient := kraken.NewWSClient(cfg.Kraken.WS, logger.Named("kraken"))
	wsClient.SetMessageHandler(stream.MakeMessageHandler(logger.Named("stream"), prices))

	go b.Start(ctx)

	// Periodically print stored price count for visibility
	go func() {
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Info("current cached prices",
					zap.Int("count", prices.Count()),
					zap.Int("subscribed", len(cfg.Kraken.WS.Symbols)))
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		logger.Info("starting kraken feed",
			zap.String("url", cfg.Kraken.WS.URL),
			zap.Strings("symbols", cfg.Kraken.WS.Symbols))
		if err := wsClient.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("kraken feed stopped", zap.Error(err))
			errCh <- err
		}
	}()

	return errCh
}
