package broadcaster

import (
	"context"
	"sort"
	"time"

	"papertrader/internal/kraken/memorystore"

	"go.uber.org/zap"
)

const DefaultInterval = 5 * time.Second

// PriceSnapshotter returns a point-in-time copy of the latest prices.
type PriceSnapshotter interface {
	All() map[string]string
}

// Publisher accepts a quote batch without blocking.
type Publisher interface {
	Publish(v any) bool
}

// Broadcaster periodically pushes the full price table to a publisher.
type Broadcaster struct {
	prices    PriceSnapshotter
	names     *memorystore.SymbolStore
	publisher Publisher
	interval  time.Duration
	logger    *zap.Logger
}

func New(prices PriceSnapshotter, names *memorystore.SymbolStore, publisher Publisher, interval time.Duration, logger *zap.Logger) *Broadcaster {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if names == nil {
		names = memorystore.NewSymbolStore(nil)
	}
	return &Broadcaster{
		prices:    prices,
		names:     names,
		publisher: publisher,
		interval:  interval,
		logger:    logger,
	}
}

// Snapshot returns every known price as quotes sorted by symbol.
func (b *Broadcaster) Snapshot() []memorystore.Quote {
	all := b.prices.All()
	quotes := make([]memorystore.Quote, 0, len(all))
	for symbol, price := range all {
		quotes = append(quotes, memorystore.Quote{
			Name:   b.names.DisplayName(symbol),
			Symbol: symbol,
			Price:  price,
		})
	}
	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Symbol < quotes[j].Symbol })
	return quotes
}

// Tick publishes one snapshot and returns it. An empty cache still
// publishes an empty list.
func (b *Broadcaster) Tick() []memorystore.Quote {
	quotes := b.Snapshot()
	if !b.publisher.Publish(quotes) {
		b.logger.Warn("price snapshot dropped", zap.Int("quotes", len(quotes)))
	}
	return quotes
}

// Start runs Tick every interval until ctx is done.
func (b *Broadcaster) Start(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			quotes := b.Tick()
			b.logger.Debug("broadcast prices", zap.Int("quotes", len(quotes)))
		}
	}
}
