package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"papertrader/config"
	"papertrader/internal/fanout"
	"papertrader/internal/httpapi"
	"papertrader/internal/journal"
	"papertrader/internal/kraken/broadcaster"
	"papertrader/internal/kraken/collector"
	"papertrader/internal/kraken/memorystore"
	"papertrader/internal/ledger"
	"papertrader/logger"
	"papertrader/pkg/storage/postgres"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	// viper config
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("simulator failed", zap.Error(err))
	}
	log.Info("simulator stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	startingBalance, err := decimal.NewFromString(cfg.Ledger.StartingBalance)
	if err != nil {
		return err
	}

	hub := fanout.NewHub(0, log.Named("hub"))
	go hub.Run(ctx)

	if cfg.Kafka.Enabled() {
		kp := fanout.NewKafkaPublisher(cfg.Kafka, log.Named("kafka"))
		defer kp.Close()
		msgs, unsubscribe := hub.Subscribe()
		defer unsubscribe()
		go kp.Run(ctx, msgs)
	}

	prices := memorystore.NewPriceStore()
	names := memorystore.NewSymbolStore(cfg.Symbols.Names)

	opts := []ledger.Option{ledger.WithStartingBalance(startingBalance)}
	var persisted []ledger.Transaction
	if cfg.Postgres.Enabled {
		client, err := postgres.InitializeAndMigrateTransactionRecord(cfg.Postgres, cfg.Log.Environment, true)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				log.Warn("failed to close journal database", zap.Error(err))
			}
		}()

		persisted, err = client.ListTransactions(ctx)
		if err != nil {
			return err
		}

		w := journal.NewWriter(client, cfg.Postgres.QueueSize, log.Named("journal"))
		w.StartWorker(ctx)
		defer func() {
			cancel()
			<-w.Done()
		}()
		opts = append(opts, ledger.WithJournal(w))
		log.Info("transaction journal enabled", zap.String("db", cfg.Postgres.DBName))
	}
	book := ledger.New(prices, opts...)
	if err := book.Restore(persisted); err != nil {
		return err
	}
	if len(persisted) > 0 {
		log.Info("restored account from journal", zap.Int("transactions", len(persisted)))
	}

	b := broadcaster.New(prices, names, hub, cfg.Broadcast.Interval, log.Named("broadcaster"))
	feedErr := collector.StartCollector(ctx, cfg, log.Named("collector"), prices, b)

	if cfg.Log.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	routes := httpapi.NewRoutes(book, b, hub, log.Named("http"))
	if cfg.Broadcast.Topic != "" {
		routes.StreamPath = cfg.Broadcast.Topic
	}
	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: httpapi.NewRouter(routes),
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-feedErr:
		// Feed gave up; the ledger keeps serving the last known prices.
		if err != nil {
			log.Warn("price feed stopped, prices are frozen", zap.Error(err))
		}
		select {
		case <-ctx.Done():
		case err := <-srvErr:
			return err
		}
	case err := <-srvErr:
		return err
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}
