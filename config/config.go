package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Kraken    KrakenConfig    `mapstructure:"kraken"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Symbols   SymbolsConfig   `mapstructure:"symbols"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Log       LogConfig       `mapstructure:"log"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
}

type KrakenConfig struct {
	WS WSConfig `mapstructure:"ws"`
}

type WSConfig struct {
	URL              string        `mapstructure:"url"`
	Symbols          []string      `mapstructure:"symbols"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	Backoff          BackoffConfig `mapstructure:"backoff"`
}

// BackoffConfig bounds the reconnect policy of the feed client.
// MaxRetries of 0 keeps retrying until shutdown.
type BackoffConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	Jitter          float64       `mapstructure:"jitter"`
	MaxRetries      int           `mapstructure:"max_retries"`
}

type BroadcastConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Topic    string        `mapstructure:"topic"`
}

// SymbolsConfig overrides or extends the built-in display names.
type SymbolsConfig struct {
	Names map[string]string `mapstructure:"names"`
}

type LedgerConfig struct {
	StartingBalance string `mapstructure:"starting_balance"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Enabled reports whether a Kafka sink should be started.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
	Compress    bool   `mapstructure:"compress"`
}

// DefaultSymbols is the trading pair set the feed subscribes to when none is configured.
var DefaultSymbols = []string{
	"BTC/USD", "ETH/USD", "XRP/USD", "BCH/USD", "LTC/USD",
	"ADA/USD", "DOT/USD", "LINK/USD", "BNB/USD", "DOGE/USD",
	"SOL/USD", "MATIC/USD", "AVAX/USD", "UNI/USD", "ATOM/USD",
	"XLM/USD", "ICP/USD", "VET/USD", "ALGO/USD", "EOS/USD",
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
// PAPERTRADER_CONFIG may point at an explicit file.
func Load() (*Config, error) {
	v := viper.New()

	if path := os.Getenv("PAPERTRADER_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // config.yaml
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		if ex, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
		}
		if pwd, err := os.Getwd(); err == nil {
			v.AddConfigPath(filepath.Join(pwd, "../../config"))
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// Support environment variables with dot notation (e.g., KRAKEN_WS_URL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine: defaults and env still apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(cfg.Kraken.WS.Symbols) == 0 {
		cfg.Kraken.WS.Symbols = append([]string(nil), DefaultSymbols...)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("kraken.ws.url", "wss://ws.kraken.com/v2")
	v.SetDefault("kraken.ws.handshake_timeout", 15*time.Second)
	v.SetDefault("kraken.ws.read_timeout", 60*time.Second)
	v.SetDefault("kraken.ws.ping_interval", 15*time.Second)
	v.SetDefault("kraken.ws.backoff.initial_interval", time.Second)
	v.SetDefault("kraken.ws.backoff.max_interval", 30*time.Second)
	v.SetDefault("kraken.ws.backoff.multiplier", 2.0)
	v.SetDefault("kraken.ws.backoff.jitter", 0.2)
	v.SetDefault("kraken.ws.backoff.max_retries", 0)

	v.SetDefault("broadcast.interval", 5*time.Second)
	v.SetDefault("broadcast.topic", "/topic/prices")

	v.SetDefault("ledger.starting_balance", "10000")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("kafka.topic", "prices")
	v.SetDefault("kafka.write_timeout", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.environment", "dev")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("log.compress", true)

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.dbname", "papertrader")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)
	v.SetDefault("postgres.queue_size", 256)
}
