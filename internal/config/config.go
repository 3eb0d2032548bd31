package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"btc-trend-watch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Series    SeriesConfig    `mapstructure:"series"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
	Outlook   OutlookConfig   `mapstructure:"outlook"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Chainlink ChainlinkConfig `mapstructure:"chainlink"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// SeriesConfig governs the in-memory price history and trend signal.
type SeriesConfig struct {
	RetentionWindow time.Duration `mapstructure:"retention_window"`
	TrendLookback   time.Duration `mapstructure:"trend_lookback"`
	DeadbandPct     float64       `mapstructure:"deadband_pct"`
}

// FeedConfig covers the streaming market-data connection.
type FeedConfig struct {
	URL               string        `mapstructure:"url"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	MaxReconnectDelay time.Duration `mapstructure:"max_reconnect_delay"`
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout"`
}

// BootstrapConfig covers the historical seed fetch.
type BootstrapConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	FromSym        string        `mapstructure:"from_sym"`
	ToSym          string        `mapstructure:"to_sym"`
	Limit          int           `mapstructure:"limit"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// OutlookConfig covers the periodic outlook generation.
type OutlookConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	BaseURL        string        `mapstructure:"base_url"`
	Interval       time.Duration `mapstructure:"interval"`
	SliceWindow    time.Duration `mapstructure:"slice_window"`
	MaxWords       int           `mapstructure:"max_words"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AlertsConfig defines alert persistence and delivery.
type AlertsConfig struct {
	StorePath       string         `mapstructure:"store_path"`
	NotificationTTL time.Duration  `mapstructure:"notification_ttl"`
	Telegram        TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram delivery parameters.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ServerConfig covers the dashboard HTTP API.
type ServerConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// DatabaseConfig encapsulates optional PostgreSQL audit connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ChainlinkConfig covers the on-chain reference price read.
type ChainlinkConfig struct {
	RPCURL            string        `mapstructure:"rpc_url"`
	AggregatorAddress string        `mapstructure:"aggregator_address"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BTCWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "btcwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("series.retention_window", "24h")
	v.SetDefault("series.trend_lookback", "15m")
	v.SetDefault("series.deadband_pct", 0.05)

	v.SetDefault("feed.url", "wss://stream.binance.com:9443/ws/btcusdt@aggTrade")
	v.SetDefault("feed.reconnect_delay", "5s")
	v.SetDefault("feed.max_reconnect_delay", "60s")
	v.SetDefault("feed.handshake_timeout", "15s")

	v.SetDefault("bootstrap.base_url", "https://min-api.cryptocompare.com/data")
	v.SetDefault("bootstrap.from_sym", "BTC")
	v.SetDefault("bootstrap.to_sym", "USD")
	v.SetDefault("bootstrap.limit", 1439)
	v.SetDefault("bootstrap.request_timeout", "15s")
	v.SetDefault("bootstrap.user_agent", "btcwatcher/1.0")

	v.SetDefault("outlook.enabled", false)
	v.SetDefault("outlook.model", "gemini-2.5-flash")
	v.SetDefault("outlook.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("outlook.interval", "5m")
	v.SetDefault("outlook.slice_window", "30m")
	v.SetDefault("outlook.max_words", 30)
	v.SetDefault("outlook.request_timeout", "30s")

	v.SetDefault("alerts.store_path", "data/alerts")
	v.SetDefault("alerts.notification_ttl", "10s")
	v.SetDefault("alerts.telegram.enabled", false)
	v.SetDefault("alerts.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.listen_addr", "127.0.0.1:8087")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("chainlink.request_timeout", "10s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Series.RetentionWindow <= 0 {
		return fmt.Errorf("series.retention_window must be greater than zero")
	}
	if c.Series.TrendLookback <= 0 {
		return fmt.Errorf("series.trend_lookback must be greater than zero")
	}
	if c.Series.DeadbandPct <= 0 {
		return fmt.Errorf("series.deadband_pct must be greater than zero")
	}
	if c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required")
	}
	if c.Feed.ReconnectDelay <= 0 {
		return fmt.Errorf("feed.reconnect_delay must be greater than zero")
	}
	if c.Bootstrap.Limit <= 0 {
		return fmt.Errorf("bootstrap.limit must be greater than zero")
	}
	if c.Outlook.Enabled {
		if c.Outlook.APIKey == "" {
			return fmt.Errorf("outlook.api_key is required when outlook is enabled")
		}
		if c.Outlook.Interval <= 0 {
			return fmt.Errorf("outlook.interval must be greater than zero")
		}
	}
	if c.Alerts.Telegram.Enabled {
		if c.Alerts.Telegram.BotToken == "" {
			return fmt.Errorf("alerts.telegram.bot_token is required when telegram is enabled")
		}
		if c.Alerts.Telegram.ChatID == "" {
			return fmt.Errorf("alerts.telegram.chat_id is required when telegram is enabled")
		}
	}
	if c.Server.Enabled && c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required when the server is enabled")
	}
	return nil
}
