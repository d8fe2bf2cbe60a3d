// Package config defines the top-level configuration for vtrader and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gibsonxiong/vtrader/internal/domain"
)

// Config is the root configuration structure. Fields are populated
// from a TOML file and then optionally overridden by VTRADER_*
// environment variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Binance  BinanceConfig  `toml:"binance"`
	Backtest BacktestConfig `toml:"backtest"`
	Download DownloadConfig `toml:"download"`
	Record   RecordConfig   `toml:"record"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	BarTTL     duration `toml:"bar_ttl"`
}

// S3Config holds S3-compatible object storage parameters used for
// archiving backtest reports.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// BinanceConfig holds the exchange endpoints for bar download and
// live recording. Public market data needs no credentials.
type BinanceConfig struct {
	RestHost string `toml:"rest_host"`
	WsHost   string `toml:"ws_host"`
}

// BacktestConfig holds the default run settings for backtest mode.
type BacktestConfig struct {
	Strategy string                  `toml:"strategy"`
	Params   map[string]any          `toml:"params"`
	Settings domain.BacktestSettings `toml:"settings"`
	Report   bool                    `toml:"report"`
}

// DownloadConfig holds the bar download range for download mode.
type DownloadConfig struct {
	Symbol    string `toml:"symbol"`
	Interval  string `toml:"interval"`
	StartDate string `toml:"start_date"`
	EndDate   string `toml:"end_date"`
}

// RecordConfig holds the live kline recording parameters for record
// mode.
type RecordConfig struct {
	Symbols  []string `toml:"symbols"`
	Interval string   `toml:"interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	AuthToken   string   `toml:"auth_token"`
	CORSOrigins []string `toml:"cors_origins"`
	RateLimit   int      `toml:"rate_limit"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so the TOML decoder can parse strings
// like "5m" or "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "vtrader",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			BarTTL:     duration{time.Hour},
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "vtrader-reports",
			ForcePathStyle: true,
		},
		Binance: BinanceConfig{
			RestHost: "https://api.binance.com",
			WsHost:   "wss://stream.binance.com:9443",
		},
		Backtest: BacktestConfig{
			Strategy: "double_ma",
			Params:   map[string]any{},
			Settings: domain.BacktestSettings{
				Symbol:         "BTCUSDT",
				Interval:       domain.Interval1m,
				Capital:        1_000_000,
				CommissionRate: 0.0004,
				ContractSize:   1,
				Mode:           domain.BacktestModeBar,
			},
			Report: true,
		},
		Download: DownloadConfig{
			Interval: string(domain.Interval1m),
		},
		Record: RecordConfig{
			Interval: string(domain.Interval1m),
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
		},
		Notify: NotifyConfig{
			Events: []string{"backtest_finished", "backtest_failed", "download_finished", "error"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"backtest": true,
	"download": true,
	"record":   true,
	"server":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: backtest, download, record, server)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}

	// Binance
	if c.Binance.RestHost == "" {
		errs = append(errs, "binance: rest_host must not be empty")
	}

	mode := strings.ToLower(c.Mode)

	if mode == "backtest" {
		s := c.Backtest.Settings
		if c.Backtest.Strategy == "" {
			errs = append(errs, "backtest: strategy must not be empty")
		}
		if s.Symbol == "" {
			errs = append(errs, "backtest: settings.symbol must not be empty")
		}
		if !s.Interval.Valid() {
			errs = append(errs, fmt.Sprintf("backtest: unknown interval %q", s.Interval))
		}
		if s.Capital <= 0 {
			errs = append(errs, "backtest: settings.capital must be positive")
		}
		for _, field := range []struct{ name, value string }{
			{"start_date", s.StartDate},
			{"end_date", s.EndDate},
		} {
			if _, err := time.Parse(time.DateOnly, field.value); err != nil {
				errs = append(errs, fmt.Sprintf("backtest: settings.%s %q is not a valid date", field.name, field.value))
			}
		}
	}

	if mode == "download" {
		if c.Download.Symbol == "" {
			errs = append(errs, "download: symbol must not be empty")
		}
		if !domain.Interval(c.Download.Interval).Valid() {
			errs = append(errs, fmt.Sprintf("download: unknown interval %q", c.Download.Interval))
		}
		for _, field := range []struct{ name, value string }{
			{"start_date", c.Download.StartDate},
			{"end_date", c.Download.EndDate},
		} {
			if _, err := time.Parse(time.DateOnly, field.value); err != nil {
				errs = append(errs, fmt.Sprintf("download: %s %q is not a valid date", field.name, field.value))
			}
		}
	}

	if mode == "record" {
		if len(c.Record.Symbols) == 0 {
			errs = append(errs, "record: at least one symbol is required")
		}
		if !domain.Interval(c.Record.Interval).Valid() {
			errs = append(errs, fmt.Sprintf("record: unknown interval %q", c.Record.Interval))
		}
	}

	if mode == "server" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	// Telegram token and chat id must be set together.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
