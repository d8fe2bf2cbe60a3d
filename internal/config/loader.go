package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of
// the built-in defaults, applies VTRADER_* environment variable
// overrides, and returns the final Config. The returned Config has
// NOT been validated; the caller should invoke Config.Validate()
// after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known VTRADER_* environment variables
// and overwrites the corresponding Config fields when a variable is
// set. This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "VTRADER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "VTRADER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "VTRADER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "VTRADER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "VTRADER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "VTRADER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "VTRADER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "VTRADER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "VTRADER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "VTRADER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "VTRADER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "VTRADER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "VTRADER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "VTRADER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "VTRADER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "VTRADER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "VTRADER_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.BarTTL, "VTRADER_REDIS_BAR_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "VTRADER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "VTRADER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "VTRADER_S3_REGION")
	setStr(&cfg.S3.Bucket, "VTRADER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "VTRADER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "VTRADER_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "VTRADER_S3_FORCE_PATH_STYLE")

	// ── Binance ──
	setStr(&cfg.Binance.RestHost, "VTRADER_BINANCE_REST_HOST")
	setStr(&cfg.Binance.WsHost, "VTRADER_BINANCE_WS_HOST")

	// ── Backtest ──
	setStr(&cfg.Backtest.Strategy, "VTRADER_BACKTEST_STRATEGY")
	setStr(&cfg.Backtest.Settings.Symbol, "VTRADER_BACKTEST_SYMBOL")
	setStr((*string)(&cfg.Backtest.Settings.Interval), "VTRADER_BACKTEST_INTERVAL")
	setStr(&cfg.Backtest.Settings.StartDate, "VTRADER_BACKTEST_START_DATE")
	setStr(&cfg.Backtest.Settings.EndDate, "VTRADER_BACKTEST_END_DATE")
	setFloat64(&cfg.Backtest.Settings.Capital, "VTRADER_BACKTEST_CAPITAL")
	setFloat64(&cfg.Backtest.Settings.CommissionRate, "VTRADER_BACKTEST_COMMISSION_RATE")
	setFloat64(&cfg.Backtest.Settings.ContractSize, "VTRADER_BACKTEST_CONTRACT_SIZE")
	setFloat64(&cfg.Backtest.Settings.PriceTick, "VTRADER_BACKTEST_PRICE_TICK")
	setBool(&cfg.Backtest.Settings.EnforceBalanceChecks, "VTRADER_BACKTEST_ENFORCE_BALANCE_CHECKS")
	setBool(&cfg.Backtest.Report, "VTRADER_BACKTEST_REPORT")

	// ── Download ──
	setStr(&cfg.Download.Symbol, "VTRADER_DOWNLOAD_SYMBOL")
	setStr(&cfg.Download.Interval, "VTRADER_DOWNLOAD_INTERVAL")
	setStr(&cfg.Download.StartDate, "VTRADER_DOWNLOAD_START_DATE")
	setStr(&cfg.Download.EndDate, "VTRADER_DOWNLOAD_END_DATE")

	// ── Record ──
	setStringSlice(&cfg.Record.Symbols, "VTRADER_RECORD_SYMBOLS")
	setStr(&cfg.Record.Interval, "VTRADER_RECORD_INTERVAL")

	// ── Server ──
	setInt(&cfg.Server.Port, "VTRADER_SERVER_PORT")
	setStr(&cfg.Server.AuthToken, "VTRADER_SERVER_AUTH_TOKEN")
	setStringSlice(&cfg.Server.CORSOrigins, "VTRADER_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "VTRADER_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "VTRADER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "VTRADER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "VTRADER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "VTRADER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "VTRADER_MODE")
	setStr(&cfg.LogLevel, "VTRADER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the
// environment variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
