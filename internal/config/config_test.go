package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	for _, mode := range []string{"server", "record"} {
		cfg := Defaults()
		cfg.Mode = mode
		if mode == "record" {
			cfg.Record.Symbols = []string{"BTCUSDT"}
		}
		assert.NoError(t, cfg.Validate(), "mode %s", mode)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "replay"
	cfg.LogLevel = "verbose"
	cfg.Postgres.Host = ""
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "unknown log_level")
	assert.Contains(t, err.Error(), "postgres: host")
}

func TestValidateBacktestSettings(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "backtest"
	cfg.Backtest.Settings.StartDate = "2024-01-01"
	cfg.Backtest.Settings.EndDate = "2024-06-30"
	require.NoError(t, cfg.Validate())

	cfg.Backtest.Settings.EndDate = "soon"
	cfg.Backtest.Settings.Capital = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end_date")
	assert.Contains(t, err.Error(), "capital")
}

func TestValidateTelegramPair(t *testing.T) {
	cfg := Defaults()
	cfg.Notify.TelegramToken = "123:abc"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram_chat_id")

	cfg.Notify.TelegramChatID = "42"
	assert.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "download"

[postgres]
database = "vtrader_test"

[redis]
bar_ttl = "15m"

[download]
symbol     = "ETHUSDT"
interval   = "1h"
start_date = "2024-01-01"
end_date   = "2024-01-31"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "download", cfg.Mode)
	assert.Equal(t, "vtrader_test", cfg.Postgres.Database)
	assert.Equal(t, "ETHUSDT", cfg.Download.Symbol)
	assert.Equal(t, 15*time.Minute, cfg.Redis.BarTTL.Duration)

	// Untouched sections keep their defaults.
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, 8000, cfg.Server.Port)

	assert.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VTRADER_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("VTRADER_SERVER_PORT", "9090")
	t.Setenv("VTRADER_REDIS_ENABLED", "false")
	t.Setenv("VTRADER_RECORD_SYMBOLS", "BTCUSDT, ETHUSDT,")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Record.Symbols)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "secret"
	cfg.S3.SecretKey = "aws-secret"
	cfg.Notify.TelegramToken = "123:abc"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)

	// Original is untouched.
	assert.Equal(t, "secret", cfg.Postgres.Password)
}
