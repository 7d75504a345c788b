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
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.LogLevel = "chatty"
	cfg.Slippage.Mode = "psychic"
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "turbo"`)
	assert.Contains(t, err.Error(), `unknown log_level "chatty"`)
	assert.Contains(t, err.Error(), `unknown mode "psychic"`)
	assert.Contains(t, err.Error(), "port must be 1-65535")
}

func TestValidateFeedRequiredForFeedMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "feed"
	cfg.Feed.URL = ""
	cfg.Feed.Symbols = nil

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed: url must not be empty")
	assert.Contains(t, err.Error(), "feed: at least one symbol")

	// serve mode has no feed requirement.
	cfg.Mode = "serve"
	assert.NoError(t, cfg.Validate())
}

func TestValidatePostgresOnlyWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Enabled = false
	cfg.Postgres.Host = ""
	require.NoError(t, cfg.Validate())

	cfg.Postgres.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: host must not be empty")

	// A DSN satisfies the connection requirement by itself.
	cfg.Postgres.DSN = "postgres://user:pass@db:5432/tradecost"
	assert.NoError(t, cfg.Validate())
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
mode = "serve"
log_level = "debug"

[feed]
url = "wss://depth.example.com/{symbol}"
symbols = ["BTC-USDT", "ETH-USDT"]

[slippage]
mode = "depth"

[server]
port = 9000

[redis]
enabled = true
quote_ttl = "30s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("TRADECOST_SERVER_PORT", "9100")
	t.Setenv("TRADECOST_FEED_SYMBOLS", "SOL-USDT , DOGE-USDT")
	t.Setenv("TRADECOST_SERVER_API_KEY", "sekrit")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "serve", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "depth", cfg.Slippage.Mode)
	assert.Equal(t, 9100, cfg.Server.Port) // env beats file
	assert.Equal(t, []string{"SOL-USDT", "DOGE-USDT"}, cfg.Feed.Symbols)
	assert.Equal(t, "sekrit", cfg.Server.APIKey)
	assert.Equal(t, 30*time.Second, cfg.Redis.QuoteTTL.Duration)

	// Untouched sections keep their defaults.
	assert.Equal(t, 5432, cfg.Postgres.Port)

	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.DSN = "postgres://user:hunter2@db/tradecost"
	cfg.Postgres.Password = "hunter2"
	cfg.Redis.Password = "hunter2"
	cfg.S3.AccessKey = "AKIA123"
	cfg.S3.SecretKey = "shhh"
	cfg.Server.APIKey = "sekrit"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Postgres.DSN)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.S3.AccessKey)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, "***", red.Server.APIKey)

	// Originals are untouched and slices are copies.
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	red.Feed.Symbols[0] = "mutated"
	assert.NotEqual(t, "mutated", cfg.Feed.Symbols[0])
}
