package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRADECOST_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known TRADECOST_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Feed ──
	setStr(&cfg.Feed.URL, "TRADECOST_FEED_URL")
	setStringSlice(&cfg.Feed.Symbols, "TRADECOST_FEED_SYMBOLS")

	// ── Impact ──
	setFloat64(&cfg.Impact.LambdaTemp, "TRADECOST_IMPACT_LAMBDA_TEMP")
	setFloat64(&cfg.Impact.Gamma, "TRADECOST_IMPACT_GAMMA")
	setFloat64(&cfg.Impact.Sigma, "TRADECOST_IMPACT_SIGMA")
	setFloat64(&cfg.Impact.Eta, "TRADECOST_IMPACT_ETA")
	setFloat64(&cfg.Impact.Epsilon, "TRADECOST_IMPACT_EPSILON")
	setFloat64(&cfg.Impact.Tau, "TRADECOST_IMPACT_TAU")
	setFloat64(&cfg.Impact.FallbackFactor, "TRADECOST_IMPACT_FALLBACK_FACTOR")

	// ── Slippage ──
	setStr(&cfg.Slippage.Mode, "TRADECOST_SLIPPAGE_MODE")
	setFloat64(&cfg.Slippage.ImpactFactor, "TRADECOST_SLIPPAGE_IMPACT_FACTOR")
	setFloat64(&cfg.Slippage.AdditionalFactor, "TRADECOST_SLIPPAGE_ADDITIONAL_FACTOR")
	setFloat64(&cfg.Slippage.MarketVolume, "TRADECOST_SLIPPAGE_MARKET_VOLUME")
	setInt(&cfg.Slippage.TrainingLimit, "TRADECOST_SLIPPAGE_TRAINING_LIMIT")

	// ── Fees ──
	setStr(&cfg.Fees.Exchange, "TRADECOST_FEES_EXCHANGE")
	setStr(&cfg.Fees.FeeType, "TRADECOST_FEES_FEE_TYPE")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "TRADECOST_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "TRADECOST_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TRADECOST_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TRADECOST_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TRADECOST_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TRADECOST_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TRADECOST_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TRADECOST_POSTGRES_SSLMODE")
	setStr(&cfg.Postgres.SSLMode, "TRADECOST_POSTGRES_SSL_MODE") // compatibility alias
	setInt(&cfg.Postgres.PoolMaxConns, "TRADECOST_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TRADECOST_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TRADECOST_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TRADECOST_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TRADECOST_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRADECOST_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRADECOST_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TRADECOST_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TRADECOST_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TRADECOST_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.QuoteTTL, "TRADECOST_REDIS_QUOTE_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TRADECOST_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TRADECOST_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TRADECOST_S3_REGION")
	setStr(&cfg.S3.Bucket, "TRADECOST_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TRADECOST_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TRADECOST_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TRADECOST_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TRADECOST_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "TRADECOST_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TRADECOST_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TRADECOST_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "TRADECOST_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "TRADECOST_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "TRADECOST_SERVER_RATE_WINDOW")

	// ── Simulate ──
	setDuration(&cfg.Simulate.Interval, "TRADECOST_SIMULATE_INTERVAL")
	setFloat64(&cfg.Simulate.MidPrice, "TRADECOST_SIMULATE_MID_PRICE")
	setInt(&cfg.Simulate.Levels, "TRADECOST_SIMULATE_LEVELS")
	setInt64(&cfg.Simulate.Seed, "TRADECOST_SIMULATE_SEED")

	// ── Retention ──
	setBool(&cfg.Retention.Enabled, "TRADECOST_RETENTION_ENABLED")
	setInt(&cfg.Retention.Days, "TRADECOST_RETENTION_DAYS")
	setStr(&cfg.Retention.Cron, "TRADECOST_RETENTION_CRON")

	// ── Top-level ──
	setStr(&cfg.Mode, "TRADECOST_MODE")
	setStr(&cfg.LogLevel, "TRADECOST_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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
