// Package config defines the top-level configuration for the cost estimator
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TRADECOST_* environment variables.
type Config struct {
	Feed      FeedConfig      `toml:"feed"`
	Impact    ImpactConfig    `toml:"impact"`
	Slippage  SlippageConfig  `toml:"slippage"`
	Fees      FeesConfig      `toml:"fees"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Simulate  SimulateConfig  `toml:"simulate"`
	Retention RetentionConfig `toml:"retention"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// FeedConfig holds the depth-stream subscription parameters. URL may contain a
// {symbol} placeholder; without one the symbol is appended as a path segment.
type FeedConfig struct {
	URL     string   `toml:"url"`
	Symbols []string `toml:"symbols"`
}

// ImpactConfig holds the Almgren-Chriss model parameters. Zero values fall
// back to the model defaults.
type ImpactConfig struct {
	LambdaTemp     float64 `toml:"lambda_temp"`
	Gamma          float64 `toml:"gamma"`
	Sigma          float64 `toml:"sigma"`
	Eta            float64 `toml:"eta"`
	Epsilon        float64 `toml:"epsilon"`
	Tau            float64 `toml:"tau"`
	FallbackFactor float64 `toml:"fallback_factor"`
}

// SlippageConfig selects and tunes the slippage estimator.
type SlippageConfig struct {
	// Mode is one of "simple", "depth", "regression", "auto".
	Mode             string  `toml:"mode"`
	ImpactFactor     float64 `toml:"impact_factor"`
	AdditionalFactor float64 `toml:"additional_factor"`
	MarketVolume     float64 `toml:"market_volume"`
	// TrainingLimit caps how many stored samples are loaded for training.
	TrainingLimit int `toml:"training_limit"`
}

// FeesConfig selects the default fee schedule entry applied when a request
// does not name an exchange.
type FeesConfig struct {
	Exchange string `toml:"exchange"`
	FeeType  string `toml:"fee_type"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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
	QuoteTTL   duration `toml:"quote_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// SimulateConfig holds the synthetic depth generator parameters used by
// simulate mode.
type SimulateConfig struct {
	Interval duration `toml:"interval"`
	MidPrice float64  `toml:"mid_price"`
	Levels   int      `toml:"levels"`
	Seed     int64    `toml:"seed"`
}

// RetentionConfig holds the sample retention job parameters. The job needs
// both PostgreSQL and S3 enabled to run.
type RetentionConfig struct {
	Enabled bool   `toml:"enabled"`
	Days    int    `toml:"days"`
	Cron    string `toml:"cron"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Feed: FeedConfig{
			URL:     "wss://stream.example.com/depth/{symbol}",
			Symbols: []string{"BTC-USDT"},
		},
		Slippage: SlippageConfig{
			Mode:          "auto",
			TrainingLimit: 5000,
		},
		Fees: FeesConfig{
			FeeType: "taker",
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "tradecost",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
			QuoteTTL:   duration{5 * time.Minute},
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "tradecost-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   0,
			RateWindow:  duration{time.Second},
		},
		Simulate: SimulateConfig{
			Interval: duration{250 * time.Millisecond},
			MidPrice: 50000,
			Levels:   10,
			Seed:     1,
		},
		Retention: RetentionConfig{
			Enabled: false,
			Days:    90,
			Cron:    "0 3 1 * *",
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"feed":     true,
	"simulate": true,
	"serve":    true,
	"full":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validSlippageModes enumerates the accepted values for SlippageConfig.Mode.
var validSlippageModes = map[string]bool{
	"simple":     true,
	"depth":      true,
	"regression": true,
	"auto":       true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: feed, simulate, serve, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Feed — required for the modes that consume a live stream.
	needsFeed := c.Mode == "feed" || c.Mode == "full"
	if needsFeed {
		if c.Feed.URL == "" {
			errs = append(errs, "feed: url must not be empty for mode "+c.Mode)
		}
		if len(c.Feed.Symbols) == 0 {
			errs = append(errs, "feed: at least one symbol is required for mode "+c.Mode)
		}
	}

	// Impact — explicit values must stay in range; zero means "use default".
	if c.Impact.Tau < 0 {
		errs = append(errs, "impact: tau must not be negative")
	}
	for name, v := range map[string]float64{
		"lambda_temp":     c.Impact.LambdaTemp,
		"gamma":           c.Impact.Gamma,
		"sigma":           c.Impact.Sigma,
		"eta":             c.Impact.Eta,
		"epsilon":         c.Impact.Epsilon,
		"fallback_factor": c.Impact.FallbackFactor,
	} {
		if v < 0 {
			errs = append(errs, fmt.Sprintf("impact: %s must not be negative", name))
		}
	}

	// Slippage
	if !validSlippageModes[strings.ToLower(c.Slippage.Mode)] {
		errs = append(errs, fmt.Sprintf("slippage: unknown mode %q (valid: simple, depth, regression, auto)", c.Slippage.Mode))
	}
	if c.Slippage.ImpactFactor < 0 {
		errs = append(errs, "slippage: impact_factor must not be negative")
	}
	if c.Slippage.TrainingLimit < 0 {
		errs = append(errs, "slippage: training_limit must not be negative")
	}

	// Postgres
	if c.Postgres.Enabled {
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
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must not be negative")
		}
	}

	// Retention
	if c.Retention.Enabled {
		if c.Retention.Days < 1 {
			errs = append(errs, "retention: days must be >= 1")
		}
		if strings.TrimSpace(c.Retention.Cron) == "" {
			errs = append(errs, "retention: cron must not be empty")
		}
		if !c.Postgres.Enabled || !c.S3.Enabled {
			errs = append(errs, "retention: requires postgres and s3 to be enabled")
		}
	}

	// Simulate
	if c.Mode == "simulate" {
		if c.Simulate.Interval.Duration <= 0 {
			errs = append(errs, "simulate: interval must be > 0")
		}
		if c.Simulate.MidPrice <= 0 {
			errs = append(errs, "simulate: mid_price must be > 0")
		}
		if c.Simulate.Levels < 1 {
			errs = append(errs, "simulate: levels must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
