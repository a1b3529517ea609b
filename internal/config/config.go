// Package config defines the top-level configuration for the arbitrage
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by TRIARB_* environment
// variables.
type Config struct {
	Exchange Exchange `toml:"exchange"`
	Scanner  Scanner  `toml:"scanner"`
	Trader   Trader   `toml:"trader"`
	Postgres Postgres `toml:"postgres"`
	Redis    Redis    `toml:"redis"`
	S3       S3       `toml:"s3"`
	Archive  Archive  `toml:"archive"`
	Notify   Notify   `toml:"notify"`
	Mode     string   `toml:"mode"`
	LogLevel string   `toml:"log_level"`
}

// Exchange holds the exchange endpoint and API credentials. The secret may
// be given in the clear, or as an encrypted key file plus password.
type Exchange struct {
	BaseURL             string   `toml:"base_url"`
	APIKey              string   `toml:"api_key"`
	APISecret           string   `toml:"api_secret"`
	EncryptedSecretPath string   `toml:"encrypted_secret_path"`
	SecretPassword      string   `toml:"secret_password"`
	RecvWindow          int      `toml:"recv_window"` // milliseconds
	RateLimit           int      `toml:"rate_limit"`  // requests per window
	RateWindow          duration `toml:"rate_window"`
}

// Scanner holds route discovery and evaluation parameters.
type Scanner struct {
	// Anchors are the assets every route starts and ends in.
	Anchors []string `toml:"anchors"`
	// CommissionRate is the flat per-leg taker fee, e.g. 0.001 for 0.1%.
	CommissionRate float64 `toml:"commission_rate"`
	// ScanNotional is the fixed quote notional legs are priced at when
	// checking profitability.
	ScanNotional     float64  `toml:"scan_notional"`
	MinProfitPercent float64  `toml:"min_profit_percent"`
	MaxProfitPercent float64  `toml:"max_profit_percent"`
	MinLiquidity     float64  `toml:"min_liquidity"`
	MaxLiquidity     float64  `toml:"max_liquidity"`
	MinTradeVolume   float64  `toml:"min_trade_volume"`
	MaxTradeVolume   float64  `toml:"max_trade_volume"`
	SizingRatio      float64  `toml:"sizing_ratio"`
	HoldTime         duration `toml:"hold_time"`
	Interval         duration `toml:"interval"`
	MaxConcurrency   int      `toml:"max_concurrency"`
	BookCacheTTL     duration `toml:"book_cache_ttl"`
}

// Trader holds execution pipeline parameters.
type Trader struct {
	SafetyFactor float64  `toml:"safety_factor"`
	FillTimeout  duration `toml:"fill_timeout"`
	PollInterval duration `toml:"poll_interval"`
}

// Postgres holds PostgreSQL connection parameters.
type Postgres struct {
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

// Redis holds Redis connection parameters.
type Redis struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3 holds S3-compatible object storage parameters.
type S3 struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// Archive holds history archival parameters. Archival needs both Postgres
// and S3 enabled.
type Archive struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// Notify holds notification channel credentials.
type Notify struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so the TOML decoder accepts strings like
// "5s" or "10m".
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
		Exchange: Exchange{
			BaseURL:    "https://api.bybit.com",
			RecvWindow: 5000,
			RateLimit:  10,
			RateWindow: duration{time.Second},
		},
		Scanner: Scanner{
			Anchors:          []string{"USDT"},
			CommissionRate:   0.001,
			ScanNotional:     100,
			MinProfitPercent: 0.1,
			MaxProfitPercent: 3.0,
			MinLiquidity:     10,
			MaxLiquidity:     1000,
			MinTradeVolume:   10,
			MaxTradeVolume:   100,
			SizingRatio:      0.9,
			HoldTime:         duration{5 * time.Second},
			Interval:         duration{10 * time.Second},
			MaxConcurrency:   10,
			BookCacheTTL:     duration{5 * time.Second},
		},
		Trader: Trader{
			SafetyFactor: 0.98,
			FillTimeout:  duration{10 * time.Second},
			PollInterval: duration{500 * time.Millisecond},
		},
		Postgres: Postgres{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "triarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: Redis{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "triarb-data",
			ForcePathStyle: true,
		},
		Archive: Archive{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Notify: Notify{
			Events: []string{"opportunity", "trade_result", "error"},
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":  true,
	"trade": true,
	"full":  true,
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
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, trade, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Exchange
	if c.Exchange.BaseURL == "" {
		errs = append(errs, "exchange: base_url must not be empty")
	}
	needsKeys := c.Mode == "trade" || c.Mode == "full"
	if needsKeys {
		if c.Exchange.APIKey == "" {
			errs = append(errs, "exchange: api_key is required for mode "+c.Mode)
		}
		if c.Exchange.APISecret == "" && c.Exchange.EncryptedSecretPath == "" {
			errs = append(errs, "exchange: either api_secret or encrypted_secret_path must be set for mode "+c.Mode)
		}
		if c.Exchange.EncryptedSecretPath != "" && c.Exchange.SecretPassword == "" {
			errs = append(errs, "exchange: secret_password is required when encrypted_secret_path is set")
		}
	}
	if c.Exchange.RateLimit < 1 {
		errs = append(errs, "exchange: rate_limit must be >= 1")
	}
	if c.Exchange.RateWindow.Duration <= 0 {
		errs = append(errs, "exchange: rate_window must be positive")
	}

	// Scanner
	if len(c.Scanner.Anchors) == 0 {
		errs = append(errs, "scanner: at least one anchor asset is required")
	}
	if c.Scanner.CommissionRate < 0 || c.Scanner.CommissionRate >= 1 {
		errs = append(errs, fmt.Sprintf("scanner: commission_rate must be in [0, 1), got %g", c.Scanner.CommissionRate))
	}
	if c.Scanner.ScanNotional <= 0 {
		errs = append(errs, "scanner: scan_notional must be > 0")
	}
	if c.Scanner.MinProfitPercent >= c.Scanner.MaxProfitPercent {
		errs = append(errs, "scanner: min_profit_percent must be below max_profit_percent")
	}
	if c.Scanner.MinLiquidity >= c.Scanner.MaxLiquidity {
		errs = append(errs, "scanner: min_liquidity must be below max_liquidity")
	}
	if c.Scanner.MinTradeVolume <= 0 || c.Scanner.MinTradeVolume > c.Scanner.MaxTradeVolume {
		errs = append(errs, "scanner: trade volume bounds must satisfy 0 < min <= max")
	}
	if c.Scanner.SizingRatio <= 0 || c.Scanner.SizingRatio > 1 {
		errs = append(errs, fmt.Sprintf("scanner: sizing_ratio must be in (0, 1], got %g", c.Scanner.SizingRatio))
	}
	if c.Scanner.HoldTime.Duration <= 0 {
		errs = append(errs, "scanner: hold_time must be positive")
	}
	if c.Scanner.Interval.Duration <= 0 {
		errs = append(errs, "scanner: interval must be positive")
	}
	if c.Scanner.MaxConcurrency < 1 {
		errs = append(errs, "scanner: max_concurrency must be >= 1")
	}

	// Trader
	if c.Trader.SafetyFactor <= 0 || c.Trader.SafetyFactor > 1 {
		errs = append(errs, fmt.Sprintf("trader: safety_factor must be in (0, 1], got %g", c.Trader.SafetyFactor))
	}
	if c.Trader.FillTimeout.Duration <= 0 {
		errs = append(errs, "trader: fill_timeout must be positive")
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
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
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

	// Archive
	if c.Archive.Enabled {
		if !c.Postgres.Enabled || !c.S3.Enabled {
			errs = append(errs, "archive: requires postgres and s3 to be enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be positive")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
