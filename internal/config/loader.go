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
// built-in defaults, applies TRIARB_* environment variable overrides, and
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

// applyEnvOverrides reads well-known TRIARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Exchange ──
	setStr(&cfg.Exchange.BaseURL, "TRIARB_EXCHANGE_BASE_URL")
	setStr(&cfg.Exchange.APIKey, "TRIARB_EXCHANGE_API_KEY")
	setStr(&cfg.Exchange.APISecret, "TRIARB_EXCHANGE_API_SECRET")
	setStr(&cfg.Exchange.EncryptedSecretPath, "TRIARB_EXCHANGE_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Exchange.SecretPassword, "TRIARB_EXCHANGE_SECRET_PASSWORD")
	setInt(&cfg.Exchange.RecvWindow, "TRIARB_EXCHANGE_RECV_WINDOW")
	setInt(&cfg.Exchange.RateLimit, "TRIARB_EXCHANGE_RATE_LIMIT")
	setDuration(&cfg.Exchange.RateWindow, "TRIARB_EXCHANGE_RATE_WINDOW")

	// ── Scanner ──
	setStringSlice(&cfg.Scanner.Anchors, "TRIARB_SCANNER_ANCHORS")
	setFloat64(&cfg.Scanner.CommissionRate, "TRIARB_SCANNER_COMMISSION_RATE")
	setFloat64(&cfg.Scanner.ScanNotional, "TRIARB_SCANNER_SCAN_NOTIONAL")
	setFloat64(&cfg.Scanner.MinProfitPercent, "TRIARB_SCANNER_MIN_PROFIT_PERCENT")
	setFloat64(&cfg.Scanner.MaxProfitPercent, "TRIARB_SCANNER_MAX_PROFIT_PERCENT")
	setFloat64(&cfg.Scanner.MinLiquidity, "TRIARB_SCANNER_MIN_LIQUIDITY")
	setFloat64(&cfg.Scanner.MaxLiquidity, "TRIARB_SCANNER_MAX_LIQUIDITY")
	setFloat64(&cfg.Scanner.MinTradeVolume, "TRIARB_SCANNER_MIN_TRADE_VOLUME")
	setFloat64(&cfg.Scanner.MaxTradeVolume, "TRIARB_SCANNER_MAX_TRADE_VOLUME")
	setFloat64(&cfg.Scanner.SizingRatio, "TRIARB_SCANNER_SIZING_RATIO")
	setDuration(&cfg.Scanner.HoldTime, "TRIARB_SCANNER_HOLD_TIME")
	setDuration(&cfg.Scanner.Interval, "TRIARB_SCANNER_INTERVAL")
	setInt(&cfg.Scanner.MaxConcurrency, "TRIARB_SCANNER_MAX_CONCURRENCY")
	setDuration(&cfg.Scanner.BookCacheTTL, "TRIARB_SCANNER_BOOK_CACHE_TTL")

	// ── Trader ──
	setFloat64(&cfg.Trader.SafetyFactor, "TRIARB_TRADER_SAFETY_FACTOR")
	setDuration(&cfg.Trader.FillTimeout, "TRIARB_TRADER_FILL_TIMEOUT")
	setDuration(&cfg.Trader.PollInterval, "TRIARB_TRADER_POLL_INTERVAL")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "TRIARB_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "TRIARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TRIARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TRIARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TRIARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TRIARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TRIARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TRIARB_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TRIARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TRIARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TRIARB_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TRIARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TRIARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRIARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRIARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TRIARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TRIARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TRIARB_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TRIARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TRIARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TRIARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "TRIARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TRIARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TRIARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TRIARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TRIARB_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "TRIARB_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "TRIARB_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "TRIARB_ARCHIVE_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TRIARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TRIARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TRIARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TRIARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "TRIARB_MODE")
	setStr(&cfg.LogLevel, "TRIARB_LOG_LEVEL")
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
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
