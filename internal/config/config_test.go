package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValid(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestDefaultsValues(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "scan", cfg.Mode)
	assert.Equal(t, "https://api.bybit.com", cfg.Exchange.BaseURL)
	assert.Equal(t, []string{"USDT"}, cfg.Scanner.Anchors)
	assert.Equal(t, 0.001, cfg.Scanner.CommissionRate)
	assert.Equal(t, 5*time.Second, cfg.Scanner.HoldTime.Duration)
	assert.Equal(t, 10*time.Second, cfg.Scanner.Interval.Duration)
	assert.Equal(t, 0.98, cfg.Trader.SafetyFactor)
	assert.False(t, cfg.Postgres.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.S3.Enabled)
}

func TestValidateTradeModeRequiresKeys(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key is required")
	assert.Contains(t, err.Error(), "api_secret or encrypted_secret_path")
}

func TestValidateEncryptedSecretNeedsPassword(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Exchange.APIKey = "key"
	cfg.Exchange.EncryptedSecretPath = "/etc/triarb/secret.enc"

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret_password is required")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.Scanner.Anchors = nil
	cfg.Scanner.ScanNotional = -1

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "anchor")
	assert.Contains(t, err.Error(), "scan_notional")
}

func TestValidateArchiveRequiresStores(t *testing.T) {
	cfg := Defaults()
	cfg.Archive.Enabled = true

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires postgres and s3")
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfigFile(t, `
mode = "full"
log_level = "debug"

[scanner]
anchors = ["USDT", "USDC"]
min_profit_percent = 0.2
hold_time = "7s"
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, []string{"USDT", "USDC"}, cfg.Scanner.Anchors)
	assert.Equal(t, 0.2, cfg.Scanner.MinProfitPercent)
	assert.Equal(t, 7*time.Second, cfg.Scanner.HoldTime.Duration)
	// Untouched fields keep their defaults.
	assert.Equal(t, 3.0, cfg.Scanner.MaxProfitPercent)
	assert.Equal(t, 0.98, cfg.Trader.SafetyFactor)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
[exchange]
api_key = "from-file"
`)
	t.Setenv("TRIARB_EXCHANGE_API_KEY", "from-env")
	t.Setenv("TRIARB_SCANNER_ANCHORS", "USDT, BTC")
	t.Setenv("TRIARB_SCANNER_INTERVAL", "30s")
	t.Setenv("TRIARB_POSTGRES_ENABLED", "true")
	t.Setenv("TRIARB_SCANNER_MAX_CONCURRENCY", "4")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Exchange.APIKey)
	assert.Equal(t, []string{"USDT", "BTC"}, cfg.Scanner.Anchors)
	assert.Equal(t, 30*time.Second, cfg.Scanner.Interval.Duration)
	assert.True(t, cfg.Postgres.Enabled)
	assert.Equal(t, 4, cfg.Scanner.MaxConcurrency)
}

func TestLoadEnvIgnoresMalformedValues(t *testing.T) {
	path := writeConfigFile(t, "")
	t.Setenv("TRIARB_SCANNER_INTERVAL", "not-a-duration")
	t.Setenv("TRIARB_SCANNER_MAX_CONCURRENCY", "not-a-number")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Scanner.Interval.Duration)
	assert.Equal(t, 10, cfg.Scanner.MaxConcurrency)
}

func TestDurationRoundTrip(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(out))
}
