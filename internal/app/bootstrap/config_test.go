package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigLayersFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
service:
  http_port: 8181
dependencies:
  postgres_url: postgres://file/db
  kafka_brokers: [" k1:9092 ", ""]
batches:
  open_window: 4h
  settlement_fee_microgons: 0
  settlement_fee_address: ar1fees
  burn_address: ar1burn
`)
	t.Setenv("GRPC_PORT", "9191")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("BURN_PERCENT", "15")
	t.Setenv("BATCH_MONITOR_INTERVAL", "30s")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 8181, cfg.HTTPPort)
	require.Equal(t, 9191, cfg.GRPCPort)
	require.Equal(t, "postgres://file/db", cfg.DatabaseURL)
	require.Equal(t, "redis://cache:6379/1", cfg.RedisURL)
	require.Equal(t, []string{"k1:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 4*time.Hour, cfg.BatchOpenWindow)
	require.Equal(t, int64(0), cfg.SettlementFeeMicrogons)
	require.Equal(t, int64(15), cfg.BurnPercent)
	require.Equal(t, 30*time.Second, cfg.MonitorInterval)
	require.Equal(t, "micronote-batch-events", cfg.KafkaTopic)
}

func TestLoadConfigRequiresDatabaseAndAddresses(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	_, err := LoadConfig(missing)
	require.ErrorContains(t, err, "DB_URL")

	t.Setenv("DB_URL", "postgres://env/db")
	_, err = LoadConfig(missing)
	require.ErrorContains(t, err, "SETTLEMENT_FEE_ADDRESS")

	t.Setenv("SETTLEMENT_FEE_ADDRESS", "ar1fees")
	t.Setenv("BURN_ADDRESS", "ar1burn")
	t.Setenv("BURN_PERCENT", "120")
	_, err = LoadConfig(missing)
	require.ErrorContains(t, err, "BURN_PERCENT")
}

func TestLoadConfigRequiresNotesToCoverSettlementFee(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	t.Setenv("DB_URL", "postgres://env/db")
	t.Setenv("SETTLEMENT_FEE_ADDRESS", "ar1fees")
	t.Setenv("BURN_ADDRESS", "ar1burn")
	t.Setenv("SETTLEMENT_FEE_MICROGONS", "5")
	t.Setenv("MINIMUM_NOTE_MICROGONS", "5")
	_, err := LoadConfig(missing)
	require.ErrorContains(t, err, "MINIMUM_NOTE_MICROGONS")

	t.Setenv("MINIMUM_NOTE_MICROGONS", "6")
	cfg, err := LoadConfig(missing)
	require.NoError(t, err)
	require.Equal(t, int64(6), cfg.MinimumNoteMicrogons)
}

func TestLoadConfigRejectsBadDurations(t *testing.T) {
	path := writeConfig(t, "batches:\n  safety_margin: soon\n")
	_, err := LoadConfig(path)
	require.ErrorContains(t, err, "batches.safety_margin")
}

func TestEnvHelpersFallBack(t *testing.T) {
	t.Setenv("SOME_INT", "x")
	t.Setenv("SOME_BOOL", "maybe")
	t.Setenv("SOME_DURATION", "later")
	require.Equal(t, 3, envInt("SOME_INT", 3))
	require.True(t, envBool("SOME_BOOL", true))
	require.Equal(t, time.Second, envDuration("SOME_DURATION", time.Second))
	t.Setenv("SOME_BOOL", "yes")
	require.True(t, envBool("SOME_BOOL", false))
}
