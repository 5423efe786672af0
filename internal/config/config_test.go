package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "https://data.sec.gov/submissions", cfg.EDGAR.SubmissionsBaseURL)
	assert.Equal(t, "https://www.sec.gov/Archives/edgar/data", cfg.EDGAR.ArchivesBaseURL)
	assert.Equal(t, 2*time.Second, cfg.EDGAR.RequestDelay())
	assert.Equal(t, 30*time.Second, cfg.EDGAR.Timeout())
	assert.Equal(t, 3, cfg.EDGAR.MaxRetries)
	assert.Equal(t, 2, cfg.Ingest.Concurrency)
	assert.Equal(t, 8, cfg.Ingest.MaxQuarters)
	assert.InDelta(t, 50.0, cfg.Ingest.PlausibilityFactor, 0.001)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "data/holdings", cfg.Store.SnapshotDir)
	assert.Equal(t, 30*time.Minute, cfg.Analysis.CacheTTL())
	assert.Equal(t, 2, cfg.Analysis.MinInvestors)
	assert.Equal(t, int64(100_000_000), cfg.Analysis.MinValueDelta)
	assert.Equal(t, int64(1_000_000_000), cfg.Analysis.MajorMoveThreshold)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 168, cfg.Monitoring.LookbackWindowHours)
	assert.InDelta(t, 0.25, cfg.Monitoring.FailureRateThreshold, 1e-9)
	assert.Empty(t, cfg.Monitoring.WebhookURL)
	assert.Equal(t, 24, cfg.Monitoring.RepeatAfterHours)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
edgar:
  user_agent: "Acme Research ops@acme.test"
  request_delay_ms: 500
store:
  driver: postgres
  database_url: postgres://localhost/holdings
log:
  level: debug
  format: console
ingest:
  concurrency: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Acme Research ops@acme.test", cfg.EDGAR.UserAgent)
	assert.Equal(t, 500*time.Millisecond, cfg.EDGAR.RequestDelay())
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Ingest.Concurrency)
	// Defaults still apply for unset values
	assert.Equal(t, 2, cfg.Ingest.QuarterConcurrency)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))
	t.Setenv("HOLDINGS_LOG_LEVEL", "warn")
	t.Setenv("HOLDINGS_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadRejectsUserAgentWithoutContact(t *testing.T) {
	chdirTemp(t)
	t.Setenv("HOLDINGS_EDGAR_USER_AGENT", "anonymous-bot")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contact email")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			EDGAR:  EDGARConfig{UserAgent: "a a@b.c"},
			Ingest: IngestConfig{Concurrency: 1, QuarterConcurrency: 1, PlausibilityFactor: 10},
			Store:  StoreConfig{Driver: "sqlite"},
		}
	}
	require.NoError(t, base().Validate())

	cfg := base()
	cfg.Ingest.Concurrency = 0
	assert.ErrorContains(t, cfg.Validate(), "ingest.concurrency")

	cfg = base()
	cfg.Ingest.PlausibilityFactor = 0.5
	assert.ErrorContains(t, cfg.Validate(), "plausibility_factor")

	cfg = base()
	cfg.Store.Driver = "mysql"
	assert.ErrorContains(t, cfg.Validate(), "store.driver")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
