package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ranamudassir31/webpulse-ai/internal/config"
	"github.com/ranamudassir31/webpulse-ai/internal/store"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.NewLoader().Load("")
	require.NoError(t, err)

	assert.Equal(t, "webpulse", cfg.App.Name)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, []string{"stdout"}, cfg.Logger.OutputPaths)
	assert.Equal(t, 500*time.Millisecond, cfg.Fetcher.Retry.InitialDelay)
	assert.InDelta(t, 0.25, cfg.Fetcher.Retry.JitterFraction, 1e-9)
	assert.Equal(t, 100, cfg.Jobs.Defaults.MaxPages)
	assert.True(t, cfg.Jobs.Defaults.SameDomainOnly)
	assert.InDelta(t, 0.30, cfg.Jobs.Aggregator.Weights.LinkHealth, 1e-9)
	assert.Equal(t, store.DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 7*24*time.Hour, cfg.Store.Retention)
	assert.Equal(t, "json", cfg.Report.Format)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("WEBPULSE_SERVER_ADDRESS", ":9999")
	t.Setenv("WEBPULSE_FETCHER_WORKER_COUNT", "8")
	t.Setenv("WEBPULSE_FETCHER_RETRY_MAX_DELAY", "5s")
	t.Setenv("WEBPULSE_JOBS_DEFAULTS_SAME_DOMAIN_ONLY", "false")
	t.Setenv("WEBPULSE_LOGGER_OUTPUT_PATHS", "stdout,/tmp/webpulse.log")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("APP_ENV", "development")

	cfg, err := config.NewLoader().Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, 8, cfg.Fetcher.WorkerCount)
	assert.Equal(t, 5*time.Second, cfg.Fetcher.Retry.MaxDelay)
	assert.False(t, cfg.Jobs.Defaults.SameDomainOnly)
	assert.Equal(t, []string{"stdout", "/tmp/webpulse.log"}, cfg.Logger.OutputPaths)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webpulse.yaml")
	yaml := `
server:
  address: ":7070"
store:
  driver: redis
  retention: 48h
  redis:
    addr: "cache:6379"
report:
  format: markdown
jobs:
  max_active_jobs: 3
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	l := config.NewLoader()
	cfg, err := l.Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, l.ConfigFileUsed())
	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, store.DriverRedis, cfg.Store.Driver)
	assert.Equal(t, 48*time.Hour, cfg.Store.Retention)
	assert.Equal(t, "cache:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, "markdown", cfg.Report.Format)
	assert.Equal(t, 3, cfg.Jobs.MaxActiveJobs)
	// Untouched keys keep their defaults.
	assert.Equal(t, 1000, cfg.Jobs.MaxPagesLimit)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.NewLoader().Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoad_ValidationErrors(t *testing.T) {
	t.Setenv("WEBPULSE_REPORT_FORMAT", "pdf")
	_, err := config.NewLoader().Load("")
	require.ErrorIs(t, err, config.ErrConfigInvalid)

	var verr *config.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "report.format", verr.Field)
}

func TestLoad_UnknownStoreDriver(t *testing.T) {
	t.Setenv("WEBPULSE_STORE_DRIVER", "cassandra")
	_, err := config.NewLoader().Load("")
	require.ErrorIs(t, err, config.ErrConfigInvalid)
	require.ErrorIs(t, err, store.ErrUnknownDriver)
}

func TestLoad_FlagBinding(t *testing.T) {
	l := config.NewLoader()
	l.Viper().Set("server.address", ":6060")

	cfg, err := l.Load("")
	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.Server.Address)
}
