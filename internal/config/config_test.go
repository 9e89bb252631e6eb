package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("", "")
	require.NoError(t, err)

	assert.Equal(t, "dev", c.App.Env)
	assert.Equal(t, "karma.db", c.Database.Path)
	assert.Equal(t, ":8080", c.HTTP.Addr)
	assert.Equal(t, ":9090", c.GRPC.Addr)
	assert.True(t, c.Metrics.Enabled)
	assert.Equal(t, 24*time.Hour, c.Redis.TTL)
	assert.False(t, c.Ledger.RejectShortfall)
	assert.Equal(t, 3, c.Ledger.MaxRetries)
	assert.Equal(t, "SYP", c.Workflow.TripCurrency)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "karma.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  env: prod
  log_level: warn
database:
  path: /var/lib/karma/karma.db
redis:
  addr: localhost:6379
  ttl: 1h
ledger:
  reject_shortfall: true
  max_retries: 5
`), 0o644))

	t.Setenv("KARMA_DATABASE_PATH", "/tmp/override.db")

	c, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "prod", c.App.Env)
	assert.Equal(t, "warn", c.App.LogLevel)
	assert.Equal(t, "/tmp/override.db", c.Database.Path)
	assert.Equal(t, "localhost:6379", c.Redis.Addr)
	assert.Equal(t, time.Hour, c.Redis.TTL)
	assert.True(t, c.Ledger.RejectShortfall)
	assert.Equal(t, 5, c.Ledger.MaxRetries)
}

func TestLoad_DotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("KARMA_WORKFLOW_TRIP_CURRENCY=USD\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("KARMA_WORKFLOW_TRIP_CURRENCY") })

	c, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "USD", c.Workflow.TripCurrency)
}

func TestLoad_MissingDotEnvIgnored(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("KARMA_LEDGER_MAX_RETRIES", "0")
	_, err := Load("", "")
	assert.ErrorContains(t, err, "max_retries")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.ErrorContains(t, err, "config: read")
}
