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
	t.Chdir(t.TempDir())
	for _, key := range []string{"HTTP_TIMEOUT", "FETCH_RETRIES", "RATE_LIMIT_RPS", "ANOMALY_THRESHOLD", "MAX_ANOMALY_RETRIES", "NATS_SUBJECT", "DATABASE_URL", "FETCH_MODE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 3, cfg.FetchRetries)
	assert.Zero(t, cfg.RateLimitRPS)
	assert.Equal(t, int64(20), cfg.AnomalyThreshold)
	assert.Equal(t, 5, cfg.MaxAnomalyRetries)
	assert.Equal(t, time.Second, cfg.AnomalyBackoff)
	assert.Equal(t, "tchan.messages", cfg.NatsSubject)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, FetchModeHTTP, cfg.FetchMode)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HTTP_TIMEOUT", "1500ms")
	t.Setenv("ANOMALY_BACKOFF", "2")
	t.Setenv("ANOMALY_THRESHOLD", "50")
	t.Setenv("RATE_LIMIT_RPS", "0.5")
	t.Setenv("DATABASE_URL", "file:test.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1500*time.Millisecond, cfg.HTTPTimeout)
	assert.Equal(t, 2*time.Second, cfg.AnomalyBackoff)
	assert.Equal(t, int64(50), cfg.AnomalyThreshold)
	assert.Equal(t, 0.5, cfg.RateLimitRPS)
	assert.Equal(t, "file:test.db", cfg.DatabaseURL)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NATS_SUBJECT=from.dotenv\nFETCH_RETRIES=7\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("FETCH_RETRIES", "1")
	// godotenv only fills unset variables
	os.Unsetenv("NATS_SUBJECT")
	t.Cleanup(func() { os.Unsetenv("NATS_SUBJECT") })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from.dotenv", cfg.NatsSubject)
	assert.Equal(t, 1, cfg.FetchRetries)
}

func TestLoad_RejectsNegativeRetries(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FETCH_RETRIES", "-1")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ZeroAnomalyRetries(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MAX_ANOMALY_RETRIES", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.MaxAnomalyRetries)

	t.Setenv("MAX_ANOMALY_RETRIES", "-2")
	_, err = Load()
	assert.ErrorContains(t, err, "MAX_ANOMALY_RETRIES")
}

func TestLoad_RejectsUnknownFetchMode(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FETCH_MODE", "carrier-pigeon")

	_, err := Load()
	assert.ErrorContains(t, err, "FETCH_MODE")
}

func TestLoadChannelList(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(dir, "channels.yaml")
		require.NoError(t, os.WriteFile(path, []byte("channels:\n  - \"@first\"\n  - https://t.me/second\n"), 0o600))

		channels, err := LoadChannelList(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"@first", "https://t.me/second"}, channels)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(dir, "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("channels: [unclosed\n"), 0o600))

		_, err := LoadChannelList(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadChannelList(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}
