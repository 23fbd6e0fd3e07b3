package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", cfg.Symbol)
	assert.Equal(t, 0.98, cfg.BufferFactor)
	assert.Equal(t, 5, cfg.MaxRequotes)
	assert.Equal(t, 2*time.Second, cfg.RequoteInterval)
	assert.Equal(t, time.Hour, cfg.WindowDuration)
	assert.Equal(t, 30, cfg.RetentionDays)
}

func TestLoadFromEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := "SYMBOL=ETHUSDT\nMAX_LEVERAGE=3\nREQUOTE_INTERVAL=500ms\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0644))
	t.Cleanup(func() {
		os.Unsetenv("SYMBOL")
		os.Unsetenv("MAX_LEVERAGE")
		os.Unsetenv("REQUOTE_INTERVAL")
	})

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "ETHUSDT", cfg.Symbol)
	assert.Equal(t, 3.0, cfg.MaxLeverage)
	assert.Equal(t, 500*time.Millisecond, cfg.RequoteInterval)
}

func TestLoadMissingEnvFileIsNotFatal(t *testing.T) {
	_, err := Load("/nonexistent/.env")
	assert.NoError(t, err)
}

func TestValidateRejectsBadBuffer(t *testing.T) {
	t.Setenv("BUFFER_FACTOR", "1.5")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	t.Setenv("ENTRY_IBS_THRESHOLD", "0")
	_, err := Load("")
	assert.Error(t, err)
}

func TestMalformedNumbersFallBackToDefaults(t *testing.T) {
	t.Setenv("MAX_REQUOTES", "lots")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxRequotes)
}

func TestRequireCredentials(t *testing.T) {
	t.Setenv("BYBIT_API_KEY", "")
	t.Setenv("BYBIT_API_SECRET", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Error(t, cfg.RequireCredentials())

	t.Setenv("BYBIT_API_KEY", "key")
	t.Setenv("BYBIT_API_SECRET", "secret")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.NoError(t, cfg.RequireCredentials())
}
