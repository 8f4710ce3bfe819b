package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRunModes(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t", RunMode: "Polling"}}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)

	cfg = &Config{Telegram: TelegramConfig{Token: "t", RunMode: "webhook"}}
	assert.Error(t, Normalize(cfg), "webhook needs url, listen and port")

	cfg.Webhook = WebhookConfig{URL: "https://example.org/hook", Listen: ":8443", Port: 8443}
	assert.NoError(t, Normalize(cfg))

	cfg = &Config{Telegram: TelegramConfig{Token: "t", RunMode: "carrier-pigeon"}}
	assert.Error(t, Normalize(cfg))
}

func TestNormalizeRateLimitAndMetrics(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: "t"},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{" Callback ", "MESSAGE"}},
	}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, []string{"callback", "message"}, cfg.RateLimit.ExcludeUpdates)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	cfg.RateLimit.ExcludeUpdates = []string{"poll"}
	assert.Error(t, Normalize(cfg))

	cfg = &Config{Telegram: TelegramConfig{Token: "t"}, Metrics: MetricsConfig{Path: "metrics"}}
	assert.Error(t, Normalize(cfg))

	cfg = &Config{Telegram: TelegramConfig{Token: "t"}, Sender: SenderConfig{MaxRetries: -1}}
	assert.Error(t, Normalize(cfg))
}

func TestLoadReadsYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("telegram:\n  token: from-file\nrate_limit:\n  interval_ms: 500\n"), 0o600))
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, 500, cfg.RateLimit.IntervalMS)
}
