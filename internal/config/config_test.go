package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Feed.WsHost = ""
	cfg.Game.Durations = nil
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "ws_host")
	assert.Contains(t, err.Error(), "duration")
	assert.Contains(t, err.Error(), "port")
}

func TestValidateDurationRange(t *testing.T) {
	cfg := Defaults()
	cfg.Game.Durations = []int{5}
	assert.Error(t, cfg.Validate())

	cfg.Game.Durations = []int{60}
	assert.NoError(t, cfg.Validate())
}

func TestValidateArchiveRequiresPostgres(t *testing.T) {
	cfg := Defaults()
	cfg.Archive.Enabled = true
	cfg.Postgres.Enabled = false

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires postgres")
}

func TestValidateTelegramPairing(t *testing.T) {
	cfg := Defaults()
	cfg.Notify.TelegramToken = "token-only"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
log_level = "debug"

[game]
durations = [30, 60]
settle_retry = "5s"

[server]
port = 9999
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []int{30, 60}, cfg.Game.Durations)
	assert.Equal(t, 5*time.Second, cfg.Game.SettleRetry.Duration)
	assert.Equal(t, 9999, cfg.Server.Port)

	// Untouched sections keep their defaults.
	assert.Equal(t, "wss://stream.binance.com:9443/ws", cfg.Feed.WsHost)
	assert.True(t, cfg.Redis.Enabled)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("UPORDOWN_SERVER_PORT", "8123")
	t.Setenv("UPORDOWN_REDIS_ENABLED", "false")
	t.Setenv("UPORDOWN_GAME_DURATIONS", "15, 45")
	t.Setenv("UPORDOWN_FEED_RECONNECT_CAP", "45s")
	t.Setenv("UPORDOWN_SERVER_CORS_ORIGINS", "https://game.example.com")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, 8123, cfg.Server.Port)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, []int{15, 45}, cfg.Game.Durations)
	assert.Equal(t, 45*time.Second, cfg.Feed.ReconnectCap.Duration)
	assert.Equal(t, []string{"https://game.example.com"}, cfg.Server.CORSOrigins)
}

func TestEnvOverridesIgnoreMalformedValues(t *testing.T) {
	t.Setenv("UPORDOWN_SERVER_PORT", "not-a-number")
	t.Setenv("UPORDOWN_FEED_RECONNECT_CAP", "soon")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Feed.ReconnectCap.Duration)
}

func TestDurationAllowed(t *testing.T) {
	g := GameConfig{Durations: []int{60, 300}}
	assert.True(t, g.DurationAllowed(60))
	assert.True(t, g.DurationAllowed(300))
	assert.False(t, g.DurationAllowed(61))
	assert.False(t, g.DurationAllowed(0))
}
