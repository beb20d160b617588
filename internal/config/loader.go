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
// built-in defaults, applies UPORDOWN_* environment variable overrides, and
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

// applyEnvOverrides reads well-known UPORDOWN_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Feed ──
	setStr(&cfg.Feed.WsHost, "UPORDOWN_FEED_WS_HOST")
	setDuration(&cfg.Feed.HandshakeTimeout, "UPORDOWN_FEED_HANDSHAKE_TIMEOUT")
	setDuration(&cfg.Feed.ReconnectBase, "UPORDOWN_FEED_RECONNECT_BASE")
	setDuration(&cfg.Feed.ReconnectCap, "UPORDOWN_FEED_RECONNECT_CAP")

	// ── Game ──
	setIntSlice(&cfg.Game.Durations, "UPORDOWN_GAME_DURATIONS")
	setDuration(&cfg.Game.SettleRetry, "UPORDOWN_GAME_SETTLE_RETRY")
	setDuration(&cfg.Game.SettlePollInterval, "UPORDOWN_GAME_SETTLE_POLL_INTERVAL")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "UPORDOWN_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "UPORDOWN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "UPORDOWN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "UPORDOWN_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "UPORDOWN_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "UPORDOWN_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "UPORDOWN_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "UPORDOWN_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "UPORDOWN_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "UPORDOWN_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "UPORDOWN_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "UPORDOWN_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "UPORDOWN_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "UPORDOWN_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "UPORDOWN_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "UPORDOWN_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "UPORDOWN_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "UPORDOWN_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "UPORDOWN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "UPORDOWN_S3_REGION")
	setStr(&cfg.S3.Bucket, "UPORDOWN_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "UPORDOWN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "UPORDOWN_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "UPORDOWN_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "UPORDOWN_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "UPORDOWN_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "UPORDOWN_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "UPORDOWN_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.BatchSize, "UPORDOWN_ARCHIVE_BATCH_SIZE")

	// ── Server ──
	setInt(&cfg.Server.Port, "UPORDOWN_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "UPORDOWN_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "UPORDOWN_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "UPORDOWN_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "UPORDOWN_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "UPORDOWN_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "UPORDOWN_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "UPORDOWN_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "UPORDOWN_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "UPORDOWN_LOG_LEVEL")
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
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

func setIntSlice(dst *[]int, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]int, 0, len(parts))
		for _, p := range parts {
			if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
				cleaned = append(cleaned, n)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
