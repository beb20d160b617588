package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/kryptoscreener/upordown/internal/blob/s3"
	"github.com/kryptoscreener/upordown/internal/config"
	"github.com/kryptoscreener/upordown/internal/domain"
	"github.com/kryptoscreener/upordown/internal/notify"
	"github.com/kryptoscreener/upordown/internal/store/memory"
	"github.com/kryptoscreener/upordown/internal/store/postgres"
	"github.com/kryptoscreener/upordown/internal/store/redis"
)

// Dependencies bundles the backing services the game needs. It is constructed
// by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	SessionStore domain.SessionStore
	HistoryStore domain.HistoryStore
	EventBus     domain.EventBus
	RateLimiter  domain.RateLimiter

	Archiver *s3blob.Archiver
	Notifier *notify.Notifier

	// Checks maps dependency names to ping functions for the health handler.
	Checks map[string]func(context.Context) error
}

// Wire constructs the concrete store, bus, archive and notification
// implementations from the configuration. Redis and Postgres are optional:
// with Redis disabled the session store and event bus fall back to in-memory
// implementations, and without Postgres there is no history ledger.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Checks: make(map[string]func(context.Context) error),
	}

	// --- Redis: durable session store, event bus, rate limiter ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SessionStore = redis.NewSessionStore(redisClient)
		deps.EventBus = redis.NewEventBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.Checks["redis"] = redisClient.Ping
	} else {
		logger.Warn("redis disabled, sessions and statistics will not survive restarts")
		deps.SessionStore = memory.NewSessionStore()
		deps.EventBus = memory.NewEventBus()
	}

	// --- Postgres: resolved-session history ledger ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.HistoryStore = postgres.NewHistoryStore(pgClient.Pool())
		deps.Checks["postgres"] = pgClient.Pool().Ping
	}

	// --- S3: history archival ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Archiver = s3blob.NewArchiver(
			s3blob.ArchiverConfig{
				Retention: time24h(cfg.Archive.RetentionDays),
				Interval:  cfg.Archive.Interval.Duration,
				BatchSize: cfg.Archive.BatchSize,
			},
			s3blob.NewWriter(s3Client),
			deps.HistoryStore,
			logger,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	return deps, cleanup, nil
}

func time24h(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
