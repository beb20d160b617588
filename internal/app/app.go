// Package app wires the price feed, game engine, stores, notification
// channels and API server together and manages their lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kryptoscreener/upordown/internal/config"
	"github.com/kryptoscreener/upordown/internal/domain"
	"github.com/kryptoscreener/upordown/internal/feed"
	"github.com/kryptoscreener/upordown/internal/game"
	"github.com/kryptoscreener/upordown/internal/identity"
	"github.com/kryptoscreener/upordown/internal/notify"
	"github.com/kryptoscreener/upordown/internal/server"
	"github.com/kryptoscreener/upordown/internal/server/handler"
	"github.com/kryptoscreener/upordown/internal/server/ws"
)

// shutdownGrace bounds how long in-flight HTTP requests may finish after the
// stop signal.
const shutdownGrace = 10 * time.Second

// App is the root application object. It owns the configuration, logger, and
// cleanup functions that run in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the feed, engine, hub and API server,
// and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Int("port", a.cfg.Server.Port),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	// --- Price feed: one stream per supported symbol ---
	prices := feed.New(feed.Config{
		WsHost:           a.cfg.Feed.WsHost,
		HandshakeTimeout: a.cfg.Feed.HandshakeTimeout.Duration,
		ReconnectBase:    a.cfg.Feed.ReconnectBase.Duration,
		ReconnectCap:     a.cfg.Feed.ReconnectCap.Duration,
	}, a.logger)
	a.closers = append(a.closers, prices.Close)

	for _, info := range domain.Symbols() {
		handle, err := prices.Subscribe(info.Symbol)
		if err != nil {
			return fmt.Errorf("app: subscribe %s: %w", info.Symbol, err)
		}
		a.closers = append(a.closers, handle.Close)
	}

	// --- Identity and game engine ---
	ids := identity.NewSource(a.logger)

	engineOpts := []game.Option{game.WithBus(deps.EventBus)}
	if deps.HistoryStore != nil {
		engineOpts = append(engineOpts, game.WithHistory(deps.HistoryStore))
	}
	engine := game.NewEngine(game.Config{
		Durations:   a.cfg.Game.Durations,
		SettleRetry: a.cfg.Game.SettleRetry.Duration,
		SettlePoll:  a.cfg.Game.SettlePollInterval.Duration,
	}, prices, deps.SessionStore, a.logger, engineOpts...)
	a.closers = append(a.closers, engine.Close)

	unwatch := ids.Watch(engine)
	a.closers = append(a.closers, unwatch)

	// --- API server and websocket hub ---
	hub := ws.NewHub(deps.EventBus, a.logger)

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(prices, deps.Checks),
		Symbols: handler.NewSymbolsHandler(a.cfg.Game.Durations),
		Prices:  handler.NewPricesHandler(prices),
		Game:    handler.NewGameHandler(engine),
		Wallet:  handler.NewWalletHandler(ids),
		History: handler.NewHistoryHandler(deps.HistoryStore, ids),
	}
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx)
	})

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(gctx)
		})
	}

	if deps.Notifier != nil {
		listener := notify.NewListener(deps.EventBus, deps.Notifier, a.logger)
		g.Go(func() error {
			return listener.Run(gctx)
		})
	}

	err = g.Wait()
	if err != nil && err != context.Canceled {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

// Close tears down all resources in reverse registration order. Safe to call
// multiple times.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
