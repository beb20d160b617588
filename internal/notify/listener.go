package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kryptoscreener/upordown/internal/domain"
)

// Listener bridges the game event bus to the Notifier: it subscribes to the
// session channel and turns each event into an operator alert.
type Listener struct {
	bus      domain.EventBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewListener creates a Listener.
func NewListener(bus domain.EventBus, notifier *Notifier, logger *slog.Logger) *Listener {
	return &Listener{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "notify_listener")),
	}
}

// Run consumes session events until ctx is cancelled. Malformed payloads are
// logged and skipped.
func (l *Listener) Run(ctx context.Context) error {
	events, err := l.bus.Subscribe(ctx, domain.ChannelSessions)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", domain.ChannelSessions, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-events:
			if !ok {
				return nil
			}
			var ev domain.GameEvent
			if err := json.Unmarshal(payload, &ev); err != nil {
				l.logger.Warn("malformed event", slog.String("error", err.Error()))
				continue
			}
			l.handle(ctx, ev)
		}
	}
}

func (l *Listener) handle(ctx context.Context, ev domain.GameEvent) {
	if err := l.notifier.Notify(ctx, ev); err != nil {
		l.logger.Warn("notification failed",
			slog.String("event", ev.Type),
			slog.String("error", err.Error()),
		)
	}
}
