// Package notify pushes game events to operator channels. Each configured
// sender receives the raw domain event and formats it for its own platform;
// an event-type filter lets operators subscribe to only the outcomes they
// care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kryptoscreener/upordown/internal/domain"
)

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, ev domain.GameEvent) error
	// Name identifies the channel in logs, e.g. "telegram".
	Name() string
}

// Notifier fans a game event out to every registered Sender. Only events
// whose type is in the allowed set are forwarded; an empty set allows all.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify forwards the event to all senders if its type passes the filter.
// A failing sender does not block the rest; failures are collected into one
// combined error.
func (n *Notifier) Notify(ctx context.Context, ev domain.GameEvent) error {
	if len(n.events) > 0 && !n.events[ev.Type] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", ev.Type),
		)
		return nil
	}
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, ev); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", ev.Type),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// headline names the event for an alert title. Empty means the event has no
// operator-facing rendering and senders should skip it.
func headline(ev domain.GameEvent) string {
	if ev.Session == nil {
		return ""
	}
	switch ev.Type {
	case domain.EventSessionStarted:
		return "Prediction started"
	case domain.EventSessionResolved:
		if ev.Session.Outcome == domain.OutcomeWin {
			return "Prediction won"
		}
		return "Prediction lost"
	case domain.EventSessionReset:
		if ev.Session.State == domain.StateActive {
			return "Prediction forfeited"
		}
		return "Prediction reset"
	}
	return ""
}

// describe renders the event's session facts as plain lines; senders wrap
// them in their platform's markup.
func describe(ev domain.GameEvent) []string {
	s := ev.Session
	lines := []string{
		fmt.Sprintf("%s %s @ %s", s.Symbol, s.Direction, s.EntryPrice.String()),
	}
	if ev.Type == domain.EventSessionResolved {
		lines = append(lines, fmt.Sprintf("settled at %s", s.SettlementPrice.String()))
	} else {
		lines = append(lines, fmt.Sprintf("window %s", s.Duration))
	}
	return append(lines, fmt.Sprintf("player %s", playerLabel(s.Identity)))
}

func playerLabel(id domain.Identity) string {
	if id.IsAnonymous() {
		return "anonymous"
	}
	return string(id)
}
