package domain

import (
	"context"
	"time"
)

// SessionStore is durable key-value persistence scoped by identity, for
// exactly two record kinds: the single in-flight session snapshot and the
// statistics counter pair. Loads for an unknown identity return ErrNotFound
// (snapshot) or the zero Statistics (stats). Implementations must keep one
// identity's records invisible to every other identity.
type SessionStore interface {
	SaveSession(ctx context.Context, id Identity, snap SessionSnapshot) error
	LoadSession(ctx context.Context, id Identity) (SessionSnapshot, error)
	ClearSession(ctx context.Context, id Identity) error

	SaveStats(ctx context.Context, id Identity, stats Statistics) error
	LoadStats(ctx context.Context, id Identity) (Statistics, error)
}

// ListOpts provides pagination for history queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// HistoryStore is an append-only ledger of resolved sessions, kept separately
// from the SessionStore snapshot so past results survive acknowledgment.
type HistoryStore interface {
	Append(ctx context.Context, s Session) error
	ListByIdentity(ctx context.Context, id Identity, opts ListOpts) ([]Session, error)
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]Session, error)
	// Delete removes exactly the identified sessions, reporting how many
	// rows went away.
	Delete(ctx context.Context, ids []string) (int64, error)
}

// EventBus carries game state-change notifications from the engine to the
// UI-facing websocket hub.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter provides request rate limiting for the API surface.
type RateLimiter interface {
	// Allow reports whether a request for the key is permitted under the
	// limit for the window, counting the request when it is.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
