package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kryptoscreener/upordown/internal/domain"
)

// SessionStore implements domain.SessionStore on Redis. Each identity owns
// exactly two keys — the single in-flight session snapshot and the win/loss
// counters — under one canonical scheme, so switching wallets can never leak
// a previous wallet's in-flight game.
type SessionStore struct {
	rdb *redis.Client
}

// NewSessionStore creates a SessionStore backed by the given Client.
func NewSessionStore(c *Client) *SessionStore {
	return &SessionStore{rdb: c.Underlying()}
}

func sessionKey(id domain.Identity) string {
	return "game:session:" + string(id)
}

func statsKey(id domain.Identity) string {
	return "game:stats:" + string(id)
}

// SaveSession writes the in-flight snapshot for the identity.
func (s *SessionStore) SaveSession(ctx context.Context, id domain.Identity, snap domain.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal session %s: %w: %w", snap.ID, domain.ErrPersistence, err)
	}
	if err := s.rdb.Set(ctx, sessionKey(id), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: save session %s: %w: %w", snap.ID, domain.ErrPersistence, err)
	}
	return nil
}

// LoadSession reads the in-flight snapshot, returning domain.ErrNotFound
// when none exists. A corrupt snapshot is deleted and reported as a
// persistence failure so the caller starts fresh instead of crashing.
func (s *SessionStore) LoadSession(ctx context.Context, id domain.Identity) (domain.SessionSnapshot, error) {
	data, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionSnapshot{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("redis: load session: %w: %w", domain.ErrPersistence, err)
	}

	var snap domain.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		_ = s.rdb.Del(ctx, sessionKey(id)).Err()
		return domain.SessionSnapshot{}, fmt.Errorf("redis: corrupt session snapshot: %w: %w", domain.ErrPersistence, err)
	}
	return snap, nil
}

// ClearSession removes the in-flight snapshot. Clearing an absent snapshot
// is not an error.
func (s *SessionStore) ClearSession(ctx context.Context, id domain.Identity) error {
	if err := s.rdb.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: clear session: %w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// SaveStats writes the identity's win/loss counters.
func (s *SessionStore) SaveStats(ctx context.Context, id domain.Identity, stats domain.Statistics) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("redis: marshal stats: %w: %w", domain.ErrPersistence, err)
	}
	if err := s.rdb.Set(ctx, statsKey(id), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: save stats: %w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// LoadStats reads the identity's counters, defaulting to zero when absent or
// unreadable.
func (s *SessionStore) LoadStats(ctx context.Context, id domain.Identity) (domain.Statistics, error) {
	data, err := s.rdb.Get(ctx, statsKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Statistics{}, nil
	}
	if err != nil {
		return domain.Statistics{}, fmt.Errorf("redis: load stats: %w: %w", domain.ErrPersistence, err)
	}

	var stats domain.Statistics
	if err := json.Unmarshal(data, &stats); err != nil {
		return domain.Statistics{}, fmt.Errorf("redis: corrupt stats: %w: %w", domain.ErrPersistence, err)
	}
	return stats, nil
}

// Compile-time interface check.
var _ domain.SessionStore = (*SessionStore)(nil)
