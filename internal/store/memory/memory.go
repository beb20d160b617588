// Package memory provides in-process implementations of the session store and
// event bus. They back the server when Redis is disabled and the engine tests.
package memory

import (
	"context"
	"sync"

	"github.com/kryptoscreener/upordown/internal/domain"
)

type record struct {
	snap    domain.SessionSnapshot
	hasSnap bool
	stats   domain.Statistics
}

// SessionStore keeps per-identity records in a map guarded by a mutex.
type SessionStore struct {
	mu      sync.Mutex
	records map[domain.Identity]*record
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{records: make(map[domain.Identity]*record)}
}

func (s *SessionStore) rec(id domain.Identity) *record {
	r, ok := s.records[id]
	if !ok {
		r = &record{}
		s.records[id] = r
	}
	return r
}

// SaveSession stores the in-flight snapshot for the identity.
func (s *SessionStore) SaveSession(_ context.Context, id domain.Identity, snap domain.SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rec(id)
	r.snap = snap
	r.hasSnap = true
	return nil
}

// LoadSession returns the snapshot or domain.ErrNotFound.
func (s *SessionStore) LoadSession(_ context.Context, id domain.Identity) (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || !r.hasSnap {
		return domain.SessionSnapshot{}, domain.ErrNotFound
	}
	return r.snap, nil
}

// ClearSession removes the snapshot. Clearing an absent snapshot is a no-op.
func (s *SessionStore) ClearSession(_ context.Context, id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		r.snap = domain.SessionSnapshot{}
		r.hasSnap = false
	}
	return nil
}

// SaveStats stores the identity's counters.
func (s *SessionStore) SaveStats(_ context.Context, id domain.Identity, stats domain.Statistics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec(id).stats = stats
	return nil
}

// LoadStats returns the counters, zero-valued for unknown identities.
func (s *SessionStore) LoadStats(_ context.Context, id domain.Identity) (domain.Statistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		return r.stats, nil
	}
	return domain.Statistics{}, nil
}

var _ domain.SessionStore = (*SessionStore)(nil)

// EventBus is an in-process fan-out bus with the same semantics as the Redis
// pub/sub implementation: subscribers only see events published after they
// subscribe, and slow subscribers drop rather than block publishers.
type EventBus struct {
	mu   sync.Mutex
	subs map[string]map[int]chan []byte
	next int
}

// NewEventBus creates an empty EventBus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[string]map[int]chan []byte)}
}

// Publish delivers the payload to every current subscriber of the channel.
func (b *EventBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe returns a payload channel closed when ctx is cancelled.
func (b *EventBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 64)

	b.mu.Lock()
	id := b.next
	b.next++
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int]chan []byte)
	}
	b.subs[channel][id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[channel], id)
		b.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

var _ domain.EventBus = (*EventBus)(nil)
