// Package identity tracks the currently connected wallet address and
// broadcasts changes to registered observers. It replaces the original
// dashboard's ambient window events with an explicit, injected subscription
// interface. The address is used purely as a stable key for statistics; no
// keys are held and nothing is ever signed.
package identity

import (
	"log/slog"
	"sync"

	"github.com/kryptoscreener/upordown/internal/domain"
)

// Source is the canonical holder of the current identity.
type Source struct {
	logger *slog.Logger

	mu        sync.Mutex
	current   domain.Identity
	observers map[int]domain.IdentityObserver
	nextID    int
}

// NewSource creates a Source starting in the anonymous (disconnected) state.
func NewSource(logger *slog.Logger) *Source {
	return &Source{
		logger:    logger.With(slog.String("component", "identity")),
		observers: make(map[int]domain.IdentityObserver),
	}
}

// Current implements domain.IdentitySource.
func (s *Source) Current() domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Watch registers an observer and returns a cancel function. Observers are
// notified synchronously, in registration order, after each change.
func (s *Source) Watch(obs domain.IdentityObserver) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = obs
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Connect validates the wallet address and makes it the current identity.
// Connecting the already-current address is a no-op.
func (s *Source) Connect(addr string) (domain.Identity, error) {
	id, err := domain.NewIdentity(addr)
	if err != nil {
		return domain.Anonymous, err
	}
	if id.IsAnonymous() {
		return domain.Anonymous, domain.ErrInvalidIdentity
	}
	s.set(id)
	return id, nil
}

// Disconnect clears the current identity back to anonymous.
func (s *Source) Disconnect() {
	s.set(domain.Anonymous)
}

func (s *Source) set(id domain.Identity) {
	s.mu.Lock()
	old := s.current
	if old == id {
		s.mu.Unlock()
		return
	}
	s.current = id
	observers := make([]domain.IdentityObserver, 0, len(s.observers))
	for _, obs := range s.observers {
		observers = append(observers, obs)
	}
	s.mu.Unlock()

	s.logger.Info("identity changed",
		slog.String("from", string(old)),
		slog.String("to", string(id)),
	)
	for _, obs := range observers {
		obs.IdentityChanged(old, id)
	}
}

// Compile-time interface check.
var _ domain.IdentitySource = (*Source)(nil)
