// Package game implements the prediction session state machine: pending
// selection, active countdown, resolution, and reset, with persisted
// resumable state and per-identity win/loss statistics.
package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kryptoscreener/upordown/internal/domain"
)

// Config holds the engine's game-rule parameters.
type Config struct {
	// Durations lists the allowed prediction windows in seconds.
	Durations []int
	// SettleRetry bounds how long Resolve polls the feed for a settlement
	// sample before abandoning the session.
	SettleRetry time.Duration
	// SettlePoll is the poll period inside the settle retry window.
	SettlePoll time.Duration
	// WatchInterval is the deadline-watch tick period. Defaults to 1s.
	WatchInterval time.Duration
}

func (c *Config) applyDefaults() {
	if len(c.Durations) == 0 {
		c.Durations = []int{60, 300, 900, 1800, 3600}
	}
	if c.SettleRetry < 0 {
		c.SettleRetry = 0
	}
	if c.SettlePoll <= 0 {
		c.SettlePoll = 500 * time.Millisecond
	}
	if c.WatchInterval <= 0 {
		c.WatchInterval = time.Second
	}
}

func (c Config) durationAllowed(seconds int) bool {
	for _, d := range c.Durations {
		if d == seconds {
			return true
		}
	}
	return false
}

// Engine is the per-process game coordinator. It owns the single session of
// the currently attached identity and serializes every transition under one
// mutex, so no two transitions ever interleave — the Go rendition of the
// original's single-threaded event model. A price sample arriving after
// resolution can therefore never change a resolved outcome.
type Engine struct {
	cfg     Config
	prices  domain.PriceSource
	store   domain.SessionStore
	history domain.HistoryStore
	bus     domain.EventBus
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	identity domain.Identity
	session  *domain.Session
	stats    domain.Statistics
	watch    *deadlineWatch
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithHistory attaches a resolved-session ledger.
func WithHistory(h domain.HistoryStore) Option {
	return func(e *Engine) { e.history = h }
}

// WithBus attaches an event bus for state-change notifications.
func WithBus(b domain.EventBus) Option {
	return func(e *Engine) { e.bus = b }
}

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine in the Idle state for the anonymous identity.
func NewEngine(cfg Config, prices domain.PriceSource, store domain.SessionStore, logger *slog.Logger, opts ...Option) *Engine {
	cfg.applyDefaults()
	e := &Engine{
		cfg:    cfg,
		prices: prices,
		store:  store,
		logger: logger.With(slog.String("component", "game")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Close stops any armed deadline watch. The in-flight snapshot stays
// persisted so the session resumes on the next start.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopWatchLocked()
}

// State returns a copy of the current session (zero-valued and state Idle
// when none exists) together with the current statistics.
func (e *Engine) State() (domain.Session, domain.Statistics) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return domain.Session{Identity: e.identity, State: domain.StateIdle}, e.stats
	}
	return *e.session, e.stats
}

// Stats returns the current identity's statistics.
func (e *Engine) Stats() domain.Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Identity returns the currently attached identity.
func (e *Engine) Identity() domain.Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.identity
}

// IdentityChanged implements domain.IdentityObserver. Switching away from an
// identity forfeits its in-memory session without touching its persisted
// snapshot, so a brief disconnect does not lose the bet; the snapshot is
// resumed when that identity attaches again. The new identity's statistics
// and any in-flight session are then loaded, so records never mix between
// identities.
func (e *Engine) IdentityChanged(old, new domain.Identity) {
	ctx := context.Background()

	e.mu.Lock()
	if e.identity == new {
		e.mu.Unlock()
		return
	}
	e.stopWatchLocked()
	e.session = nil
	e.identity = new
	e.stats = domain.Statistics{}
	e.mu.Unlock()

	e.loadIdentity(ctx, new)
}

// loadIdentity restores stats and resumes a persisted in-flight session for
// the given identity. Store failures are absorbed: a failed read behaves
// like an absent record.
func (e *Engine) loadIdentity(ctx context.Context, id domain.Identity) {
	if id.IsAnonymous() {
		return
	}

	stats, err := e.store.LoadStats(ctx, id)
	if err != nil {
		e.logger.Warn("load stats failed, starting from zero",
			slog.String("identity", string(id)),
			slog.String("error", err.Error()),
		)
		stats = domain.Statistics{}
	}

	e.mu.Lock()
	if e.identity == id {
		e.stats = stats
	}
	e.mu.Unlock()

	e.resume(ctx, id)
}

// resume reconstructs an Active session from a persisted snapshot. A
// snapshot whose deadline already passed is settled immediately against
// whatever live price is available.
func (e *Engine) resume(ctx context.Context, id domain.Identity) {
	snap, err := e.store.LoadSession(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			e.logger.Warn("load session snapshot failed, treating as absent",
				slog.String("identity", string(id)),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	now := e.now()
	session := domain.Session{
		ID:         snap.ID,
		Identity:   id,
		Symbol:     snap.Symbol,
		Direction:  snap.Direction,
		EntryPrice: snap.EntryPrice,
		StartedAt:  snap.StartedAt,
		Duration:   snap.EndsAt.Sub(snap.StartedAt),
		EndsAt:     snap.EndsAt,
		State:      domain.StateActive,
	}

	e.mu.Lock()
	if e.identity != id || e.session != nil {
		e.mu.Unlock()
		return
	}
	e.session = &session
	expired := session.Expired(now)
	if !expired {
		e.armWatchLocked()
	}
	e.mu.Unlock()

	e.logger.Info("resumed in-flight session",
		slog.String("id", session.ID),
		slog.String("symbol", string(session.Symbol)),
		slog.Duration("remaining", session.Remaining(now)),
	)

	if expired {
		// The real deadline passed while the client was away.
		if _, err := e.Resolve(ctx); err != nil {
			e.logger.Warn("resume settlement failed", slog.String("error", err.Error()))
		}
	}
}

// Start commits a prediction: it snapshots the feed's current price as the
// entry price, computes the absolute deadline, persists a recoverable
// snapshot, and arms the deadline watch. It fails with ErrNoLivePrice when
// the feed has no sample yet, and with ErrInvalidTransition when a session
// is Active or a resolved result has not been acknowledged.
func (e *Engine) Start(ctx context.Context, symbol string, direction string, durationSeconds int) (domain.Session, error) {
	info, err := domain.LookupSymbol(symbol)
	if err != nil {
		return domain.Session{}, err
	}
	dir, ok := domain.ParseDirection(direction)
	if !ok {
		return domain.Session{}, fmt.Errorf("game: direction %q: %w", direction, domain.ErrInvalidArgument)
	}
	if !e.cfg.durationAllowed(durationSeconds) {
		return domain.Session{}, fmt.Errorf("game: duration %ds not offered: %w", durationSeconds, domain.ErrInvalidArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		// Starting over an unacknowledged result would silently discard it.
		return domain.Session{}, fmt.Errorf("game: session is %s: %w", e.session.State, domain.ErrInvalidTransition)
	}

	sample, ok := e.prices.Latest(info.Symbol)
	if !ok {
		return domain.Session{}, domain.ErrNoLivePrice
	}

	now := e.now()
	session := domain.Session{
		ID:         uuid.NewString(),
		Identity:   e.identity,
		Symbol:     info.Symbol,
		Direction:  dir,
		EntryPrice: sample.Price,
		StartedAt:  now,
		Duration:   time.Duration(durationSeconds) * time.Second,
		EndsAt:     now.Add(time.Duration(durationSeconds) * time.Second),
		State:      domain.StateActive,
	}
	e.session = &session

	e.persistSnapshotLocked(ctx, session)
	e.armWatchLocked()

	e.logger.Info("session started",
		slog.String("id", session.ID),
		slog.String("symbol", string(session.Symbol)),
		slog.String("direction", string(session.Direction)),
		slog.String("entry_price", session.EntryPrice.String()),
		slog.Int("duration_s", durationSeconds),
	)
	e.publish(ctx, domain.ChannelSessions, domain.GameEvent{
		Type:     domain.EventSessionStarted,
		Identity: session.Identity,
		At:       now,
		Session:  &session,
	})

	return session, nil
}

// Resolve settles the Active session against the feed's latest sample. It is
// a no-op when the session is already Resolved, and an error when Idle. When
// no sample is available it polls the feed for up to SettleRetry, then
// abandons the session with ErrSettlementUnavailable rather than fabricating
// a price.
func (e *Engine) Resolve(ctx context.Context) (domain.Session, error) {
	e.mu.Lock()

	if e.session == nil {
		e.mu.Unlock()
		return domain.Session{}, fmt.Errorf("game: resolve while idle: %w", domain.ErrInvalidTransition)
	}
	if e.session.State == domain.StateResolved {
		s := *e.session
		e.mu.Unlock()
		return s, nil
	}

	sessionID := e.session.ID
	symbol := e.session.Symbol
	sample, ok := e.prices.Latest(symbol)
	if !ok {
		// Poll outside the lock so state reads stay responsive, then
		// re-check that the very same session is still awaiting settlement.
		e.mu.Unlock()
		sample, ok = e.awaitSample(ctx, symbol)
		e.mu.Lock()
		if e.session == nil || e.session.ID != sessionID || e.session.State != domain.StateActive {
			s := domain.Session{State: domain.StateIdle}
			if e.session != nil {
				s = *e.session
			}
			e.mu.Unlock()
			return s, nil
		}
		if !ok {
			return e.abandonLocked(ctx)
		}
	}

	now := e.now()
	session := e.session
	session.SettlementPrice = sample.Price
	session.Outcome = domain.Judge(session.Direction, session.EntryPrice, sample.Price)
	session.ResolvedAt = now
	session.State = domain.StateResolved

	// Statistics move exactly once per resolved session and never decrement.
	e.stats = e.stats.Record(session.Outcome)
	stats := e.stats
	resolved := *session
	identity := e.identity

	e.stopWatchLocked()
	e.mu.Unlock()

	e.persistResolution(ctx, identity, resolved, stats)

	e.logger.Info("session resolved",
		slog.String("id", resolved.ID),
		slog.String("outcome", string(resolved.Outcome)),
		slog.String("entry_price", resolved.EntryPrice.String()),
		slog.String("settlement_price", resolved.SettlementPrice.String()),
	)
	e.publish(ctx, domain.ChannelSessions, domain.GameEvent{
		Type:     domain.EventSessionResolved,
		Identity: identity,
		At:       now,
		Session:  &resolved,
	})
	e.publish(ctx, domain.ChannelStats, domain.GameEvent{
		Type:     domain.EventStatsUpdated,
		Identity: identity,
		At:       now,
		Stats:    &stats,
	})

	return resolved, nil
}

// awaitSample polls the feed until a sample appears, the retry window
// closes, or the context is cancelled.
func (e *Engine) awaitSample(ctx context.Context, symbol domain.Symbol) (domain.PriceSample, bool) {
	deadline := e.now().Add(e.cfg.SettleRetry)
	for e.now().Before(deadline) {
		select {
		case <-ctx.Done():
			return domain.PriceSample{}, false
		case <-time.After(e.cfg.SettlePoll):
		}
		if sample, ok := e.prices.Latest(symbol); ok {
			return sample, true
		}
	}
	return domain.PriceSample{}, false
}

// abandonLocked gives up on settling a session whose feed never produced a
// sample: back to Idle, statistics untouched, snapshot cleared. Caller holds
// e.mu; the lock is released before returning.
func (e *Engine) abandonLocked(ctx context.Context) (domain.Session, error) {
	abandoned := *e.session
	identity := e.identity
	e.stopWatchLocked()
	e.session = nil
	e.mu.Unlock()

	e.clearSnapshot(ctx, identity)

	e.logger.Warn("session abandoned, no settlement price",
		slog.String("id", abandoned.ID),
		slog.String("symbol", string(abandoned.Symbol)),
	)
	e.publish(ctx, domain.ChannelSessions, domain.GameEvent{
		Type:     domain.EventSessionReset,
		Identity: identity,
		At:       e.now(),
		Session:  &abandoned,
	})

	return abandoned, domain.ErrSettlementUnavailable
}

// Reset acknowledges a resolved result, or forfeits an Active session,
// returning the machine to Idle. Statistics are unaffected. Idempotent.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return nil
	}
	dropped := *e.session
	forfeited := dropped.State == domain.StateActive
	identity := e.identity
	e.stopWatchLocked()
	e.session = nil
	e.mu.Unlock()

	e.clearSnapshot(ctx, identity)

	if forfeited {
		e.logger.Info("active session forfeited", slog.String("id", dropped.ID))
	}
	e.publish(ctx, domain.ChannelSessions, domain.GameEvent{
		Type:     domain.EventSessionReset,
		Identity: identity,
		At:       e.now(),
		Session:  &dropped,
	})
	return nil
}

// ---------------------------------------------------------------------------
// Persistence helpers. Store failures never crash the machine: a failed
// write is logged and play continues in memory.
// ---------------------------------------------------------------------------

func (e *Engine) persistSnapshotLocked(ctx context.Context, s domain.Session) {
	if e.identity.IsAnonymous() {
		return
	}
	if err := e.store.SaveSession(ctx, e.identity, s.Snapshot()); err != nil {
		e.logger.Warn("persist session snapshot failed",
			slog.String("id", s.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) persistResolution(ctx context.Context, id domain.Identity, s domain.Session, stats domain.Statistics) {
	if !id.IsAnonymous() {
		if err := e.store.SaveStats(ctx, id, stats); err != nil {
			e.logger.Warn("persist stats failed", slog.String("error", err.Error()))
		}
		if err := e.store.ClearSession(ctx, id); err != nil {
			e.logger.Warn("clear session snapshot failed", slog.String("error", err.Error()))
		}
	}
	if e.history != nil {
		if err := e.history.Append(ctx, s); err != nil {
			e.logger.Warn("append session history failed",
				slog.String("id", s.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (e *Engine) clearSnapshot(ctx context.Context, id domain.Identity) {
	if id.IsAnonymous() {
		return
	}
	if err := e.store.ClearSession(ctx, id); err != nil {
		e.logger.Warn("clear session snapshot failed", slog.String("error", err.Error()))
	}
}

func (e *Engine) publish(ctx context.Context, channel string, ev domain.GameEvent) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, channel, payload); err != nil {
		e.logger.Debug("publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

// Compile-time interface check.
var _ domain.IdentityObserver = (*Engine)(nil)
