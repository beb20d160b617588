package game

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kryptoscreener/upordown/internal/domain"
	"github.com/kryptoscreener/upordown/internal/store/memory"
)

const (
	walletA = "0x1111111111111111111111111111111111111111"
	walletB = "0x2222222222222222222222222222222222222222"
)

// stubPrices is a controllable domain.PriceSource.
type stubPrices struct {
	mu      sync.Mutex
	samples map[domain.Symbol]domain.PriceSample
}

func newStubPrices() *stubPrices {
	return &stubPrices{samples: make(map[domain.Symbol]domain.PriceSample)}
}

func (p *stubPrices) set(symbol domain.Symbol, price string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.samples[symbol] = domain.PriceSample{
		Symbol:     symbol,
		Price:      decimal.RequireFromString(price),
		ObservedAt: time.Now(),
	}
}

func (p *stubPrices) clear(symbol domain.Symbol) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.samples, symbol)
}

func (p *stubPrices) Latest(symbol domain.Symbol) (domain.PriceSample, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.samples[symbol]
	return s, ok
}

func (p *stubPrices) Status(domain.Symbol) domain.FeedStatus {
	return domain.FeedConnected
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	engine *Engine
	prices *stubPrices
	store  *memory.SessionStore
	bus    *memory.EventBus
	clock  *fakeClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	f := &fixture{
		prices: newStubPrices(),
		store:  memory.NewSessionStore(),
		bus:    memory.NewEventBus(),
		clock:  newFakeClock(),
	}
	all := append([]Option{WithClock(f.clock.Now), WithBus(f.bus)}, opts...)
	f.engine = NewEngine(Config{
		Durations:     []int{60, 300},
		SettleRetry:   0,
		SettlePoll:    time.Millisecond,
		WatchInterval: 5 * time.Millisecond,
	}, f.prices, f.store, testLogger(), all...)
	t.Cleanup(f.engine.Close)
	return f
}

func TestStartHappyPath(t *testing.T) {
	f := newFixture(t)
	f.prices.set("BTC", "65000.00")

	session, err := f.engine.Start(context.Background(), "btc", "up", 60)
	require.NoError(t, err)

	assert.NotEmpty(t, session.ID)
	assert.Equal(t, domain.Symbol("BTC"), session.Symbol)
	assert.Equal(t, domain.DirectionUp, session.Direction)
	assert.Equal(t, "65000", session.EntryPrice.String())
	assert.Equal(t, domain.StateActive, session.State)
	assert.Equal(t, f.clock.Now(), session.StartedAt)
	assert.Equal(t, f.clock.Now().Add(time.Minute), session.EndsAt)
	assert.Equal(t, time.Minute, session.Remaining(f.clock.Now()))
}

func TestStartRequiresLivePrice(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Start(context.Background(), "BTC", "up", 60)
	assert.ErrorIs(t, err, domain.ErrNoLivePrice)

	session, _ := f.engine.State()
	assert.Equal(t, domain.StateIdle, session.State)
}

func TestStartValidation(t *testing.T) {
	f := newFixture(t)
	f.prices.set("BTC", "65000.00")

	_, err := f.engine.Start(context.Background(), "DOGE", "up", 60)
	assert.ErrorIs(t, err, domain.ErrUnknownSymbol)

	_, err = f.engine.Start(context.Background(), "BTC", "sideways", 60)
	assert.Error(t, err)

	_, err = f.engine.Start(context.Background(), "BTC", "up", 61)
	assert.Error(t, err)

	// None of the rejects changed state.
	session, _ := f.engine.State()
	assert.Equal(t, domain.StateIdle, session.State)
}

func TestStartRejectsSecondSession(t *testing.T) {
	f := newFixture(t)
	f.prices.set("BTC", "65000.00")
	f.prices.set("ETH", "3000.00")

	_, err := f.engine.Start(context.Background(), "BTC", "up", 60)
	require.NoError(t, err)

	_, err = f.engine.Start(context.Background(), "ETH", "down", 60)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// An unacknowledged result also blocks a new start.
	f.prices.set("BTC", "66000.00")
	_, err = f.engine.Resolve(context.Background())
	require.NoError(t, err)
	_, err = f.engine.Start(context.Background(), "BTC", "up", 60)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestResolveOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		direction  string
		entry      string
		settlement string
		want       domain.Outcome
	}{
		{"up wins on rise", "up", "100.00", "100.50", domain.OutcomeWin},
		{"up loses on fall", "up", "100.00", "99.50", domain.OutcomeLoss},
		{"up loses on tie", "up", "100.00", "100.00", domain.OutcomeLoss},
		{"down wins on fall", "down", "100.00", "99.50", domain.OutcomeWin},
		{"down loses on rise", "down", "100.00", "100.50", domain.OutcomeLoss},
		{"down loses on tie", "down", "100.00", "100.00", domain.OutcomeLoss},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.prices.set("BTC", tt.entry)

			_, err := f.engine.Start(context.Background(), "BTC", tt.direction, 60)
			require.NoError(t, err)

			f.prices.set("BTC", tt.settlement)
			resolved, err := f.engine.Resolve(context.Background())
			require.NoError(t, err)

			assert.Equal(t, domain.StateResolved, resolved.State)
			assert.Equal(t, tt.want, resolved.Outcome)
			assert.Equal(t, tt.settlement, resolved.SettlementPrice.StringFixed(2))
		})
	}
}

func TestResolveIdempotent(t *testing.T) {
	f := newFixture(t)
	f.prices.set("BTC", "100.00")

	_, err := f.engine.Start(context.Background(), "BTC", "up", 60)
	require.NoError(t, err)

	f.prices.set("BTC", "101.00")
	first, err := f.engine.Resolve(context.Background())
	require.NoError(t, err)

	// A later price cannot rewrite the settled outcome.
	f.prices.set("BTC", "50.00")
	second, err := f.engine.Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.SettlementPrice.Equal(second.SettlementPrice))
	assert.Equal(t, first.Outcome, second.Outcome)

	// Counted exactly once.
	stats := f.engine.Stats()
	assert.Equal(t, 1, stats.Played())
}

func TestResolveWhileIdle(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Resolve(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestResolveAbandonsWithoutSettlementPrice(t *testing.T) {
	f := newFixture(t)
	f.prices.set("BTC", "100.00")

	_, err := f.engine.Start(context.Background(), "BTC", "up", 60)
	require.NoError(t, err)

	// The feed dies and never recovers within the retry window.
	f.prices.clear("BTC")
	_, err = f.engine.Resolve(context.Background())
	assert.ErrorIs(t, err, domain.ErrSettlementUnavailable)

	// Back to Idle with untouched statistics.
	session, stats := f.engine.State()
	assert.Equal(t, domain.StateIdle, session.State)
	assert.Equal(t, 0, stats.Played())
}

func TestResetForfeitsActiveSession(t *testing.T) {
	f := newFixture(t)
	f.prices.set("BTC", "100.00")

	_, err := f.engine.Start(context.Background(), "BTC", "up", 60)
	require.NoError(t, err)

	require.NoError(t, f.engine.Reset(context.Background()))

	session, stats := f.engine.State()
	assert.Equal(t, domain.StateIdle, session.State)
	assert.Equal(t, 0, stats.Played())

	// Idempotent.
	assert.NoError(t, f.engine.Reset(context.Background()))
}

func TestResetAcknowledgesResult(t *testing.T) {
	f := newFixture(t)
	f.prices.set("BTC", "100.00")

	_, err := f.engine.Start(context.Background(), "BTC", "up", 60)
	require.NoError(t, err)
	f.prices.set("BTC", "101.00")
	_, err = f.engine.Resolve(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.engine.Reset(context.Background()))

	// Acknowledgment keeps the statistics and frees the machine.
	session, stats := f.engine.State()
	assert.Equal(t, domain.StateIdle, session.State)
	assert.Equal(t, 1, stats.Wins)

	f.prices.set("BTC", "102.00")
	_, err = f.engine.Start(context.Background(), "BTC", "down", 60)
	assert.NoError(t, err)
}

func TestStatsAccumulateAcrossRounds(t *testing.T) {
	f := newFixture(t)

	rounds := []struct {
		direction  string
		entry      string
		settlement string
	}{
		{"up", "100.00", "101.00"},   // win
		{"up", "101.00", "100.00"},   // loss
		{"down", "100.00", "100.00"}, // tie, loss
	}

	for _, r := range rounds {
		f.prices.set("ETH", r.entry)
		_, err := f.engine.Start(context.Background(), "ETH", r.direction, 60)
		require.NoError(t, err)
		f.prices.set("ETH", r.settlement)
		_, err = f.engine.Resolve(context.Background())
		require.NoError(t, err)
		require.NoError(t, f.engine.Reset(context.Background()))
	}

	stats := f.engine.Stats()
	assert.Equal(t, 1, stats.Wins)
	assert.Equal(t, 2, stats.Losses)
	assert.Equal(t, len(rounds), stats.Played())
}

func TestIdentitySwitchIsolatesRecords(t *testing.T) {
	f := newFixture(t)
	f.prices.set("BTC", "100.00")

	// Wallet A wins one round.
	f.engine.IdentityChanged(domain.Anonymous, walletA)
	_, err := f.engine.Start(context.Background(), "BTC", "up", 60)
	require.NoError(t, err)
	f.prices.set("BTC", "101.00")
	_, err = f.engine.Resolve(context.Background())
	require.NoError(t, err)
	require.NoError(t, f.engine.Reset(context.Background()))
	assert.Equal(t, 1, f.engine.Stats().Wins)

	// Wallet B starts from zero.
	f.engine.IdentityChanged(walletA, walletB)
	assert.Equal(t, 0, f.engine.Stats().Played())

	// Wallet A's record is restored on return.
	f.engine.IdentityChanged(walletB, walletA)
	assert.Equal(t, 1, f.engine.Stats().Wins)
}

func TestIdentitySwitchPreservesInFlightSnapshot(t *testing.T) {
	f := newFixture(t)
	f.prices.set("BTC", "100.00")

	f.engine.IdentityChanged(domain.Anonymous, walletA)
	started, err := f.engine.Start(context.Background(), "BTC", "up", 60)
	require.NoError(t, err)

	// Switching away forfeits the in-memory session only.
	f.engine.IdentityChanged(walletA, walletB)
	session, _ := f.engine.State()
	assert.Equal(t, domain.StateIdle, session.State)

	// The bet survives and resumes when wallet A reattaches.
	f.engine.IdentityChanged(walletB, walletA)
	session, _ = f.engine.State()
	assert.Equal(t, domain.StateActive, session.State)
	assert.Equal(t, started.ID, session.ID)
	assert.Equal(t, started.EndsAt, session.EndsAt)
}

func TestResumeExpiredSnapshotSettlesImmediately(t *testing.T) {
	f := newFixture(t)
	f.prices.set("BTC", "100.00")

	f.engine.IdentityChanged(domain.Anonymous, walletA)
	_, err := f.engine.Start(context.Background(), "BTC", "up", 60)
	require.NoError(t, err)
	f.engine.IdentityChanged(walletA, domain.Anonymous)

	// The deadline passes while nobody is attached.
	f.clock.Advance(2 * time.Minute)
	f.prices.set("BTC", "105.00")

	f.engine.IdentityChanged(domain.Anonymous, walletA)
	session, stats := f.engine.State()
	assert.Equal(t, domain.StateResolved, session.State)
	assert.Equal(t, domain.OutcomeWin, session.Outcome)
	assert.Equal(t, 1, stats.Wins)
}

func TestAnonymousSessionsAreNotPersisted(t *testing.T) {
	f := newFixture(t)
	f.prices.set("BTC", "100.00")

	_, err := f.engine.Start(context.Background(), "BTC", "up", 60)
	require.NoError(t, err)
	f.prices.set("BTC", "101.00")
	_, err = f.engine.Resolve(context.Background())
	require.NoError(t, err)

	_, err = f.store.LoadSession(context.Background(), domain.Anonymous)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	stats, err := f.store.LoadStats(context.Background(), domain.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Played())
}

func TestDeadlineWatchResolvesExpiredSession(t *testing.T) {
	f := newFixture(t)
	f.prices.set("BTC", "100.00")

	_, err := f.engine.Start(context.Background(), "BTC", "down", 60)
	require.NoError(t, err)

	f.prices.set("BTC", "99.00")
	f.clock.Advance(61 * time.Second)

	assert.Eventually(t, func() bool {
		session, _ := f.engine.State()
		return session.State == domain.StateResolved
	}, time.Second, 5*time.Millisecond)

	session, stats := f.engine.State()
	assert.Equal(t, domain.OutcomeWin, session.Outcome)
	assert.Equal(t, 1, stats.Wins)
}

func TestEventsArePublished(t *testing.T) {
	f := newFixture(t)
	f.prices.set("BTC", "100.00")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := f.bus.Subscribe(ctx, domain.ChannelSessions)
	require.NoError(t, err)

	_, err = f.engine.Start(context.Background(), "BTC", "up", 60)
	require.NoError(t, err)
	f.prices.set("BTC", "101.00")
	_, err = f.engine.Resolve(context.Background())
	require.NoError(t, err)

	var types []string
	for i := 0; i < 2; i++ {
		select {
		case payload := <-events:
			var ev domain.GameEvent
			require.NoError(t, json.Unmarshal(payload, &ev))
			types = append(types, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}

	assert.Equal(t, []string{domain.EventSessionStarted, domain.EventSessionResolved}, types)
}

func TestResetEventCarriesSession(t *testing.T) {
	f := newFixture(t)
	f.prices.set("BTC", "100.00")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := f.bus.Subscribe(ctx, domain.ChannelSessions)
	require.NoError(t, err)

	started, err := f.engine.Start(context.Background(), "BTC", "up", 60)
	require.NoError(t, err)
	require.NoError(t, f.engine.Reset(context.Background()))

	var reset domain.GameEvent
	for i := 0; i < 2; i++ {
		select {
		case payload := <-events:
			var ev domain.GameEvent
			require.NoError(t, json.Unmarshal(payload, &ev))
			if ev.Type == domain.EventSessionReset {
				reset = ev
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}

	require.NotNil(t, reset.Session)
	assert.Equal(t, started.ID, reset.Session.ID)
	assert.Equal(t, domain.Symbol("BTC"), reset.Session.Symbol)
}
