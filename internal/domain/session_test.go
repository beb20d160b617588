package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestJudge(t *testing.T) {
	tests := []struct {
		name       string
		direction  Direction
		entry      string
		settlement string
		want       Outcome
	}{
		{"up and price rose", DirectionUp, "100.00", "100.01", OutcomeWin},
		{"up and price fell", DirectionUp, "100.00", "99.99", OutcomeLoss},
		{"up and price unchanged", DirectionUp, "100.00", "100.00", OutcomeLoss},
		{"down and price fell", DirectionDown, "100.00", "99.99", OutcomeWin},
		{"down and price rose", DirectionDown, "100.00", "100.01", OutcomeLoss},
		{"down and price unchanged", DirectionDown, "100.00", "100.00", OutcomeLoss},
		{"unchanged across representations", DirectionUp, "100", "100.000", OutcomeLoss},
		{"tiny favourable move still wins", DirectionDown, "0.56780000", "0.56779999", OutcomeWin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Judge(tt.direction, d(tt.entry), d(tt.settlement))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDirection(t *testing.T) {
	up, ok := ParseDirection("up")
	assert.True(t, ok)
	assert.Equal(t, DirectionUp, up)

	down, ok := ParseDirection("down")
	assert.True(t, ok)
	assert.Equal(t, DirectionDown, down)

	_, ok = ParseDirection("sideways")
	assert.False(t, ok)
	_, ok = ParseDirection("")
	assert.False(t, ok)
}

func TestSessionRemaining(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := Session{
		StartedAt: start,
		Duration:  time.Minute,
		EndsAt:    start.Add(time.Minute),
	}

	assert.Equal(t, time.Minute, s.Remaining(start))
	assert.Equal(t, 30*time.Second, s.Remaining(start.Add(30*time.Second)))

	// Derived from the absolute anchor: a delayed observation does not drift.
	assert.Equal(t, time.Second, s.Remaining(start.Add(59*time.Second)))

	// Never negative past the deadline.
	assert.Equal(t, time.Duration(0), s.Remaining(start.Add(2*time.Minute)))
}

func TestSessionExpired(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := Session{EndsAt: start.Add(time.Minute)}

	assert.False(t, s.Expired(start))
	assert.False(t, s.Expired(start.Add(59*time.Second)))
	assert.True(t, s.Expired(start.Add(time.Minute)))
	assert.True(t, s.Expired(start.Add(time.Hour)))
}

func TestSessionSnapshot(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := Session{
		ID:         "abc",
		Identity:   "0x1111111111111111111111111111111111111111",
		Symbol:     "BTC",
		Direction:  DirectionUp,
		EntryPrice: d("65000.12"),
		StartedAt:  start,
		Duration:   time.Minute,
		EndsAt:     start.Add(time.Minute),
		State:      StateActive,
	}

	snap := s.Snapshot()
	assert.Equal(t, s.ID, snap.ID)
	assert.Equal(t, s.Symbol, snap.Symbol)
	assert.Equal(t, s.Direction, snap.Direction)
	assert.True(t, s.EntryPrice.Equal(snap.EntryPrice))
	assert.Equal(t, s.EndsAt, snap.EndsAt)
}

func TestStatisticsRecord(t *testing.T) {
	var s Statistics
	s = s.Record(OutcomeWin)
	s = s.Record(OutcomeLoss)
	s = s.Record(OutcomeWin)

	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.Equal(t, 3, s.Played())
	assert.InDelta(t, 2.0/3.0, s.WinRate(), 1e-9)
}

func TestStatisticsWinRateEmpty(t *testing.T) {
	var s Statistics
	assert.Equal(t, 0.0, s.WinRate())
}
