package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the player's commitment: the price will go up, or down.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// ParseDirection validates a wire-format direction string.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case DirectionUp:
		return DirectionUp, true
	case DirectionDown:
		return DirectionDown, true
	}
	return "", false
}

// SessionState is the lifecycle state of a prediction session.
type SessionState string

const (
	// StateIdle means no commitment exists. Idle is both the initial state
	// and the terminal state after a result is acknowledged.
	StateIdle SessionState = "idle"
	// StateActive means the player has committed and the clock is running.
	StateActive SessionState = "active"
	// StateResolved means the outcome is known and awaits acknowledgment.
	StateResolved SessionState = "resolved"
)

// Outcome of a resolved session.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
)

// Session is one prediction: a symbol, a direction, an entry price and an
// absolute deadline. Symbol, direction, entry price and duration are immutable
// once the session is active. SettlementPrice and Outcome are populated only
// in the resolved state.
type Session struct {
	ID              string          `json:"id"`
	Identity        Identity        `json:"identity"`
	Symbol          Symbol          `json:"symbol"`
	Direction       Direction       `json:"direction"`
	EntryPrice      decimal.Decimal `json:"entry_price"`
	StartedAt       time.Time       `json:"started_at"`
	Duration        time.Duration   `json:"duration"`
	EndsAt          time.Time       `json:"ends_at"`
	State           SessionState    `json:"state"`
	SettlementPrice decimal.Decimal `json:"settlement_price,omitempty"`
	Outcome         Outcome         `json:"outcome,omitempty"`
	ResolvedAt      time.Time       `json:"resolved_at,omitempty"`
}

// Remaining derives the time left until the deadline from the absolute EndsAt
// anchor. It is never negative. Deriving from the anchor rather than counting
// ticks keeps the countdown correct across missed or delayed ticks.
func (s Session) Remaining(now time.Time) time.Duration {
	r := s.EndsAt.Sub(now)
	if r < 0 {
		return 0
	}
	return r
}

// Expired reports whether the deadline has passed.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.EndsAt)
}

// Judge applies the outcome rule: a win requires the settlement price to be
// strictly above the entry for an "up" commitment, or strictly below for a
// "down" commitment. An unchanged price is always a loss.
func Judge(direction Direction, entry, settlement decimal.Decimal) Outcome {
	switch {
	case direction == DirectionUp && settlement.GreaterThan(entry):
		return OutcomeWin
	case direction == DirectionDown && settlement.LessThan(entry):
		return OutcomeWin
	default:
		return OutcomeLoss
	}
}

// SessionSnapshot is the persisted form of an in-flight session, written on
// start and cleared on resolution. It carries everything needed to
// reconstruct an Active session after a restart; the deadline is stored as
// the absolute EndsAt so a resumed countdown stays anchored to wall-clock
// time.
type SessionSnapshot struct {
	ID         string          `json:"id"`
	Symbol     Symbol          `json:"symbol"`
	Direction  Direction       `json:"direction"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	StartedAt  time.Time       `json:"started_at"`
	EndsAt     time.Time       `json:"ends_at"`
}

// Snapshot extracts the persistable subset of an active session.
func (s Session) Snapshot() SessionSnapshot {
	return SessionSnapshot{
		ID:         s.ID,
		Symbol:     s.Symbol,
		Direction:  s.Direction,
		EntryPrice: s.EntryPrice,
		StartedAt:  s.StartedAt,
		EndsAt:     s.EndsAt,
	}
}
