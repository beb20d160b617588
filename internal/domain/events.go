package domain

import "time"

// Event channel names published on the EventBus.
const (
	ChannelSessions = "game:sessions"
	ChannelStats    = "game:stats"
)

// Event type discriminators.
const (
	EventSessionStarted  = "session_started"
	EventSessionResolved = "session_resolved"
	EventSessionReset    = "session_reset"
	EventStatsUpdated    = "stats_updated"
)

// GameEvent is the envelope broadcast to websocket clients on every state
// change. Session is present for session_* events, Stats for stats_updated.
type GameEvent struct {
	Type     string      `json:"type"`
	Identity Identity    `json:"identity"`
	At       time.Time   `json:"at"`
	Session  *Session    `json:"session,omitempty"`
	Stats    *Statistics `json:"stats,omitempty"`
}
