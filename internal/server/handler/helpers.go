package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/kryptoscreener/upordown/internal/domain"
)

// writeJSON marshals v as JSON and writes it with the given status code. If
// marshaling fails it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps domain sentinel errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownSymbol),
		errors.Is(err, domain.ErrInvalidIdentity),
		errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNoLivePrice),
		errors.Is(err, domain.ErrSettlementUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// parseListOpts extracts standard pagination parameters from the query
// string. Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

// sessionView is the wire representation of a session, with the countdown
// pre-derived from the absolute deadline.
type sessionView struct {
	ID               string `json:"id,omitempty"`
	Symbol           string `json:"symbol,omitempty"`
	Direction        string `json:"direction,omitempty"`
	EntryPrice       string `json:"entry_price,omitempty"`
	StartedAt        string `json:"started_at,omitempty"`
	DurationSeconds  int64  `json:"duration_seconds,omitempty"`
	EndsAt           string `json:"ends_at,omitempty"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	State            string `json:"state"`
	SettlementPrice  string `json:"settlement_price,omitempty"`
	Outcome          string `json:"outcome,omitempty"`
	ResolvedAt       string `json:"resolved_at,omitempty"`
}

func viewSession(s domain.Session, now time.Time) sessionView {
	v := sessionView{State: string(s.State)}
	if s.State == domain.StateIdle {
		return v
	}

	v.ID = s.ID
	v.Symbol = string(s.Symbol)
	v.Direction = string(s.Direction)
	v.EntryPrice = s.EntryPrice.String()
	v.StartedAt = s.StartedAt.UTC().Format(time.RFC3339Nano)
	v.DurationSeconds = int64(s.Duration / time.Second)
	v.EndsAt = s.EndsAt.UTC().Format(time.RFC3339Nano)
	v.RemainingSeconds = int64(s.Remaining(now) / time.Second)

	if s.State == domain.StateResolved {
		v.SettlementPrice = s.SettlementPrice.String()
		v.Outcome = string(s.Outcome)
		v.ResolvedAt = s.ResolvedAt.UTC().Format(time.RFC3339Nano)
	}
	return v
}

// statsView is the wire representation of the win/loss counters.
type statsView struct {
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	Played  int     `json:"played"`
	WinRate float64 `json:"win_rate"`
}

func viewStats(s domain.Statistics) statsView {
	return statsView{
		Wins:    s.Wins,
		Losses:  s.Losses,
		Played:  s.Played(),
		WinRate: s.WinRate(),
	}
}
