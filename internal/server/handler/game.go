package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kryptoscreener/upordown/internal/domain"
	"github.com/kryptoscreener/upordown/internal/game"
)

// GameHandler exposes the prediction session lifecycle over HTTP.
type GameHandler struct {
	engine *game.Engine
}

// NewGameHandler creates a GameHandler around the engine.
func NewGameHandler(engine *game.Engine) *GameHandler {
	return &GameHandler{engine: engine}
}

type startRequest struct {
	Symbol          string `json:"symbol"`
	Direction       string `json:"direction"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Start commits a prediction at the current live price.
// POST /api/game/start
func (h *GameHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.engine.Start(r.Context(), req.Symbol, req.Direction, req.DurationSeconds)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"session": viewSession(session, time.Now()),
	})
}

// Resolve settles the active session against the latest price.
// POST /api/game/resolve
func (h *GameHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	session, err := h.engine.Resolve(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrSettlementUnavailable) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"error":   err.Error(),
				"session": viewSession(session, time.Now()),
			})
			return
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session": viewSession(session, time.Now()),
	})
}

// Reset acknowledges a result or forfeits an active session.
// POST /api/game/reset
func (h *GameHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Reset(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// State returns the current session and statistics.
// GET /api/game
func (h *GameHandler) State(w http.ResponseWriter, r *http.Request) {
	session, stats := h.engine.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"identity": h.engine.Identity(),
		"session":  viewSession(session, time.Now()),
		"stats":    viewStats(stats),
	})
}

// Stats returns the current identity's win/loss record.
// GET /api/game/stats
func (h *GameHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewStats(h.engine.Stats()))
}
