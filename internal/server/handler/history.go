package handler

import (
	"net/http"
	"time"

	"github.com/kryptoscreener/upordown/internal/domain"
)

// HistoryHandler serves the resolved-session ledger for the attached
// identity.
type HistoryHandler struct {
	history domain.HistoryStore
	source  domain.IdentitySource
}

// NewHistoryHandler creates a HistoryHandler. history may be nil when no
// ledger is configured; requests then return 404.
func NewHistoryHandler(history domain.HistoryStore, source domain.IdentitySource) *HistoryHandler {
	return &HistoryHandler{history: history, source: source}
}

// List returns the attached identity's resolved sessions, newest first.
// GET /api/history
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "history is not configured")
		return
	}

	id := h.source.Current()
	if id.IsAnonymous() {
		writeError(w, http.StatusBadRequest, "no wallet connected")
		return
	}

	sessions, err := h.history.ListByIdentity(r.Context(), id, parseListOpts(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	now := time.Now()
	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, viewSession(s, now))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": views})
}
