package handler

import (
	"net/http"

	"github.com/kryptoscreener/upordown/internal/domain"
)

// SymbolsHandler serves the asset registry and the offered durations, the
// reference data a client needs to render the game controls.
type SymbolsHandler struct {
	durations []int
}

// NewSymbolsHandler creates a SymbolsHandler offering the given durations.
func NewSymbolsHandler(durations []int) *SymbolsHandler {
	return &SymbolsHandler{durations: durations}
}

// ListSymbols returns the supported assets and prediction windows.
// GET /api/symbols
func (h *SymbolsHandler) ListSymbols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"symbols":   domain.Symbols(),
		"durations": h.durations,
	})
}
