package handler

import (
	"encoding/json"
	"net/http"

	"github.com/kryptoscreener/upordown/internal/identity"
)

// WalletHandler attaches and detaches the wallet identity that scopes
// persisted sessions and statistics.
type WalletHandler struct {
	source *identity.Source
}

// NewWalletHandler creates a WalletHandler over the identity source.
func NewWalletHandler(source *identity.Source) *WalletHandler {
	return &WalletHandler{source: source}
}

type connectRequest struct {
	Address string `json:"address"`
}

// Connect validates the wallet address and makes it the current identity.
// POST /api/wallet/connect
func (h *WalletHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.source.Connect(req.Address)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"identity": id})
}

// Disconnect returns the game to the anonymous identity.
// POST /api/wallet/disconnect
func (h *WalletHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	h.source.Disconnect()
	w.WriteHeader(http.StatusNoContent)
}

// Current reports the attached identity.
// GET /api/wallet
func (h *WalletHandler) Current(w http.ResponseWriter, r *http.Request) {
	id := h.source.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"identity":  id,
		"connected": !id.IsAnonymous(),
	})
}
