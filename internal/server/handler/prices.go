package handler

import (
	"net/http"
	"time"

	"github.com/kryptoscreener/upordown/internal/domain"
)

// PricesHandler serves the latest observed price per symbol.
type PricesHandler struct {
	prices domain.PriceSource
}

// NewPricesHandler creates a PricesHandler over the given source.
func NewPricesHandler(prices domain.PriceSource) *PricesHandler {
	return &PricesHandler{prices: prices}
}

// GetPrice returns the latest sample for one symbol, or 503 when the feed has
// not produced one yet.
// GET /api/prices/{symbol}
func (h *PricesHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	info, err := domain.LookupSymbol(r.PathValue("symbol"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := h.prices.Status(info.Symbol)
	sample, ok := h.prices.Latest(info.Symbol)
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"symbol":      info.Symbol,
			"feed_status": status,
			"error":       domain.ErrNoLivePrice.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":      info.Symbol,
		"price":       sample.Price.String(),
		"observed_at": sample.ObservedAt.UTC().Format(time.RFC3339Nano),
		"feed_status": status,
	})
}

// ListPrices returns the latest sample for every supported symbol. Symbols
// without a sample yet are reported with a null price.
// GET /api/prices
func (h *PricesHandler) ListPrices(w http.ResponseWriter, r *http.Request) {
	out := make([]map[string]any, 0, len(domain.Symbols()))
	for _, info := range domain.Symbols() {
		entry := map[string]any{
			"symbol":      info.Symbol,
			"feed_status": h.prices.Status(info.Symbol),
			"price":       nil,
		}
		if sample, ok := h.prices.Latest(info.Symbol); ok {
			entry["price"] = sample.Price.String()
			entry["observed_at"] = sample.ObservedAt.UTC().Format(time.RFC3339Nano)
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"prices": out})
}
