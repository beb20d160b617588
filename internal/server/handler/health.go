package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/kryptoscreener/upordown/internal/domain"
)

// HealthHandler reports process liveness plus the state of each price feed
// and each optional backing store.
type HealthHandler struct {
	prices domain.PriceSource
	checks map[string]func(context.Context) error
}

// NewHealthHandler creates a HealthHandler. checks maps a dependency name to
// its ping function; nil or empty is fine.
func NewHealthHandler(prices domain.PriceSource, checks map[string]func(context.Context) error) *HealthHandler {
	return &HealthHandler{prices: prices, checks: checks}
}

// HealthCheck reports feed status per symbol and pings backing stores.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	feeds := make(map[string]string)
	for _, info := range domain.Symbols() {
		feeds[string(info.Symbol)] = string(h.prices.Status(info.Symbol))
	}

	deps := make(map[string]string)
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			healthy = false
		} else {
			deps[name] = "ok"
		}
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":       status,
		"feeds":        feeds,
		"dependencies": deps,
	})
}
