package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kryptoscreener/upordown/internal/domain"
	"github.com/kryptoscreener/upordown/internal/game"
	"github.com/kryptoscreener/upordown/internal/identity"
	"github.com/kryptoscreener/upordown/internal/store/memory"
)

type stubPrices struct {
	mu      sync.Mutex
	samples map[domain.Symbol]domain.PriceSample
}

func newStubPrices() *stubPrices {
	return &stubPrices{samples: make(map[domain.Symbol]domain.PriceSample)}
}

func (p *stubPrices) set(symbol domain.Symbol, price string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.samples[symbol] = domain.PriceSample{
		Symbol:     symbol,
		Price:      decimal.RequireFromString(price),
		ObservedAt: time.Now(),
	}
}

func (p *stubPrices) Latest(symbol domain.Symbol) (domain.PriceSample, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.samples[symbol]
	return s, ok
}

func (p *stubPrices) Status(domain.Symbol) domain.FeedStatus {
	return domain.FeedConnected
}

type testAPI struct {
	mux    *http.ServeMux
	prices *stubPrices
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	prices := newStubPrices()
	engine := game.NewEngine(game.Config{Durations: []int{60}},
		prices, memory.NewSessionStore(), logger)
	t.Cleanup(engine.Close)
	ids := identity.NewSource(logger)

	gameHandler := NewGameHandler(engine)
	walletHandler := NewWalletHandler(ids)
	pricesHandler := NewPricesHandler(prices)
	symbolsHandler := NewSymbolsHandler([]int{60})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/symbols", symbolsHandler.ListSymbols)
	mux.HandleFunc("GET /api/prices/{symbol}", pricesHandler.GetPrice)
	mux.HandleFunc("GET /api/game", gameHandler.State)
	mux.HandleFunc("GET /api/game/stats", gameHandler.Stats)
	mux.HandleFunc("POST /api/game/start", gameHandler.Start)
	mux.HandleFunc("POST /api/game/resolve", gameHandler.Resolve)
	mux.HandleFunc("POST /api/game/reset", gameHandler.Reset)
	mux.HandleFunc("GET /api/wallet", walletHandler.Current)
	mux.HandleFunc("POST /api/wallet/connect", walletHandler.Connect)
	mux.HandleFunc("POST /api/wallet/disconnect", walletHandler.Disconnect)

	return &testAPI{mux: mux, prices: prices}
}

func (a *testAPI) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)

	var payload map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec, payload
}

func TestGameLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	api.prices.set("BTC", "65000.00")

	rec, payload := api.do(t, http.MethodPost, "/api/game/start",
		`{"symbol":"BTC","direction":"up","duration_seconds":60}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	session := payload["session"].(map[string]any)
	assert.Equal(t, "active", session["state"])
	assert.Equal(t, "65000", session["entry_price"])
	assert.InDelta(t, 60, session["remaining_seconds"], 1)

	api.prices.set("BTC", "66000.00")
	rec, payload = api.do(t, http.MethodPost, "/api/game/resolve", "")
	require.Equal(t, http.StatusOK, rec.Code)
	session = payload["session"].(map[string]any)
	assert.Equal(t, "resolved", session["state"])
	assert.Equal(t, "win", session["outcome"])

	rec, payload = api.do(t, http.MethodGet, "/api/game/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), payload["wins"])

	rec, _ = api.do(t, http.MethodPost, "/api/game/reset", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, payload = api.do(t, http.MethodGet, "/api/game", "")
	require.Equal(t, http.StatusOK, rec.Code)
	session = payload["session"].(map[string]any)
	assert.Equal(t, "idle", session["state"])
}

func TestStartErrorsOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	// No live price yet.
	rec, _ := api.do(t, http.MethodPost, "/api/game/start",
		`{"symbol":"BTC","direction":"up","duration_seconds":60}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// Unknown symbol.
	rec, _ = api.do(t, http.MethodPost, "/api/game/start",
		`{"symbol":"DOGE","direction":"up","duration_seconds":60}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Malformed body.
	rec, _ = api.do(t, http.MethodPost, "/api/game/start", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Second session while one is active.
	api.prices.set("BTC", "65000.00")
	rec, _ = api.do(t, http.MethodPost, "/api/game/start",
		`{"symbol":"BTC","direction":"up","duration_seconds":60}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = api.do(t, http.MethodPost, "/api/game/start",
		`{"symbol":"BTC","direction":"down","duration_seconds":60}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestResolveWhileIdleOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	rec, _ := api.do(t, http.MethodPost, "/api/game/resolve", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestWalletOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	rec, payload := api.do(t, http.MethodGet, "/api/wallet", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, payload["connected"])

	rec, _ = api.do(t, http.MethodPost, "/api/wallet/connect", `{"address":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, payload = api.do(t, http.MethodPost, "/api/wallet/connect",
		`{"address":"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", payload["identity"])

	rec, _ = api.do(t, http.MethodPost, "/api/wallet/disconnect", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPricesOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	rec, _ := api.do(t, http.MethodGet, "/api/prices/BTC", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	api.prices.set("BTC", "65000.00")
	rec, payload := api.do(t, http.MethodGet, "/api/prices/BTC", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "65000", payload["price"])
	assert.Equal(t, "connected", payload["feed_status"])

	rec, _ = api.do(t, http.MethodGet, "/api/prices/DOGE", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSymbolsOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	rec, payload := api.do(t, http.MethodGet, "/api/symbols", "")
	require.Equal(t, http.StatusOK, rec.Code)

	symbols := payload["symbols"].([]any)
	assert.Len(t, symbols, 5)
	first := symbols[0].(map[string]any)
	assert.Equal(t, "BTC", first["symbol"])
	assert.Equal(t, []any{float64(60)}, payload["durations"])
}

func TestParseListOpts(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=10&offset=5", nil)
	opts := parseListOpts(req)
	assert.Equal(t, 10, opts.Limit)
	assert.Equal(t, 5, opts.Offset)

	req = httptest.NewRequest(http.MethodGet, "/api/history", nil)
	opts = parseListOpts(req)
	assert.Equal(t, 50, opts.Limit)
	assert.Equal(t, 0, opts.Offset)

	req = httptest.NewRequest(http.MethodGet, "/api/history?limit=9999&offset=-1", nil)
	opts = parseListOpts(req)
	assert.Equal(t, 500, opts.Limit)
	assert.Equal(t, 0, opts.Offset)
}
