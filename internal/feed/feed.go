// Package feed maintains live streaming prices from the Binance trade
// stream, one websocket connection per subscribed symbol, with automatic
// reconnect and exponential backoff. Consumers only ever observe a
// connection status and the last-known sample; transport failures are never
// raised upward.
package feed

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kryptoscreener/upordown/internal/domain"
)

// Config holds the feed's transport parameters.
type Config struct {
	WsHost           string
	HandshakeTimeout time.Duration
	ReconnectBase    time.Duration
	ReconnectCap     time.Duration
}

// symbolState is the shared per-symbol slot: one streamConn writing, any
// number of readers polling. The stream's receive path is the single writer
// of sample/status.
type symbolState struct {
	conn *streamConn
	refs int

	mu     sync.RWMutex
	sample domain.PriceSample
	has    bool
	status domain.FeedStatus
}

// Feed multiplexes per-symbol trade streams behind subscription handles. It
// also implements domain.PriceSource for consumers that read by symbol.
type Feed struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	symbols map[domain.Symbol]*symbolState
}

// New creates a Feed. No connections are opened until the first Subscribe.
func New(cfg Config, logger *slog.Logger) *Feed {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 15 * time.Second
	}
	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = time.Second
	}
	if cfg.ReconnectCap <= 0 {
		cfg.ReconnectCap = 30 * time.Second
	}
	return &Feed{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "feed")),
		symbols: make(map[domain.Symbol]*symbolState),
	}
}

// Handle is one consumer's subscription to a single symbol's price stream.
// A handle follows at most one symbol at a time; switching symbols releases
// the previous stream so prices can never leak across symbols.
type Handle struct {
	feed *Feed

	mu     sync.Mutex
	symbol domain.Symbol
	active bool
}

// Subscribe opens (or reuses) the streaming connection for the given symbol
// and returns a handle scoped to it.
func (f *Feed) Subscribe(symbol domain.Symbol) (*Handle, error) {
	info, err := domain.LookupSymbol(string(symbol))
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.acquireLocked(info)
	f.mu.Unlock()

	return &Handle{feed: f, symbol: info.Symbol, active: true}, nil
}

// acquireLocked bumps the refcount for a symbol, starting its stream on the
// first reference. Caller holds f.mu.
func (f *Feed) acquireLocked(info domain.SymbolInfo) {
	st, ok := f.symbols[info.Symbol]
	if ok {
		st.refs++
		return
	}

	st = &symbolState{refs: 1, status: domain.FeedConnecting}
	url := strings.TrimRight(f.cfg.WsHost, "/") + "/" + info.StreamName()
	st.conn = newStreamConn(url, info.Symbol,
		connConfig{
			handshakeTimeout: f.cfg.HandshakeTimeout,
			reconnectBase:    f.cfg.ReconnectBase,
			reconnectCap:     f.cfg.ReconnectCap,
		},
		func(sample domain.PriceSample) {
			st.mu.Lock()
			st.sample = sample
			st.has = true
			st.mu.Unlock()
		},
		func(status domain.FeedStatus) {
			st.mu.Lock()
			st.status = status
			st.mu.Unlock()
		},
		f.logger,
	)
	f.symbols[info.Symbol] = st
	go st.conn.run()
}

// releaseLocked drops one reference for a symbol, tearing the stream down on
// the last release. Caller holds f.mu.
func (f *Feed) releaseLocked(symbol domain.Symbol) {
	st, ok := f.symbols[symbol]
	if !ok {
		return
	}
	st.refs--
	if st.refs > 0 {
		return
	}
	delete(f.symbols, symbol)
	st.conn.close()
}

// Switch re-points the handle at a different symbol. The previous stream is
// released first, so the handle never observes another symbol's prices. A
// switch to the current symbol is a no-op.
func (h *Handle) Switch(symbol domain.Symbol) error {
	info, err := domain.LookupSymbol(string(symbol))
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.active {
		return domain.ErrWSDisconnect
	}
	if info.Symbol == h.symbol {
		return nil
	}

	h.feed.mu.Lock()
	h.feed.releaseLocked(h.symbol)
	h.feed.acquireLocked(info)
	h.feed.mu.Unlock()

	h.symbol = info.Symbol
	return nil
}

// Symbol returns the symbol the handle currently follows.
func (h *Handle) Symbol() domain.Symbol {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.symbol
}

// Latest returns the most recent sample for the handle's symbol. ok is false
// until the first message arrives; an absent sample means "still
// connecting", not an error.
func (h *Handle) Latest() (domain.PriceSample, bool) {
	h.mu.Lock()
	symbol, active := h.symbol, h.active
	h.mu.Unlock()
	if !active {
		return domain.PriceSample{}, false
	}
	return h.feed.Latest(symbol)
}

// Status returns the transport state of the handle's stream.
func (h *Handle) Status() domain.FeedStatus {
	h.mu.Lock()
	symbol, active := h.symbol, h.active
	h.mu.Unlock()
	if !active {
		return domain.FeedDisconnected
	}
	return h.feed.Status(symbol)
}

// Close releases the subscription. Idempotent; always called on teardown so
// sockets and reconnect timers are not leaked.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.active {
		return
	}
	h.active = false

	h.feed.mu.Lock()
	h.feed.releaseLocked(h.symbol)
	h.feed.mu.Unlock()
}

// Latest implements domain.PriceSource.
func (f *Feed) Latest(symbol domain.Symbol) (domain.PriceSample, bool) {
	f.mu.Lock()
	st, ok := f.symbols[symbol]
	f.mu.Unlock()
	if !ok {
		return domain.PriceSample{}, false
	}

	st.mu.RLock()
	defer st.mu.RUnlock()
	if !st.has {
		return domain.PriceSample{}, false
	}
	return st.sample, true
}

// Status implements domain.PriceSource. Symbols with no subscription report
// disconnected.
func (f *Feed) Status(symbol domain.Symbol) domain.FeedStatus {
	f.mu.Lock()
	st, ok := f.symbols[symbol]
	f.mu.Unlock()
	if !ok {
		return domain.FeedDisconnected
	}

	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.status
}

// Close tears down every open stream. Outstanding handles become inert.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for symbol, st := range f.symbols {
		st.conn.close()
		delete(f.symbols, symbol)
	}
}

// Compile-time interface check.
var _ domain.PriceSource = (*Feed)(nil)
