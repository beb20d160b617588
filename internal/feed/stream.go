package feed

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/kryptoscreener/upordown/internal/domain"
)

// tradeMessage is the Binance trade-stream payload. Price arrives as a
// string; TradeTime and EventTime are Unix milliseconds.
type tradeMessage struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Pair      string `json:"s"`
	Price     string `json:"p"`
	TradeTime int64  `json:"T"`
}

// parseSample extracts a PriceSample from a raw trade-stream message. It
// returns ok=false for anything that is not a well-formed trade with a
// strictly positive numeric price; such messages are dropped, not errors.
func parseSample(symbol domain.Symbol, raw []byte) (domain.PriceSample, bool) {
	var msg tradeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.PriceSample{}, false
	}
	if msg.EventType != "" && msg.EventType != "trade" {
		return domain.PriceSample{}, false
	}
	price, err := decimal.NewFromString(msg.Price)
	if err != nil {
		return domain.PriceSample{}, false
	}

	ts := msg.TradeTime
	if ts == 0 {
		ts = msg.EventTime
	}
	observed := time.Now()
	if ts > 0 {
		observed = time.UnixMilli(ts)
	}

	sample := domain.PriceSample{Symbol: symbol, Price: price, ObservedAt: observed}
	if !sample.Valid() {
		return domain.PriceSample{}, false
	}
	return sample, true
}

// backoffDelay computes the reconnect delay for the given attempt:
// min(base * 2^attempt, cap), plus up to 30% jitter so clients do not
// reconnect in lockstep.
func backoffDelay(attempt int, base, cap time.Duration) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= cap {
			delay = cap
			break
		}
	}
	if delay > cap {
		delay = cap
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/3 + 1))
	if delay+jitter > cap {
		return cap
	}
	return delay + jitter
}

const (
	// streamWriteWait bounds a single control-frame write.
	streamWriteWait = 10 * time.Second

	// streamPongWait is how long a silent peer is tolerated before the read
	// fails and the reconnect path takes over. Pings go out at 9/10 of this
	// so a healthy peer always answers in time.
	streamPongWait = 60 * time.Second
)

// streamConn owns one websocket connection to a single trade stream. It is
// the only writer of the symbol's latest sample (published through
// onSample). On abnormal close it reconnects with exponential backoff; a
// deliberate Close never reconnects. A read deadline refreshed by pongs and
// inbound traffic turns a half-open connection into a read error, so a dead
// peer can never leave the stream reporting connected with a stale sample.
type streamConn struct {
	url              string
	symbol           domain.Symbol
	handshakeTimeout time.Duration
	reconnectBase    time.Duration
	reconnectCap     time.Duration
	pongWait         time.Duration
	pingPeriod       time.Duration

	onSample func(domain.PriceSample)
	onStatus func(domain.FeedStatus)

	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	conn *websocket.Conn
}

func newStreamConn(url string, symbol domain.Symbol, cfg connConfig, onSample func(domain.PriceSample), onStatus func(domain.FeedStatus), logger *slog.Logger) *streamConn {
	pongWait := cfg.pongWait
	if pongWait <= 0 {
		pongWait = streamPongWait
	}
	return &streamConn{
		url:              url,
		symbol:           symbol,
		handshakeTimeout: cfg.handshakeTimeout,
		reconnectBase:    cfg.reconnectBase,
		reconnectCap:     cfg.reconnectCap,
		pongWait:         pongWait,
		pingPeriod:       pongWait * 9 / 10,
		onSample:         onSample,
		onStatus:         onStatus,
		logger:           logger.With(slog.String("symbol", string(symbol))),
		done:             make(chan struct{}),
	}
}

type connConfig struct {
	handshakeTimeout time.Duration
	reconnectBase    time.Duration
	reconnectCap     time.Duration
	pongWait         time.Duration
}

// run dials, reads until failure, and redials with backoff until the conn is
// deliberately closed. It runs in its own goroutine.
func (c *streamConn) run() {
	attempt := 0

	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.onStatus(domain.FeedConnecting)

		dialer := websocket.Dialer{HandshakeTimeout: c.handshakeTimeout}
		conn, _, err := dialer.Dial(c.url, nil)
		if err != nil {
			delay := backoffDelay(attempt, c.reconnectBase, c.reconnectCap)
			attempt++
			c.onStatus(domain.FeedDisconnected)
			c.logger.Warn("feed: dial failed, retrying",
				slog.String("error", err.Error()),
				slog.Duration("delay", delay),
				slog.Int("attempt", attempt),
			)
			select {
			case <-c.done:
				return
			case <-time.After(delay):
			}
			continue
		}

		// A successful open resets the backoff schedule.
		attempt = 0
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		conn.SetReadDeadline(time.Now().Add(c.pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(c.pongWait))
		})

		c.onStatus(domain.FeedConnected)
		c.logger.Debug("feed: stream connected")

		pingStop := make(chan struct{})
		go c.pingLoop(conn, pingStop)
		c.readLoop(conn)
		close(pingStop)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()

		select {
		case <-c.done:
			// Deliberate close; do not reconnect.
			return
		default:
		}

		c.onStatus(domain.FeedDisconnected)
		delay := backoffDelay(attempt, c.reconnectBase, c.reconnectCap)
		attempt++
		c.logger.Warn("feed: stream dropped, reconnecting",
			slog.Duration("delay", delay),
			slog.Int("attempt", attempt),
		)
		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}
	}
}

// readLoop consumes messages until the connection fails, the read deadline
// expires, or the conn is closed. Malformed or non-positive payloads are
// dropped silently.
func (c *streamConn) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		// Any inbound traffic proves the peer is alive.
		conn.SetReadDeadline(time.Now().Add(c.pongWait))

		sample, ok := parseSample(c.symbol, raw)
		if !ok {
			c.logger.Debug("feed: dropped malformed message")
			continue
		}
		c.onSample(sample)
	}
}

// pingLoop solicits pongs so the read deadline keeps advancing on an
// otherwise quiet stream. A failed ping write is left for the read loop to
// observe as a deadline expiry.
func (c *streamConn) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-c.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close tears the connection down cleanly. Safe to call multiple times.
func (c *streamConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn != nil {
			_ = conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			)
			_ = conn.Close()
		}
	})
}
