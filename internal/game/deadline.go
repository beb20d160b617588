package game

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kryptoscreener/upordown/internal/domain"
)

// deadlineWatch is the timer that triggers automatic resolution when a
// session's end time passes. Each tick re-derives the remaining time from
// the session's absolute EndsAt anchor instead of decrementing a counter, so
// missed or delayed ticks (process stalls, timer throttling) cannot drift
// the countdown or double-fire: the first tick at or after the deadline
// settles the session exactly once, and the watch then stops.
type deadlineWatch struct {
	stop chan struct{}
	once sync.Once
}

func (w *deadlineWatch) halt() {
	w.once.Do(func() { close(w.stop) })
}

// armWatchLocked replaces any previous watch with a fresh one for the
// current session. Caller holds e.mu.
func (e *Engine) armWatchLocked() {
	e.stopWatchLocked()
	w := &deadlineWatch{stop: make(chan struct{})}
	e.watch = w
	go e.runWatch(w)
}

// stopWatchLocked halts the current watch, if any. Caller holds e.mu.
// Halting only closes a channel, so it is safe under the engine lock.
func (e *Engine) stopWatchLocked() {
	if e.watch != nil {
		e.watch.halt()
		e.watch = nil
	}
}

func (e *Engine) runWatch(w *deadlineWatch) {
	ticker := time.NewTicker(e.cfg.WatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			e.mu.Lock()
			expired := e.session != nil &&
				e.session.State == domain.StateActive &&
				e.session.Expired(e.now())
			e.mu.Unlock()

			if !expired {
				continue
			}
			if _, err := e.Resolve(context.Background()); err != nil {
				e.logger.Warn("deadline settlement failed", slog.String("error", err.Error()))
			}
			return
		}
	}
}
