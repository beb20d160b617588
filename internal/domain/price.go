package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSample is the most recent trade price observed for a symbol. Only the
// latest sample per symbol is retained; there is no history buffer.
type PriceSample struct {
	Symbol     Symbol          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	ObservedAt time.Time       `json:"observed_at"`
}

// Valid reports whether the sample satisfies the feed invariant: a strictly
// positive price. Samples that fail this are dropped before publication.
func (s PriceSample) Valid() bool {
	return s.Price.IsPositive()
}

// FeedStatus describes the transport state of a price subscription.
type FeedStatus string

const (
	FeedConnecting   FeedStatus = "connecting"
	FeedConnected    FeedStatus = "connected"
	FeedDisconnected FeedStatus = "disconnected"
)

// PriceSource is the read side of a live price feed. Latest is non-blocking
// and returns ok=false until the first valid sample for the symbol arrives.
// Implementations never surface transport errors through this interface;
// consumers only ever see a status and the last-known sample.
type PriceSource interface {
	Latest(symbol Symbol) (PriceSample, bool)
	Status(symbol Symbol) FeedStatus
}
