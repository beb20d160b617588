package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kryptoscreener/upordown/internal/domain"
)

func TestParseSample(t *testing.T) {
	raw := []byte(`{"e":"trade","E":1717243200123,"s":"BTCUSDT","p":"65432.10000000","T":1717243200120}`)

	sample, ok := parseSample("BTC", raw)
	require.True(t, ok)
	assert.Equal(t, domain.Symbol("BTC"), sample.Symbol)
	assert.Equal(t, "65432.1", sample.Price.String())
	assert.Equal(t, time.UnixMilli(1717243200120), sample.ObservedAt)
}

func TestParseSampleTimestampFallsBackToEventTime(t *testing.T) {
	raw := []byte(`{"e":"trade","E":1717243200123,"p":"1.23"}`)

	sample, ok := parseSample("XRP", raw)
	require.True(t, ok)
	assert.Equal(t, time.UnixMilli(1717243200123), sample.ObservedAt)
}

func TestParseSampleDrops(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `garbage`},
		{"different event type", `{"e":"aggTrade","p":"100.0","T":1}`},
		{"price not numeric", `{"e":"trade","p":"abc","T":1}`},
		{"price empty", `{"e":"trade","p":"","T":1}`},
		{"price zero", `{"e":"trade","p":"0","T":1}`},
		{"price negative", `{"e":"trade","p":"-5.0","T":1}`},
		{"price missing", `{"e":"trade","T":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := parseSample("BTC", []byte(tt.raw))
			assert.False(t, ok)
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	base := time.Second
	cap := 30 * time.Second

	// Deterministic floor: delay is at least min(base*2^attempt, cap).
	for attempt := 0; attempt < 12; attempt++ {
		floor := base
		for i := 0; i < attempt && floor < cap; i++ {
			floor *= 2
		}
		if floor > cap {
			floor = cap
		}

		for i := 0; i < 20; i++ {
			delay := backoffDelay(attempt, base, cap)
			assert.GreaterOrEqual(t, delay, floor, "attempt %d", attempt)
			assert.LessOrEqual(t, delay, cap, "attempt %d", attempt)
		}
	}
}

func TestBackoffDelayNeverExceedsCap(t *testing.T) {
	for i := 0; i < 100; i++ {
		delay := backoffDelay(50, time.Second, 30*time.Second)
		assert.Equal(t, 30*time.Second, delay)
	}
}
