package domain

import "strings"

// Symbol identifies a tradable asset offered by the game, e.g. "BTC".
type Symbol string

// SymbolInfo is immutable reference data for one asset: the Binance trading
// pair used by the price feed, the CoinGecko id used by the dashboard, and a
// display name.
type SymbolInfo struct {
	Symbol      Symbol `json:"symbol"`
	Pair        string `json:"pair"`
	CoinGeckoID string `json:"coingecko_id"`
	Name        string `json:"name"`
}

// symbolRegistry lists the assets the game supports. Mirrors the coin
// selection offered by the dashboard front-end.
var symbolRegistry = []SymbolInfo{
	{Symbol: "BTC", Pair: "BTCUSDT", CoinGeckoID: "bitcoin", Name: "Bitcoin"},
	{Symbol: "ETH", Pair: "ETHUSDT", CoinGeckoID: "ethereum", Name: "Ethereum"},
	{Symbol: "SOL", Pair: "SOLUSDT", CoinGeckoID: "solana", Name: "Solana"},
	{Symbol: "XRP", Pair: "XRPUSDT", CoinGeckoID: "ripple", Name: "Ripple"},
	{Symbol: "POL", Pair: "MATICUSDT", CoinGeckoID: "matic-network", Name: "Polygon"},
}

// Symbols returns the supported assets in presentation order.
func Symbols() []SymbolInfo {
	out := make([]SymbolInfo, len(symbolRegistry))
	copy(out, symbolRegistry)
	return out
}

// LookupSymbol resolves a case-insensitive asset identifier to its reference
// data. It returns ErrUnknownSymbol for assets the game does not offer.
func LookupSymbol(s string) (SymbolInfo, error) {
	up := Symbol(strings.ToUpper(strings.TrimSpace(s)))
	for _, info := range symbolRegistry {
		if info.Symbol == up {
			return info, nil
		}
	}
	return SymbolInfo{}, ErrUnknownSymbol
}

// StreamName returns the lowercase Binance stream name for the symbol's
// trade stream, e.g. "btcusdt@trade".
func (si SymbolInfo) StreamName() string {
	return strings.ToLower(si.Pair) + "@trade"
}
