package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote is a token price in the native asset and in USD.
type PriceQuote struct {
	TokenMint    string          `json:"token_mint"`
	PriceNative  decimal.Decimal `json:"price_native"`
	PriceUSD     decimal.Decimal `json:"price_usd"`
	LiquidityUSD float64         `json:"liquidity_usd"`
	FetchedAt    time.Time       `json:"fetched_at"`
	Source       string          `json:"source"`
}

// TokenRef identifies one side of a trading pair.
type TokenRef struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}

// Pair is a DEX trading pair as reported by a price-discovery service.
// PriceNative is the base token priced in quote token units.
type Pair struct {
	PairAddress  string
	DEX          string
	BaseToken    TokenRef
	QuoteToken   TokenRef
	PriceNative  decimal.Decimal
	PriceUSD     decimal.Decimal
	LiquidityUSD float64
}

// PriceDiscovery lists the DEX pairs that trade a token.
type PriceDiscovery interface {
	PairsForToken(ctx context.Context, tokenMint string) ([]Pair, error)
}
