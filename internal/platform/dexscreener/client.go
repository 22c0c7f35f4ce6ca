// Package dexscreener is a client for the DexScreener token pairs API.
package dexscreener

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

// DefaultBaseURL is the public DexScreener API root.
const DefaultBaseURL = "https://api.dexscreener.com"

// Config configures the client.
type Config struct {
	BaseURL string
	ChainID string // e.g. "solana"; empty keeps pairs from every chain
	Timeout time.Duration
}

// Client fetches trading pairs for a token.
type Client struct {
	http    *resty.Client
	chainID string
}

// New creates a Client.
func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: c, chainID: cfg.ChainID}
}

type tokenRef struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}

type pairJSON struct {
	ChainID     string   `json:"chainId"`
	DexID       string   `json:"dexId"`
	PairAddress string   `json:"pairAddress"`
	BaseToken   tokenRef `json:"baseToken"`
	QuoteToken  tokenRef `json:"quoteToken"`
	PriceNative string   `json:"priceNative"`
	PriceUSD    string   `json:"priceUsd"`
	Liquidity   *struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
}

type tokensResponse struct {
	Pairs []pairJSON `json:"pairs"`
}

// PairsForToken returns every pair that trades tokenMint. Pairs with an
// unparseable price are skipped; an empty slice is not an error.
func (c *Client) PairsForToken(ctx context.Context, tokenMint string) ([]domain.Pair, error) {
	var body tokensResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("mint", tokenMint).
		SetResult(&body).
		Get("/latest/dex/tokens/{mint}")
	if err != nil {
		return nil, fmt.Errorf("dexscreener: pairs for %s: %w", tokenMint, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("dexscreener: pairs for %s: status %d", tokenMint, resp.StatusCode())
	}

	pairs := make([]domain.Pair, 0, len(body.Pairs))
	for _, p := range body.Pairs {
		if c.chainID != "" && p.ChainID != c.chainID {
			continue
		}
		native, err := decimal.NewFromString(p.PriceNative)
		if err != nil {
			continue
		}
		usd, err := decimal.NewFromString(p.PriceUSD)
		if err != nil {
			usd = decimal.Zero
		}
		var liq float64
		if p.Liquidity != nil {
			liq = p.Liquidity.USD
		}
		pairs = append(pairs, domain.Pair{
			PairAddress:  p.PairAddress,
			DEX:          p.DexID,
			BaseToken:    domain.TokenRef{Address: p.BaseToken.Address, Symbol: p.BaseToken.Symbol},
			QuoteToken:   domain.TokenRef{Address: p.QuoteToken.Address, Symbol: p.QuoteToken.Symbol},
			PriceNative:  native,
			PriceUSD:     usd,
			LiquidityUSD: liq,
		})
	}
	return pairs, nil
}

var _ domain.PriceDiscovery = (*Client)(nil)
