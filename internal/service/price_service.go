package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/metrics"
)

// PriceConfig tunes the price fetcher.
type PriceConfig struct {
	NativeMint     string
	TTL            time.Duration
	FetchTimeout   time.Duration
	MaxConcurrency int
	Source         string // label stored on quotes, e.g. "dexscreener"
}

var errNoPairs = errors.New("no usable pairs")

// PriceService resolves token prices in the native asset and USD through a
// price-discovery service, caching each quote for a fixed TTL. It is the
// only writer of the quote cache.
type PriceService struct {
	source  domain.PriceDiscovery
	cache   domain.QuoteCache
	cfg     PriceConfig
	flight  singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewPriceService creates a PriceService.
func NewPriceService(source domain.PriceDiscovery, cache domain.QuoteCache, cfg PriceConfig, logger *slog.Logger) *PriceService {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 8
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	if cfg.Source == "" {
		cfg.Source = "dexscreener"
	}
	return &PriceService{
		source: source,
		cache:  cache,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "prices")),
		now:    time.Now,
	}
}

// SetMetrics attaches Prometheus collectors.
func (s *PriceService) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// GetPrice returns the current quote for tokenMint. The bool is false when
// no price could be determined; that is an expected outcome, not an error.
func (s *PriceService) GetPrice(ctx context.Context, tokenMint string) (domain.PriceQuote, bool) {
	if q, ok := s.cache.Get(ctx, tokenMint); ok {
		s.metrics.PriceLookup("hit")
		return q, true
	}
	s.metrics.PriceLookup("miss")

	v, err, _ := s.flight.Do(tokenMint, func() (any, error) {
		// Another flight may have filled the cache while this one waited.
		if q, ok := s.cache.Get(ctx, tokenMint); ok {
			return q, nil
		}
		return s.fetch(ctx, tokenMint)
	})
	if err != nil {
		s.metrics.PriceLookup("unavailable")
		s.logger.DebugContext(ctx, "price unavailable",
			slog.String("token_mint", tokenMint),
			slog.String("error", err.Error()),
		)
		return domain.PriceQuote{}, false
	}
	return v.(domain.PriceQuote), true
}

// GetPrices looks up several mints in parallel. Mints without a price are
// absent from the result; one failure never fails the batch.
func (s *PriceService) GetPrices(ctx context.Context, tokenMints []string) map[string]domain.PriceQuote {
	out := make(map[string]domain.PriceQuote, len(tokenMints))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrency)
	seen := make(map[string]bool, len(tokenMints))
	for _, mint := range tokenMints {
		if mint == "" || seen[mint] {
			continue
		}
		seen[mint] = true
		g.Go(func() error {
			if q, ok := s.GetPrice(ctx, mint); ok {
				mu.Lock()
				out[mint] = q
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *PriceService) fetch(ctx context.Context, tokenMint string) (domain.PriceQuote, error) {
	fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	start := s.now()
	pairs, err := s.source.PairsForToken(fctx, tokenMint)
	cancel()
	s.metrics.PriceFetch(s.now().Sub(start))
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("price_service: pairs for %s: %w", tokenMint, err)
	}

	q, err := s.quoteFromPairs(ctx, tokenMint, pairs)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	if err := s.cache.Set(ctx, q, s.cfg.TTL); err != nil {
		s.logger.WarnContext(ctx, "cache price failed",
			slog.String("token_mint", tokenMint),
			slog.String("error", err.Error()),
		)
	}
	return q, nil
}

// quoteFromPairs prefers the deepest pair against the native asset, which
// prices the token directly in native units. Otherwise it takes the deepest
// pair overall and derives the native price through USD.
func (s *PriceService) quoteFromPairs(ctx context.Context, tokenMint string, pairs []domain.Pair) (domain.PriceQuote, error) {
	var nativePair, bestPair *domain.Pair
	for i := range pairs {
		p := &pairs[i]
		if !p.PriceNative.IsPositive() {
			continue
		}
		if p.BaseToken.Address != tokenMint && p.QuoteToken.Address != tokenMint {
			continue
		}
		if bestPair == nil || p.LiquidityUSD > bestPair.LiquidityUSD {
			bestPair = p
		}
		if tokenMint != s.cfg.NativeMint && counterpart(p, tokenMint) == s.cfg.NativeMint {
			if nativePair == nil || p.LiquidityUSD > nativePair.LiquidityUSD {
				nativePair = p
			}
		}
	}
	if bestPair == nil {
		return domain.PriceQuote{}, fmt.Errorf("price_service: %s: %w", tokenMint, errNoPairs)
	}

	q := domain.PriceQuote{
		TokenMint: tokenMint,
		FetchedAt: s.now().UTC(),
	}

	switch {
	case nativePair != nil:
		q.PriceNative, q.PriceUSD = pricesFromNativePair(nativePair, tokenMint)
		q.LiquidityUSD = nativePair.LiquidityUSD
		q.Source = s.sourceLabel(nativePair)

	case tokenMint == s.cfg.NativeMint:
		q.PriceNative = decimal.NewFromInt(1)
		q.PriceUSD = usdPrice(bestPair, tokenMint)
		q.LiquidityUSD = bestPair.LiquidityUSD
		q.Source = s.sourceLabel(bestPair)

	default:
		usd := usdPrice(bestPair, tokenMint)
		native, ok := s.GetPrice(ctx, s.cfg.NativeMint)
		if !ok || !native.PriceUSD.IsPositive() || !usd.IsPositive() {
			return domain.PriceQuote{}, fmt.Errorf("price_service: %s has no native pair and no USD cross rate", tokenMint)
		}
		q.PriceNative = usd.Div(native.PriceUSD)
		q.PriceUSD = usd
		q.LiquidityUSD = bestPair.LiquidityUSD
		q.Source = s.sourceLabel(bestPair)
	}

	if !q.PriceNative.IsPositive() {
		return domain.PriceQuote{}, fmt.Errorf("price_service: %s: non-positive native price", tokenMint)
	}
	return q, nil
}

func (s *PriceService) sourceLabel(p *domain.Pair) string {
	if p.DEX == "" {
		return s.cfg.Source
	}
	return s.cfg.Source + ":" + p.DEX
}

func counterpart(p *domain.Pair, tokenMint string) string {
	if p.BaseToken.Address == tokenMint {
		return p.QuoteToken.Address
	}
	return p.BaseToken.Address
}

// pricesFromNativePair reads the token price off a pair whose other side is
// the native asset. Pair prices are base-in-quote, so a token on the quote
// side is inverted.
func pricesFromNativePair(p *domain.Pair, tokenMint string) (native, usd decimal.Decimal) {
	if p.BaseToken.Address == tokenMint {
		return p.PriceNative, p.PriceUSD
	}
	return decimal.NewFromInt(1).Div(p.PriceNative), p.PriceUSD.Div(p.PriceNative)
}

// usdPrice returns the USD price of tokenMint from any pair containing it.
func usdPrice(p *domain.Pair, tokenMint string) decimal.Decimal {
	if p.BaseToken.Address == tokenMint {
		return p.PriceUSD
	}
	return p.PriceUSD.Div(p.PriceNative)
}
