// Package jupiter is a client for a Jupiter-compatible swap aggregator
// (quote and swap-transaction endpoints).
package jupiter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

// DefaultBaseURL is the public Jupiter swap API root.
const DefaultBaseURL = "https://quote-api.jup.ag/v6"

// noRouteCodes are errorCode values meaning the pair cannot be routed.
var noRouteCodes = map[string]bool{
	"COULD_NOT_FIND_ANY_ROUTE": true,
	"NO_ROUTES_FOUND":          true,
	"TOKEN_NOT_TRADABLE":       true,
	"ROUTE_NOT_FOUND":          true,
}

// Config configures the client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implements domain.SwapAggregator.
type Client struct {
	http *resty.Client
}

// New creates a Client.
func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		c.SetHeader("x-api-key", cfg.APIKey)
	}
	return &Client{http: c}
}

type quoteJSON struct {
	InputMint            string `json:"inputMint"`
	InAmount             string `json:"inAmount"`
	OutputMint           string `json:"outputMint"`
	OutAmount            string `json:"outAmount"`
	OtherAmountThreshold string `json:"otherAmountThreshold"`
	SlippageBps          int    `json:"slippageBps"`
	PriceImpactPct       string `json:"priceImpactPct"`
	PlatformFee          *struct {
		Amount string `json:"amount"`
		FeeBps int    `json:"feeBps"`
	} `json:"platformFee"`
}

type apiError struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// Quote asks for the best route for req. It returns domain.ErrNoRoute when
// the aggregator reports the pair as unroutable.
func (c *Client) Quote(ctx context.Context, req domain.QuoteRequest) (domain.SwapQuote, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"inputMint":   req.InputMint,
			"outputMint":  req.OutputMint,
			"amount":      strconv.FormatUint(req.Amount, 10),
			"slippageBps": strconv.Itoa(req.SlippageBps),
		}).
		Get("/quote")
	if err != nil {
		return domain.SwapQuote{}, fmt.Errorf("jupiter: quote: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		var apiErr apiError
		_ = json.Unmarshal(resp.Body(), &apiErr)
		if noRouteCodes[apiErr.ErrorCode] {
			return domain.SwapQuote{}, fmt.Errorf("jupiter: quote %s->%s: %s: %w",
				req.InputMint, req.OutputMint, apiErr.ErrorCode, domain.ErrNoRoute)
		}
		return domain.SwapQuote{}, fmt.Errorf("jupiter: quote: status %d: %s", resp.StatusCode(), apiErr.Error)
	}

	return parseQuote(resp.Body())
}

func parseQuote(raw []byte) (domain.SwapQuote, error) {
	var q quoteJSON
	if err := json.Unmarshal(raw, &q); err != nil {
		return domain.SwapQuote{}, fmt.Errorf("jupiter: decode quote: %w", err)
	}
	in, err := strconv.ParseUint(q.InAmount, 10, 64)
	if err != nil {
		return domain.SwapQuote{}, fmt.Errorf("jupiter: quote inAmount %q: %w", q.InAmount, err)
	}
	out, err := strconv.ParseUint(q.OutAmount, 10, 64)
	if err != nil {
		return domain.SwapQuote{}, fmt.Errorf("jupiter: quote outAmount %q: %w", q.OutAmount, err)
	}
	if out == 0 {
		return domain.SwapQuote{}, fmt.Errorf("jupiter: quote has zero output: %w", domain.ErrNoRoute)
	}
	minOut, _ := strconv.ParseUint(q.OtherAmountThreshold, 10, 64)
	impact, _ := strconv.ParseFloat(q.PriceImpactPct, 64)

	var platformFee uint64
	if q.PlatformFee != nil {
		platformFee, _ = strconv.ParseUint(q.PlatformFee.Amount, 10, 64)
	}

	return domain.SwapQuote{
		InputMint:      q.InputMint,
		OutputMint:     q.OutputMint,
		InAmount:       in,
		OutAmount:      out,
		MinOutAmount:   minOut,
		SlippageBps:    q.SlippageBps,
		PriceImpactPct: impact * 100,
		PlatformFee:    platformFee,
		Raw:            json.RawMessage(raw),
	}, nil
}

type swapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports uint64          `json:"prioritizationFeeLamports"`
}

type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// BuildSwap returns the unsigned serialized transaction for quote, paying
// priorityFeeLamports on top of the base fee.
func (c *Client) BuildSwap(ctx context.Context, quote domain.SwapQuote, signer string, priorityFeeLamports uint64) ([]byte, error) {
	if len(quote.Raw) == 0 {
		return nil, fmt.Errorf("jupiter: build swap: quote has no raw payload")
	}

	var body swapResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(swapRequest{
			QuoteResponse:             quote.Raw,
			UserPublicKey:             signer,
			WrapAndUnwrapSol:          true,
			DynamicComputeUnitLimit:   true,
			PrioritizationFeeLamports: priorityFeeLamports,
		}).
		SetResult(&body).
		Post("/swap")
	if err != nil {
		return nil, fmt.Errorf("jupiter: build swap: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("jupiter: build swap: status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	tx, err := base64.StdEncoding.DecodeString(body.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("jupiter: decode swap transaction: %w", err)
	}
	if len(tx) == 0 {
		return nil, fmt.Errorf("jupiter: build swap: empty transaction")
	}
	return tx, nil
}

var _ domain.SwapAggregator = (*Client)(nil)
