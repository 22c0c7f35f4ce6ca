// Package solana talks to a Solana JSON-RPC node. Transport and JSON-RPC
// framing come from go-ethereum's generic rpc client.
package solana

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

// NativeMint is the wrapped-SOL mint used by aggregators for the native asset.
const NativeMint = "So11111111111111111111111111111111111111112"

// NativeDecimals is the number of lamports per SOL as a power of ten.
const NativeDecimals = 9

// Config configures the RPC client.
type Config struct {
	URL          string
	Commitment   string // "confirmed" when empty
	PollInterval time.Duration
	Timeout      time.Duration // per HTTP request
}

// Client implements domain.ChainRPC.
type Client struct {
	rpc        *rpc.Client
	commitment string
	poll       time.Duration

	decimalsMu sync.RWMutex
	decimals   map[string]int32
}

// Dial creates a Client for cfg.URL. HTTP endpoints do not connect eagerly.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rc, err := rpc.DialOptions(ctx, cfg.URL, rpc.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return nil, fmt.Errorf("solana: dial %s: %w", cfg.URL, err)
	}
	commitment := cfg.Commitment
	if commitment == "" {
		commitment = "confirmed"
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	return &Client{
		rpc:        rc,
		commitment: commitment,
		poll:       poll,
		decimals:   map[string]int32{NativeMint: NativeDecimals},
	}, nil
}

// Close releases the underlying transport.
func (c *Client) Close() {
	c.rpc.Close()
}

// insufficientFundsHints are substrings of node errors that mean the payer
// cannot cover the transaction.
var insufficientFundsHints = []string{
	"insufficient lamports",
	"insufficient funds",
	"Attempt to debit an account but found no record of a prior credit",
}

// Submit sends a signed transaction and returns its signature. A node
// rejection for lack of funds wraps domain.ErrInsufficientBalance.
func (c *Client) Submit(ctx context.Context, signedTx []byte) (string, error) {
	var sig string
	err := c.rpc.CallContext(ctx, &sig, "sendTransaction",
		base64.StdEncoding.EncodeToString(signedTx),
		map[string]any{
			"encoding":            "base64",
			"preflightCommitment": c.commitment,
			"maxRetries":          0,
		},
	)
	if err != nil {
		for _, hint := range insufficientFundsHints {
			if strings.Contains(err.Error(), hint) {
				return "", fmt.Errorf("solana: send transaction: %v: %w", err, domain.ErrInsufficientBalance)
			}
		}
		return "", fmt.Errorf("solana: send transaction: %w", err)
	}
	return sig, nil
}

type signatureStatus struct {
	Slot               uint64 `json:"slot"`
	Err                any    `json:"err"`
	ConfirmationStatus string `json:"confirmationStatus"`
}

type statusesResult struct {
	Value []*signatureStatus `json:"value"`
}

// reached reports whether status satisfies the client's commitment level.
func (c *Client) reached(status string) bool {
	switch c.commitment {
	case "finalized":
		return status == "finalized"
	case "processed":
		return status != ""
	default:
		return status == "confirmed" || status == "finalized"
	}
}

// Confirm polls getSignatureStatuses until signature reaches the configured
// commitment. It returns domain.ErrConfirmationTimeout when timeout elapses
// first. A transaction that landed with an error is returned with
// Confirmed true and Err set.
func (c *Client) Confirm(ctx context.Context, signature string, timeout time.Duration) (domain.TxStatus, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		var res statusesResult
		err := c.rpc.CallContext(waitCtx, &res, "getSignatureStatuses",
			[]string{signature},
			map[string]any{"searchTransactionHistory": false},
		)
		if err == nil && len(res.Value) > 0 && res.Value[0] != nil {
			st := res.Value[0]
			if st.Err != nil {
				return domain.TxStatus{
					Signature: signature,
					Slot:      st.Slot,
					Confirmed: true,
					Err:       fmt.Sprint(st.Err),
				}, nil
			}
			if c.reached(st.ConfirmationStatus) {
				return domain.TxStatus{Signature: signature, Slot: st.Slot, Confirmed: true}, nil
			}
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return domain.TxStatus{}, ctx.Err()
			}
			return domain.TxStatus{Signature: signature}, fmt.Errorf("solana: confirm %s after %s: %w",
				signature, timeout, domain.ErrConfirmationTimeout)
		case <-ticker.C:
		}
	}
}

type balanceResult struct {
	Value uint64 `json:"value"`
}

// GetBalance returns the lamport balance of address.
func (c *Client) GetBalance(ctx context.Context, address string) (uint64, error) {
	var res balanceResult
	if err := c.rpc.CallContext(ctx, &res, "getBalance", address,
		map[string]any{"commitment": c.commitment}); err != nil {
		return 0, fmt.Errorf("solana: get balance %s: %w", address, err)
	}
	return res.Value, nil
}

type supplyResult struct {
	Value struct {
		Amount   string `json:"amount"`
		Decimals int32  `json:"decimals"`
	} `json:"value"`
}

// TokenDecimals returns the mint's decimals, cached after the first lookup.
func (c *Client) TokenDecimals(ctx context.Context, mint string) (int32, error) {
	c.decimalsMu.RLock()
	d, ok := c.decimals[mint]
	c.decimalsMu.RUnlock()
	if ok {
		return d, nil
	}

	var res supplyResult
	if err := c.rpc.CallContext(ctx, &res, "getTokenSupply", mint); err != nil {
		return 0, fmt.Errorf("solana: get token supply %s: %w", mint, err)
	}

	c.decimalsMu.Lock()
	c.decimals[mint] = res.Value.Decimals
	c.decimalsMu.Unlock()
	return res.Value.Decimals, nil
}

type uiTokenAmount struct {
	Amount string `json:"amount"`
}

type tokenBalance struct {
	AccountIndex  int           `json:"accountIndex"`
	Mint          string        `json:"mint"`
	Owner         string        `json:"owner"`
	UITokenAmount uiTokenAmount `json:"uiTokenAmount"`
}

type transactionResult struct {
	Meta *struct {
		Fee                  uint64         `json:"fee"`
		PreBalances          []uint64       `json:"preBalances"`
		PostBalances         []uint64       `json:"postBalances"`
		PreTokenBalances     []tokenBalance `json:"preTokenBalances"`
		PostTokenBalances    []tokenBalance `json:"postTokenBalances"`
		ComputeUnitsConsumed uint64         `json:"computeUnitsConsumed"`
	} `json:"meta"`
}

// errNoMeta is returned while the node has not indexed the transaction yet.
var errNoMeta = errors.New("transaction metadata not available")

// TransactionMeta fetches fee and balance deltas of a confirmed transaction.
func (c *Client) TransactionMeta(ctx context.Context, signature string) (domain.TxMeta, error) {
	var res *transactionResult
	err := c.rpc.CallContext(ctx, &res, "getTransaction", signature, map[string]any{
		"encoding":                       "json",
		"commitment":                     c.commitment,
		"maxSupportedTransactionVersion": 0,
	})
	if err != nil {
		return domain.TxMeta{}, fmt.Errorf("solana: get transaction %s: %w", signature, err)
	}
	if res == nil || res.Meta == nil {
		return domain.TxMeta{}, fmt.Errorf("solana: get transaction %s: %w", signature, errNoMeta)
	}

	m := res.Meta
	meta := domain.TxMeta{FeeLamports: m.Fee, ComputeUnits: m.ComputeUnitsConsumed}
	if len(m.PreBalances) > 0 && len(m.PostBalances) > 0 {
		meta.PreLamports = m.PreBalances[0]
		meta.PostLamports = m.PostBalances[0]
	}
	meta.TokenBalances = mergeTokenBalances(m.PreTokenBalances, m.PostTokenBalances)
	return meta, nil
}

// mergeTokenBalances pairs pre and post entries by account index. Accounts
// created or closed inside the transaction appear on one side only.
func mergeTokenBalances(pre, post []tokenBalance) []domain.TokenBalanceChange {
	byIndex := make(map[int]*domain.TokenBalanceChange)
	var order []int
	get := func(b tokenBalance) *domain.TokenBalanceChange {
		ch, ok := byIndex[b.AccountIndex]
		if !ok {
			ch = &domain.TokenBalanceChange{Owner: b.Owner, Mint: b.Mint}
			byIndex[b.AccountIndex] = ch
			order = append(order, b.AccountIndex)
		}
		return ch
	}
	for _, b := range pre {
		v, _ := strconv.ParseUint(b.UITokenAmount.Amount, 10, 64)
		get(b).Pre = v
	}
	for _, b := range post {
		v, _ := strconv.ParseUint(b.UITokenAmount.Amount, 10, 64)
		get(b).Post = v
	}

	out := make([]domain.TokenBalanceChange, 0, len(order))
	for _, idx := range order {
		out = append(out, *byIndex[idx])
	}
	return out
}

var _ domain.ChainRPC = (*Client)(nil)
