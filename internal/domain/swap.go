package domain

import (
	"context"
	"encoding/json"
	"time"
)

// QuoteRequest asks the aggregator for a route. Amount is in raw base units
// of InputMint.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64
	SlippageBps int
}

// SwapQuote is a route returned by the aggregator. Raw holds the original
// payload, which must be echoed back when building the transaction.
type SwapQuote struct {
	InputMint      string
	OutputMint     string
	InAmount       uint64
	OutAmount      uint64
	MinOutAmount   uint64
	SlippageBps    int
	PriceImpactPct float64
	PlatformFee    uint64 // in OutputMint base units
	Raw            json.RawMessage
}

// SwapAggregator finds routes and builds unsigned swap transactions.
type SwapAggregator interface {
	// Quote returns ErrNoRoute when no route exists for the pair.
	Quote(ctx context.Context, req QuoteRequest) (SwapQuote, error)
	BuildSwap(ctx context.Context, quote SwapQuote, signer string, priorityFeeLamports uint64) ([]byte, error)
}

// TxStatus is the confirmation outcome of a submitted transaction.
type TxStatus struct {
	Signature string
	Slot      uint64
	Confirmed bool
	Err       string // on-chain failure, empty on success
}

// TokenBalanceChange is one owner/mint balance delta taken from tx metadata.
type TokenBalanceChange struct {
	Owner string
	Mint  string
	Pre   uint64
	Post  uint64
}

// TxMeta carries the fee and balance deltas of a confirmed transaction.
type TxMeta struct {
	FeeLamports   uint64
	PreLamports   uint64 // fee payer
	PostLamports  uint64 // fee payer
	TokenBalances []TokenBalanceChange
	ComputeUnits  uint64
}

// ChainRPC is the subset of the chain's JSON-RPC API the executor needs.
type ChainRPC interface {
	Submit(ctx context.Context, signedTx []byte) (string, error)
	// Confirm polls until the signature is confirmed or timeout elapses,
	// returning ErrConfirmationTimeout in the latter case.
	Confirm(ctx context.Context, signature string, timeout time.Duration) (TxStatus, error)
	GetBalance(ctx context.Context, address string) (uint64, error)
	TokenDecimals(ctx context.Context, mint string) (int32, error)
	TransactionMeta(ctx context.Context, signature string) (TxMeta, error)
}

// TxSigner signs serialized transactions for one wallet.
type TxSigner interface {
	PublicKey() string
	SignTransaction(unsigned []byte) ([]byte, error)
}
