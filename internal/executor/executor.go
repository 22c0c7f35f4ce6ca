// Package executor turns a BUY or SELL decision into a confirmed swap. Each
// logical request runs a bounded retry state machine that re-quotes and
// escalates the priority fee between attempts.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/metrics"
)

// Config holds the execution limits and per-call timeouts.
type Config struct {
	NativeMint         string
	SlippageBps        int
	MaxAttempts        int
	FeeReserveLamports uint64 // kept aside for rent and base fees in the pre-flight check
	BaseFeeLamports    uint64 // network fee assumed when tx metadata is unavailable
	ProbeLamports      uint64 // quote size used by CanQuote

	QuoteTimeout   time.Duration
	SubmitTimeout  time.Duration
	ConfirmTimeout time.Duration
	RecheckTimeout time.Duration // late-landing check after a confirmation timeout
	RPCTimeout     time.Duration // balance, decimals and metadata lookups
}

// DefaultConfig returns conservative mainnet defaults.
func DefaultConfig(nativeMint string) Config {
	return Config{
		NativeMint:         nativeMint,
		SlippageBps:        100,
		MaxAttempts:        3,
		FeeReserveLamports: 5_000_000,
		BaseFeeLamports:    5_000,
		ProbeLamports:      1_000_000,
		QuoteTimeout:       5 * time.Second,
		SubmitTimeout:      10 * time.Second,
		ConfirmTimeout:     30 * time.Second,
		RecheckTimeout:     2 * time.Second,
		RPCTimeout:         5 * time.Second,
	}
}

// AttemptReport describes one pass through the Attempting state. Err is nil
// for the successful attempt.
type AttemptReport struct {
	Side        domain.Side
	TokenMint   string
	Attempt     int
	PriorityFee uint64
	Signature   string
	Kind        error
	Err         error
}

// Executor implements the trading executor contract.
type Executor struct {
	swaps   domain.SwapAggregator
	chain   domain.ChainRPC
	cfg     Config
	fees    FeePolicy
	backoff Backoff

	metrics   *metrics.Metrics
	onAttempt func(AttemptReport)
	now       func() time.Time
	sleep     func(context.Context, time.Duration) error
}

// New creates an Executor using fees for escalation and backoff between
// attempts.
func New(swaps domain.SwapAggregator, chain domain.ChainRPC, cfg Config, fees FeePolicy, backoff Backoff) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if backoff == nil {
		backoff = NoBackoff
	}
	return &Executor{
		swaps:   swaps,
		chain:   chain,
		cfg:     cfg,
		fees:    fees,
		backoff: backoff,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// SetMetrics attaches Prometheus collectors.
func (e *Executor) SetMetrics(m *metrics.Metrics) { e.metrics = m }

// SetAttemptHook registers fn to be called after every attempt.
func (e *Executor) SetAttemptHook(fn func(AttemptReport)) { e.onAttempt = fn }

// MaxAttempts returns the configured attempt cap.
func (e *Executor) MaxAttempts() int { return e.cfg.MaxAttempts }

// ExecuteBuy swaps nativeAmount of the native asset into tokenMint.
func (e *Executor) ExecuteBuy(ctx context.Context, signer domain.TxSigner, tokenMint string, nativeAmount decimal.Decimal) (domain.ExecutionResult, error) {
	return e.execute(ctx, signer, trade{
		side:       domain.SideBuy,
		tokenMint:  tokenMint,
		inputMint:  e.cfg.NativeMint,
		outputMint: tokenMint,
		amount:     nativeAmount,
	})
}

// ExecuteSell swaps tokenQuantity of tokenMint into the native asset.
func (e *Executor) ExecuteSell(ctx context.Context, signer domain.TxSigner, tokenMint string, tokenQuantity decimal.Decimal) (domain.ExecutionResult, error) {
	return e.execute(ctx, signer, trade{
		side:       domain.SideSell,
		tokenMint:  tokenMint,
		inputMint:  tokenMint,
		outputMint: e.cfg.NativeMint,
		amount:     tokenQuantity,
	})
}

// CanQuote reports whether the aggregator can route a small native-to-token
// swap right now.
func (e *Executor) CanQuote(ctx context.Context, tokenMint string) bool {
	qctx, cancel := context.WithTimeout(ctx, e.cfg.QuoteTimeout)
	defer cancel()
	_, err := e.swaps.Quote(qctx, domain.QuoteRequest{
		InputMint:   e.cfg.NativeMint,
		OutputMint:  tokenMint,
		Amount:      e.cfg.ProbeLamports,
		SlippageBps: e.cfg.SlippageBps,
	})
	return err == nil
}

// GetBalance returns the native balance of address in whole units.
func (e *Executor) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	rctx, cancel := context.WithTimeout(ctx, e.cfg.RPCTimeout)
	defer cancel()
	lamports, err := e.chain.GetBalance(rctx, address)
	if err != nil {
		return decimal.Zero, fmt.Errorf("executor: get balance: %w", err)
	}
	return fromRaw(lamports, nativeDecimals), nil
}

const nativeDecimals = 9

// trade is one logical swap request.
type trade struct {
	side       domain.Side
	tokenMint  string
	inputMint  string
	outputMint string
	amount     decimal.Decimal
}

// state is a node of the per-request retry machine.
type state int

const (
	stateAttempting state = iota
	stateEscalating
	stateSucceeded
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateAttempting:
		return "attempting"
	case stateEscalating:
		return "escalating"
	case stateSucceeded:
		return "succeeded"
	case stateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// pending is a submitted transaction whose confirmation timed out.
type pending struct {
	signature string
	reverted  bool
	fee       uint64
	quote     domain.SwapQuote
	decimals  legDecimals
	rechecked bool
}

func (e *Executor) execute(ctx context.Context, signer domain.TxSigner, t trade) (domain.ExecutionResult, error) {
	if !t.amount.IsPositive() {
		return domain.ExecutionResult{}, fmt.Errorf("executor: %w: %s", domain.ErrInvalidAmount, t.amount)
	}

	start := e.now()
	fee := e.fees.Initial()
	attempt := 1

	var (
		result   domain.ExecutionResult
		lastKind error
		lastErr  error
		inflight *pending
	)

	st := stateAttempting
	for {
		switch st {
		case stateAttempting:
			res, p, kind, err := e.attempt(ctx, signer, t, fee)
			e.report(AttemptReport{
				Side: t.side, TokenMint: t.tokenMint, Attempt: attempt,
				PriorityFee: fee, Signature: sigOf(p, res), Kind: kind, Err: err,
			})
			if err == nil {
				result = res
				st = stateSucceeded
				continue
			}
			lastKind, lastErr, inflight = kind, err, p
			if !domain.Retryable(kind) || attempt >= e.cfg.MaxAttempts || ctx.Err() != nil {
				st = stateFailed
				continue
			}
			st = stateEscalating

		case stateEscalating:
			if inflight != nil {
				if res, ok := e.recheck(ctx, signer, t, inflight); ok {
					result = res
					st = stateSucceeded
					continue
				}
			}
			if err := e.sleep(ctx, e.backoff(attempt)); err != nil {
				lastErr = errors.Join(lastErr, err)
				st = stateFailed
				continue
			}
			fee = e.fees.Next(fee)
			attempt++
			st = stateAttempting

		case stateSucceeded:
			elapsed := e.now().Sub(start)
			result.Attempt = attempt
			result.ExecutionMs = elapsed.Milliseconds()
			e.metrics.Execution(string(t.side), "success", attempt, elapsed)
			return result, nil

		case stateFailed:
			if inflight != nil {
				// The last transaction may still land. Look once more even if
				// the caller has gone away; the recheck has its own timeout.
				if res, ok := e.recheck(context.WithoutCancel(ctx), signer, t, inflight); ok {
					result = res
					st = stateSucceeded
					continue
				}
			}
			e.metrics.Execution(string(t.side), outcomeLabel(lastKind), attempt, e.now().Sub(start))
			execErr := &domain.ExecutionError{Kind: lastKind, Attempts: attempt, Err: lastErr}
			if inflight != nil {
				execErr.Signature = inflight.signature
			}
			return domain.ExecutionResult{}, execErr
		}
	}
}

// recheck looks once more for a transaction that timed out, in case it
// landed while the machine was deciding what to do next. Each pending
// transaction is rechecked at most once.
func (e *Executor) recheck(ctx context.Context, signer domain.TxSigner, t trade, p *pending) (domain.ExecutionResult, bool) {
	if e.cfg.RecheckTimeout <= 0 || p.reverted || p.rechecked {
		return domain.ExecutionResult{}, false
	}
	p.rechecked = true
	status, err := e.chain.Confirm(ctx, p.signature, e.cfg.RecheckTimeout)
	if err != nil || !status.Confirmed || status.Err != "" {
		return domain.ExecutionResult{}, false
	}
	return e.fill(ctx, signer, t, p.quote, p.decimals, p.fee, p.signature), true
}

type legDecimals struct {
	in, out int32
}

// attempt runs one quote-build-sign-submit-confirm pass. On failure it
// returns the error kind and, when a transaction reached the network, the
// pending signature.
func (e *Executor) attempt(ctx context.Context, signer domain.TxSigner, t trade, fee uint64) (domain.ExecutionResult, *pending, error, error) {
	dec, err := e.decimals(ctx, t)
	if err != nil {
		return domain.ExecutionResult{}, nil, domain.ErrQuoteFailed, err
	}
	raw, err := toRaw(t.amount, dec.in)
	if err != nil {
		return domain.ExecutionResult{}, nil, domain.ErrInvalidAmount, err
	}

	qctx, cancel := context.WithTimeout(ctx, e.cfg.QuoteTimeout)
	quote, err := e.swaps.Quote(qctx, domain.QuoteRequest{
		InputMint:   t.inputMint,
		OutputMint:  t.outputMint,
		Amount:      raw,
		SlippageBps: e.cfg.SlippageBps,
	})
	cancel()
	if err != nil {
		if errors.Is(err, domain.ErrNoRoute) {
			return domain.ExecutionResult{}, nil, domain.ErrNoLiquidity, err
		}
		return domain.ExecutionResult{}, nil, domain.ErrQuoteFailed, err
	}

	if err := e.preflight(ctx, signer, t, raw, fee); err != nil {
		return domain.ExecutionResult{}, nil, domain.ErrInsufficientBalance, err
	}

	bctx, cancel := context.WithTimeout(ctx, e.cfg.QuoteTimeout)
	unsigned, err := e.swaps.BuildSwap(bctx, quote, signer.PublicKey(), fee)
	cancel()
	if err != nil {
		return domain.ExecutionResult{}, nil, domain.ErrQuoteFailed, err
	}

	signed, err := signer.SignTransaction(unsigned)
	if err != nil {
		return domain.ExecutionResult{}, nil, domain.ErrSigningFailed, err
	}

	sctx, cancel := context.WithTimeout(ctx, e.cfg.SubmitTimeout)
	sig, err := e.chain.Submit(sctx, signed)
	cancel()
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			return domain.ExecutionResult{}, nil, domain.ErrInsufficientBalance, err
		}
		return domain.ExecutionResult{}, nil, domain.ErrSubmissionFailed, err
	}

	p := &pending{signature: sig, fee: fee, quote: quote, decimals: dec}
	status, err := e.chain.Confirm(ctx, sig, e.cfg.ConfirmTimeout)
	if err != nil {
		return domain.ExecutionResult{}, p, domain.ErrConfirmationTimeout, err
	}
	if status.Err != "" {
		// Landed but reverted, e.g. slippage exceeded. Nothing to recheck.
		return domain.ExecutionResult{}, &pending{signature: sig, reverted: true},
			domain.ErrSubmissionFailed, fmt.Errorf("executor: transaction %s failed on chain: %s", sig, status.Err)
	}

	return e.fill(ctx, signer, t, quote, dec, fee, sig), nil, nil, nil
}

func (e *Executor) decimals(ctx context.Context, t trade) (legDecimals, error) {
	rctx, cancel := context.WithTimeout(ctx, e.cfg.RPCTimeout)
	defer cancel()
	tokenDec, err := e.chain.TokenDecimals(rctx, t.tokenMint)
	if err != nil {
		return legDecimals{}, fmt.Errorf("executor: token decimals: %w", err)
	}
	if t.side == domain.SideBuy {
		return legDecimals{in: nativeDecimals, out: tokenDec}, nil
	}
	return legDecimals{in: tokenDec, out: nativeDecimals}, nil
}

// preflight fails when the wallet cannot cover the swap and fees. A balance
// lookup error is not fatal; the node will reject an underfunded tx anyway.
func (e *Executor) preflight(ctx context.Context, signer domain.TxSigner, t trade, raw, fee uint64) error {
	rctx, cancel := context.WithTimeout(ctx, e.cfg.RPCTimeout)
	defer cancel()
	bal, err := e.chain.GetBalance(rctx, signer.PublicKey())
	if err != nil {
		return nil
	}
	need := fee + e.cfg.FeeReserveLamports
	if t.side == domain.SideBuy {
		need += raw
	}
	if bal < need {
		return fmt.Errorf("executor: wallet %s holds %d lamports, needs %d", signer.PublicKey(), bal, need)
	}
	return nil
}

// fill builds the result of a confirmed swap. The fee split is best effort:
// metadata gaps fall back to quoted amounts and the configured base fee.
func (e *Executor) fill(ctx context.Context, signer domain.TxSigner, t trade, quote domain.SwapQuote, dec legDecimals, fee uint64, sig string) domain.ExecutionResult {
	rctx, cancel := context.WithTimeout(ctx, e.cfg.RPCTimeout)
	meta, metaErr := e.chain.TransactionMeta(rctx, sig)
	cancel()

	actualOut := quote.OutAmount
	priority := fee
	network := e.cfg.BaseFeeLamports
	if metaErr == nil {
		if out, ok := observedOutput(meta, t, signer.PublicKey()); ok {
			actualOut = out
		}
		priority = min(fee, meta.FeeLamports)
		network = meta.FeeLamports - priority
	}

	// Output lost to the aggregator: platform fee plus any shortfall
	// against the quote, valued in native units.
	lostOut := decimal.NewFromBigInt(new(big.Int).SetUint64(quote.PlatformFee), 0)
	if quote.OutAmount > actualOut {
		lostOut = lostOut.Add(decimal.NewFromBigInt(new(big.Int).SetUint64(quote.OutAmount-actualOut), 0))
	}
	var swapFeeLamports decimal.Decimal
	switch {
	case t.side == domain.SideBuy && quote.OutAmount == 0:
		swapFeeLamports = decimal.Zero
	case t.side == domain.SideBuy:
		swapFeeLamports = lostOut.Mul(decimal.NewFromBigInt(new(big.Int).SetUint64(quote.InAmount), 0)).
			Div(decimal.NewFromBigInt(new(big.Int).SetUint64(quote.OutAmount), 0)).Floor()
	default:
		swapFeeLamports = lostOut
	}

	res := domain.ExecutionResult{
		Signature:       sig,
		Side:            t.side,
		TokenMint:       t.tokenMint,
		PriorityFeePaid: fromRaw(priority, nativeDecimals),
		SwapFeePaid:     swapFeeLamports.Shift(-nativeDecimals),
		NetworkFeePaid:  fromRaw(network, nativeDecimals),
		SlippageBps:     slippageBps(quote.OutAmount, actualOut),
		PriceImpactPct:  quote.PriceImpactPct,
		ExecutedAt:      e.now().UTC(),
	}
	if t.side == domain.SideBuy {
		res.NativeAmount = fromRaw(quote.InAmount, dec.in)
		res.TokenAmount = fromRaw(actualOut, dec.out)
	} else {
		res.TokenAmount = fromRaw(quote.InAmount, dec.in)
		res.NativeAmount = fromRaw(actualOut, dec.out)
	}
	res.TotalFees = res.PriorityFeePaid.Add(res.SwapFeePaid).Add(res.NetworkFeePaid)

	e.metrics.PriorityFee(string(t.side), priority)
	return res
}

// observedOutput reads the swap output from balance deltas: the wallet's
// token account for a BUY, the fee payer's lamports (fee added back) for a
// SELL.
func observedOutput(meta domain.TxMeta, t trade, owner string) (uint64, bool) {
	if t.side == domain.SideBuy {
		var pre, post uint64
		found := false
		for _, b := range meta.TokenBalances {
			if b.Owner == owner && b.Mint == t.tokenMint {
				pre += b.Pre
				post += b.Post
				found = true
			}
		}
		if !found || post <= pre {
			return 0, false
		}
		return post - pre, true
	}

	received := int64(meta.PostLamports) - int64(meta.PreLamports) + int64(meta.FeeLamports)
	if meta.PreLamports == 0 || received <= 0 {
		return 0, false
	}
	return uint64(received), true
}

func slippageBps(quoted, actual uint64) int {
	if quoted == 0 {
		return 0
	}
	q := decimal.NewFromBigInt(new(big.Int).SetUint64(quoted), 0)
	a := decimal.NewFromBigInt(new(big.Int).SetUint64(actual), 0)
	return int(q.Sub(a).Mul(decimal.NewFromInt(10_000)).Div(q).Round(0).IntPart())
}

func toRaw(amount decimal.Decimal, decimals int32) (uint64, error) {
	raw := amount.Shift(decimals).Floor()
	if !raw.IsPositive() {
		return 0, fmt.Errorf("executor: amount %s is below one base unit: %w", amount, domain.ErrInvalidAmount)
	}
	bi := raw.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("executor: amount %s overflows base units: %w", amount, domain.ErrInvalidAmount)
	}
	return bi.Uint64(), nil
}

func fromRaw(raw uint64, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -decimals)
}

func (e *Executor) report(r AttemptReport) {
	if e.onAttempt != nil {
		e.onAttempt(r)
	}
}

func sigOf(p *pending, res domain.ExecutionResult) string {
	if p != nil {
		return p.signature
	}
	return res.Signature
}

func outcomeLabel(kind error) string {
	switch kind {
	case domain.ErrNoLiquidity:
		return "no_liquidity"
	case domain.ErrQuoteFailed:
		return "quote_failed"
	case domain.ErrSubmissionFailed:
		return "submission_failed"
	case domain.ErrConfirmationTimeout:
		return "confirmation_timeout"
	case domain.ErrInsufficientBalance:
		return "insufficient_balance"
	case domain.ErrSigningFailed:
		return "signing_failed"
	case domain.ErrInvalidAmount:
		return "invalid_amount"
	default:
		return "error"
	}
}
