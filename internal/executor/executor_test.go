package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

type fakeSwaps struct {
	quote  func(n int, req domain.QuoteRequest) (domain.SwapQuote, error)
	quotes []domain.QuoteRequest
	fees   []uint64
}

func (f *fakeSwaps) Quote(_ context.Context, req domain.QuoteRequest) (domain.SwapQuote, error) {
	f.quotes = append(f.quotes, req)
	return f.quote(len(f.quotes), req)
}

func (f *fakeSwaps) BuildSwap(_ context.Context, q domain.SwapQuote, signer string, fee uint64) ([]byte, error) {
	f.fees = append(f.fees, fee)
	return []byte("tx:" + signer), nil
}

type fakeChain struct {
	balance  uint64
	decimals map[string]int32
	submit   func(n int) (string, error)
	confirm  func(n int, sig string) (domain.TxStatus, error)
	meta     *domain.TxMeta

	submits  int
	confirms int
}

func (f *fakeChain) Submit(context.Context, []byte) (string, error) {
	f.submits++
	if f.submit == nil {
		return fmt.Sprintf("sig-%d", f.submits), nil
	}
	return f.submit(f.submits)
}

func (f *fakeChain) Confirm(ctx context.Context, sig string, _ time.Duration) (domain.TxStatus, error) {
	f.confirms++
	if err := ctx.Err(); err != nil {
		return domain.TxStatus{}, err
	}
	if f.confirm == nil {
		return domain.TxStatus{Signature: sig, Confirmed: true}, nil
	}
	return f.confirm(f.confirms, sig)
}

func (f *fakeChain) GetBalance(context.Context, string) (uint64, error) { return f.balance, nil }

func (f *fakeChain) TokenDecimals(_ context.Context, mint string) (int32, error) {
	d, ok := f.decimals[mint]
	if !ok {
		return 0, errors.New("unknown mint")
	}
	return d, nil
}

func (f *fakeChain) TransactionMeta(context.Context, string) (domain.TxMeta, error) {
	if f.meta == nil {
		return domain.TxMeta{}, errors.New("not indexed")
	}
	return *f.meta, nil
}

type fakeSigner struct{ fail bool }

func (s fakeSigner) PublicKey() string { return "WALLET" }

func (s fakeSigner) SignTransaction(tx []byte) ([]byte, error) {
	if s.fail {
		return nil, domain.ErrSigningFailed
	}
	return append([]byte("signed:"), tx...), nil
}

const sol = 1_000_000_000

func fixedQuote(in, out uint64) func(int, domain.QuoteRequest) (domain.SwapQuote, error) {
	return func(_ int, req domain.QuoteRequest) (domain.SwapQuote, error) {
		return domain.SwapQuote{InputMint: req.InputMint, OutputMint: req.OutputMint, InAmount: in, OutAmount: out}, nil
	}
}

func newTestExecutor(swaps *fakeSwaps, chain *fakeChain) *Executor {
	cfg := DefaultConfig("NATIVE")
	e := New(swaps, chain, cfg, EscalatingFees{InitialLamports: 10_000, Multiplier: 2, CeilingLamports: 1_000_000}, NoBackoff)
	e.sleep = func(context.Context, time.Duration) error { return nil }
	e.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return e
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestExecuteBuyFeeBreakdown(t *testing.T) {
	swaps := &fakeSwaps{quote: fixedQuote(1*sol, 5_000_000)}
	chain := &fakeChain{
		balance:  10 * sol,
		decimals: map[string]int32{"MINT": 6},
		meta: &domain.TxMeta{
			FeeLamports: 15_000,
			TokenBalances: []domain.TokenBalanceChange{
				{Owner: "WALLET", Mint: "MINT", Pre: 0, Post: 4_950_000},
				{Owner: "POOL", Mint: "MINT", Pre: 9_000_000, Post: 4_050_000},
			},
		},
	}
	e := newTestExecutor(swaps, chain)

	res, err := e.ExecuteBuy(context.Background(), fakeSigner{}, "MINT", dec("1"))
	if err != nil {
		t.Fatalf("ExecuteBuy() error = %v", err)
	}

	if got := swaps.quotes[0]; got.InputMint != "NATIVE" || got.OutputMint != "MINT" || got.Amount != 1*sol {
		t.Fatalf("quote request = %+v", got)
	}
	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"NativeAmount", res.NativeAmount, "1"},
		{"TokenAmount", res.TokenAmount, "4.95"},
		{"PriorityFeePaid", res.PriorityFeePaid, "0.00001"},
		{"NetworkFeePaid", res.NetworkFeePaid, "0.000005"},
		{"SwapFeePaid", res.SwapFeePaid, "0.01"},
		{"TotalFees", res.TotalFees, "0.010015"},
	}
	for _, c := range checks {
		if !c.got.Equal(dec(c.want)) {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
	if res.SlippageBps != 100 {
		t.Errorf("SlippageBps = %d, want 100", res.SlippageBps)
	}
	if res.Attempt != 1 || res.Side != domain.SideBuy || res.Signature != "sig-1" {
		t.Errorf("result = %+v", res)
	}
}

func TestExecuteSellFeeBreakdown(t *testing.T) {
	swaps := &fakeSwaps{quote: fixedQuote(100_000_000, 2*sol)}
	chain := &fakeChain{
		balance:  1 * sol,
		decimals: map[string]int32{"MINT": 6},
		meta: &domain.TxMeta{
			FeeLamports:  15_000,
			PreLamports:  1 * sol,
			PostLamports: 1*sol + 1_980_000_000 - 15_000,
		},
	}
	e := newTestExecutor(swaps, chain)

	res, err := e.ExecuteSell(context.Background(), fakeSigner{}, "MINT", dec("100"))
	if err != nil {
		t.Fatalf("ExecuteSell() error = %v", err)
	}
	if got := swaps.quotes[0]; got.InputMint != "MINT" || got.OutputMint != "NATIVE" || got.Amount != 100_000_000 {
		t.Fatalf("quote request = %+v", got)
	}
	if !res.NativeAmount.Equal(dec("1.98")) {
		t.Errorf("NativeAmount = %s, want 1.98", res.NativeAmount)
	}
	if !res.TokenAmount.Equal(dec("100")) {
		t.Errorf("TokenAmount = %s, want 100", res.TokenAmount)
	}
	if !res.SwapFeePaid.Equal(dec("0.02")) {
		t.Errorf("SwapFeePaid = %s, want 0.02", res.SwapFeePaid)
	}
	if res.SlippageBps != 100 {
		t.Errorf("SlippageBps = %d, want 100", res.SlippageBps)
	}
}

func TestAttemptsAreBounded(t *testing.T) {
	timeout := func(int, string) (domain.TxStatus, error) {
		return domain.TxStatus{}, fmt.Errorf("rpc: %w", domain.ErrConfirmationTimeout)
	}
	tests := []struct {
		name    string
		quote   func(int, domain.QuoteRequest) (domain.SwapQuote, error)
		submit  func(int) (string, error)
		confirm func(int, string) (domain.TxStatus, error)
		want    error
		wantSig string
	}{
		{
			name: "quote error",
			quote: func(int, domain.QuoteRequest) (domain.SwapQuote, error) {
				return domain.SwapQuote{}, errors.New("upstream 503")
			},
			want: domain.ErrQuoteFailed,
		},
		{
			name:   "submit error",
			quote:  fixedQuote(1*sol, 5_000_000),
			submit: func(int) (string, error) { return "", errors.New("blockhash not found") },
			want:   domain.ErrSubmissionFailed,
		},
		{
			name:  "reverted on chain",
			quote: fixedQuote(1*sol, 5_000_000),
			confirm: func(_ int, sig string) (domain.TxStatus, error) {
				return domain.TxStatus{Signature: sig, Confirmed: true, Err: "SlippageToleranceExceeded"}, nil
			},
			want:    domain.ErrSubmissionFailed,
			wantSig: "sig-3",
		},
		{
			name:    "confirmation timeout",
			quote:   fixedQuote(1*sol, 5_000_000),
			confirm: timeout,
			want:    domain.ErrConfirmationTimeout,
			wantSig: "sig-3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			swaps := &fakeSwaps{quote: tt.quote}
			chain := &fakeChain{
				balance:  10 * sol,
				decimals: map[string]int32{"MINT": 6},
				submit:   tt.submit,
				confirm:  tt.confirm,
			}
			e := newTestExecutor(swaps, chain)
			var reports []AttemptReport
			e.SetAttemptHook(func(r AttemptReport) { reports = append(reports, r) })

			_, err := e.ExecuteBuy(context.Background(), fakeSigner{}, "MINT", dec("1"))
			var execErr *domain.ExecutionError
			if !errors.As(err, &execErr) {
				t.Fatalf("ExecuteBuy() error = %v, want *ExecutionError", err)
			}
			if execErr.Kind != tt.want || execErr.Attempts != 3 {
				t.Fatalf("ExecutionError = %+v, want %v after 3", execErr, tt.want)
			}
			if chain.submits > 3 {
				t.Fatalf("submits = %d, want at most 3", chain.submits)
			}
			if len(reports) != 3 {
				t.Fatalf("reports = %d, want 3", len(reports))
			}
			if execErr.Signature != tt.wantSig {
				t.Fatalf("Signature = %q, want %q", execErr.Signature, tt.wantSig)
			}
		})
	}
}

func TestTimeoutRetriesEscalateFee(t *testing.T) {
	swaps := &fakeSwaps{quote: fixedQuote(1*sol, 5_000_000)}
	chain := &fakeChain{
		balance:  10 * sol,
		decimals: map[string]int32{"MINT": 6},
		confirm: func(int, string) (domain.TxStatus, error) {
			return domain.TxStatus{}, fmt.Errorf("rpc: %w", domain.ErrConfirmationTimeout)
		},
	}
	e := newTestExecutor(swaps, chain)
	var reports []AttemptReport
	e.SetAttemptHook(func(r AttemptReport) { reports = append(reports, r) })

	_, err := e.ExecuteBuy(context.Background(), fakeSigner{}, "MINT", dec("1"))

	var execErr *domain.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("ExecuteBuy() error = %v, want *ExecutionError", err)
	}
	if execErr.Kind != domain.ErrConfirmationTimeout || execErr.Attempts != 3 {
		t.Fatalf("ExecutionError = %+v, want ConfirmationTimeout after 3", execErr)
	}
	if !errors.Is(err, domain.ErrConfirmationTimeout) {
		t.Fatalf("errors.Is(err, ErrConfirmationTimeout) = false")
	}
	if chain.submits != 3 {
		t.Fatalf("submits = %d, want 3", chain.submits)
	}
	if len(swaps.quotes) != 3 {
		t.Fatalf("quotes = %d, want a fresh quote per attempt", len(swaps.quotes))
	}
	want := []uint64{10_000, 20_000, 40_000}
	for i, fee := range want {
		if swaps.fees[i] != fee {
			t.Fatalf("fee on attempt %d = %d, want %d", i+1, swaps.fees[i], fee)
		}
	}
	if len(reports) != 3 || reports[2].Attempt != 3 || reports[2].PriorityFee != 40_000 {
		t.Fatalf("reports = %+v", reports)
	}
}

func TestTerminalFailuresStopAtFirstAttempt(t *testing.T) {
	tests := []struct {
		name    string
		quote   func(int, domain.QuoteRequest) (domain.SwapQuote, error)
		balance uint64
		signer  fakeSigner
		want    error
	}{
		{
			name: "no route",
			quote: func(int, domain.QuoteRequest) (domain.SwapQuote, error) {
				return domain.SwapQuote{}, fmt.Errorf("jupiter: %w", domain.ErrNoRoute)
			},
			balance: 10 * sol,
			want:    domain.ErrNoLiquidity,
		},
		{
			name:    "insufficient balance",
			quote:   fixedQuote(1*sol, 5_000_000),
			balance: sol / 2,
			want:    domain.ErrInsufficientBalance,
		},
		{
			name:    "signing failure",
			quote:   fixedQuote(1*sol, 5_000_000),
			balance: 10 * sol,
			signer:  fakeSigner{fail: true},
			want:    domain.ErrSigningFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			swaps := &fakeSwaps{quote: tt.quote}
			chain := &fakeChain{balance: tt.balance, decimals: map[string]int32{"MINT": 6}}
			e := newTestExecutor(swaps, chain)

			_, err := e.ExecuteBuy(context.Background(), tt.signer, "MINT", dec("1"))
			var execErr *domain.ExecutionError
			if !errors.As(err, &execErr) {
				t.Fatalf("error = %v, want *ExecutionError", err)
			}
			if execErr.Kind != tt.want || execErr.Attempts != 1 {
				t.Fatalf("ExecutionError = %+v, want %v after 1", execErr, tt.want)
			}
			if chain.submits != 0 {
				t.Fatalf("submits = %d, want 0", chain.submits)
			}
			if len(swaps.quotes) != 1 {
				t.Fatalf("quotes = %d, want 1", len(swaps.quotes))
			}
		})
	}
}

func TestRetrySucceedsWithEscalatedFee(t *testing.T) {
	swaps := &fakeSwaps{quote: fixedQuote(1*sol, 5_000_000)}
	chain := &fakeChain{
		balance:  10 * sol,
		decimals: map[string]int32{"MINT": 6},
		submit: func(n int) (string, error) {
			if n == 1 {
				return "", errors.New("blockhash not found")
			}
			return "sig-ok", nil
		},
	}
	e := newTestExecutor(swaps, chain)

	res, err := e.ExecuteBuy(context.Background(), fakeSigner{}, "MINT", dec("1"))
	if err != nil {
		t.Fatalf("ExecuteBuy() error = %v", err)
	}
	if res.Attempt != 2 || res.Signature != "sig-ok" {
		t.Fatalf("result attempt/signature = %d/%s, want 2/sig-ok", res.Attempt, res.Signature)
	}
	// No metadata: priority is the requested fee, network the base fee,
	// output the quoted amount.
	if !res.PriorityFeePaid.Equal(dec("0.00002")) {
		t.Errorf("PriorityFeePaid = %s, want 0.00002", res.PriorityFeePaid)
	}
	if !res.NetworkFeePaid.Equal(dec("0.000005")) {
		t.Errorf("NetworkFeePaid = %s, want 0.000005", res.NetworkFeePaid)
	}
	if !res.TokenAmount.Equal(dec("5")) || !res.SwapFeePaid.IsZero() || res.SlippageBps != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestLateLandingIsNotResubmitted(t *testing.T) {
	swaps := &fakeSwaps{quote: fixedQuote(1*sol, 5_000_000)}
	chain := &fakeChain{
		balance:  10 * sol,
		decimals: map[string]int32{"MINT": 6},
		confirm: func(n int, sig string) (domain.TxStatus, error) {
			if n == 1 {
				return domain.TxStatus{}, domain.ErrConfirmationTimeout
			}
			return domain.TxStatus{Signature: sig, Confirmed: true}, nil
		},
	}
	e := newTestExecutor(swaps, chain)

	res, err := e.ExecuteBuy(context.Background(), fakeSigner{}, "MINT", dec("1"))
	if err != nil {
		t.Fatalf("ExecuteBuy() error = %v", err)
	}
	if chain.submits != 1 || res.Attempt != 1 || res.Signature != "sig-1" {
		t.Fatalf("submits=%d attempt=%d sig=%s, want 1/1/sig-1", chain.submits, res.Attempt, res.Signature)
	}
}

func TestRevertedTransactionIsRetried(t *testing.T) {
	swaps := &fakeSwaps{quote: fixedQuote(1*sol, 5_000_000)}
	chain := &fakeChain{
		balance:  10 * sol,
		decimals: map[string]int32{"MINT": 6},
		confirm: func(n int, sig string) (domain.TxStatus, error) {
			if n == 1 {
				return domain.TxStatus{Signature: sig, Confirmed: true, Err: "SlippageToleranceExceeded"}, nil
			}
			return domain.TxStatus{Signature: sig, Confirmed: true}, nil
		},
	}
	e := newTestExecutor(swaps, chain)

	res, err := e.ExecuteBuy(context.Background(), fakeSigner{}, "MINT", dec("1"))
	if err != nil {
		t.Fatalf("ExecuteBuy() error = %v", err)
	}
	if res.Attempt != 2 || chain.confirms != 2 {
		t.Fatalf("attempt=%d confirms=%d, want 2/2", res.Attempt, chain.confirms)
	}
}

func TestCancelledContextStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	swaps := &fakeSwaps{quote: func(int, domain.QuoteRequest) (domain.SwapQuote, error) {
		cancel()
		return domain.SwapQuote{}, errors.New("upstream 503")
	}}
	chain := &fakeChain{balance: 10 * sol, decimals: map[string]int32{"MINT": 6}}
	e := newTestExecutor(swaps, chain)

	_, err := e.ExecuteBuy(ctx, fakeSigner{}, "MINT", dec("1"))
	if !errors.Is(err, domain.ErrQuoteFailed) {
		t.Fatalf("error = %v, want ErrQuoteFailed", err)
	}
	if len(swaps.quotes) != 1 {
		t.Fatalf("quotes = %d, want 1", len(swaps.quotes))
	}
}

func TestFinalAttemptIsRechecked(t *testing.T) {
	swaps := &fakeSwaps{quote: fixedQuote(1*sol, 5_000_000)}
	chain := &fakeChain{
		balance:  10 * sol,
		decimals: map[string]int32{"MINT": 6},
		// Three attempts and two in-between rechecks time out; the
		// recheck after the last attempt finds the third transaction.
		confirm: func(n int, sig string) (domain.TxStatus, error) {
			if n < 6 {
				return domain.TxStatus{}, domain.ErrConfirmationTimeout
			}
			return domain.TxStatus{Signature: sig, Confirmed: true}, nil
		},
	}
	e := newTestExecutor(swaps, chain)

	res, err := e.ExecuteBuy(context.Background(), fakeSigner{}, "MINT", dec("1"))
	if err != nil {
		t.Fatalf("ExecuteBuy() error = %v", err)
	}
	if chain.submits != 3 || res.Attempt != 3 || res.Signature != "sig-3" {
		t.Fatalf("submits=%d attempt=%d sig=%s, want 3/3/sig-3", chain.submits, res.Attempt, res.Signature)
	}
}

func TestCancelAfterSubmitStillConfirms(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	swaps := &fakeSwaps{quote: fixedQuote(1*sol, 5_000_000)}
	chain := &fakeChain{
		balance:  10 * sol,
		decimals: map[string]int32{"MINT": 6},
		submit: func(n int) (string, error) {
			cancel()
			return fmt.Sprintf("sig-%d", n), nil
		},
	}
	e := newTestExecutor(swaps, chain)

	res, err := e.ExecuteBuy(ctx, fakeSigner{}, "MINT", dec("1"))
	if err != nil {
		t.Fatalf("ExecuteBuy() error = %v", err)
	}
	if chain.submits != 1 || res.Signature != "sig-1" {
		t.Fatalf("submits=%d sig=%s, want 1/sig-1", chain.submits, res.Signature)
	}
}

func TestAmountBelowBaseUnitIsTerminal(t *testing.T) {
	swaps := &fakeSwaps{quote: fixedQuote(1, 1)}
	chain := &fakeChain{balance: 10 * sol, decimals: map[string]int32{"MINT": 6}}
	e := newTestExecutor(swaps, chain)

	_, err := e.ExecuteSell(context.Background(), fakeSigner{}, "MINT", dec("0.0000001"))
	var execErr *domain.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("ExecuteSell() error = %v, want *ExecutionError", err)
	}
	if execErr.Kind != domain.ErrInvalidAmount || execErr.Attempts != 1 {
		t.Fatalf("ExecutionError = %+v, want ErrInvalidAmount after 1", execErr)
	}
	if len(swaps.quotes) != 0 {
		t.Fatalf("quotes = %d, want 0", len(swaps.quotes))
	}
}

func TestInvalidAmount(t *testing.T) {
	e := newTestExecutor(&fakeSwaps{quote: fixedQuote(1, 1)}, &fakeChain{decimals: map[string]int32{"MINT": 6}})
	for _, amt := range []string{"0", "-1"} {
		if _, err := e.ExecuteBuy(context.Background(), fakeSigner{}, "MINT", dec(amt)); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Fatalf("ExecuteBuy(%s) error = %v, want ErrInvalidAmount", amt, err)
		}
	}
}

func TestCanQuoteAndBalance(t *testing.T) {
	swaps := &fakeSwaps{quote: func(_ int, req domain.QuoteRequest) (domain.SwapQuote, error) {
		if req.OutputMint == "DEAD" {
			return domain.SwapQuote{}, domain.ErrNoRoute
		}
		return domain.SwapQuote{OutAmount: 1}, nil
	}}
	chain := &fakeChain{balance: 2_500_000_000}
	e := newTestExecutor(swaps, chain)
	ctx := context.Background()

	if !e.CanQuote(ctx, "MINT") {
		t.Fatalf("CanQuote(MINT) = false, want true")
	}
	if e.CanQuote(ctx, "DEAD") {
		t.Fatalf("CanQuote(DEAD) = true, want false")
	}
	bal, err := e.GetBalance(ctx, "WALLET")
	if err != nil || !bal.Equal(dec("2.5")) {
		t.Fatalf("GetBalance() = %s, %v, want 2.5", bal, err)
	}
}

func TestEscalatingFees(t *testing.T) {
	tests := []struct {
		name   string
		policy EscalatingFees
		want   []uint64
	}{
		{"doubling", EscalatingFees{InitialLamports: 1000, Multiplier: 2}, []uint64{1000, 2000, 4000, 8000}},
		{"ceiling", EscalatingFees{InitialLamports: 1000, Multiplier: 3, CeilingLamports: 5000}, []uint64{1000, 3000, 5000, 5000}},
		{"default multiplier", EscalatingFees{InitialLamports: 500}, []uint64{500, 1000, 2000}},
		{"initial above ceiling", EscalatingFees{InitialLamports: 9000, CeilingLamports: 5000}, []uint64{5000, 5000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee := tt.policy.Initial()
			for i, want := range tt.want {
				if fee != want {
					t.Fatalf("fee[%d] = %d, want %d", i, fee, want)
				}
				fee = tt.policy.Next(fee)
			}
		})
	}
}

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff(100*time.Millisecond, time.Second)
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{5, time.Second},
	}
	for _, tt := range tests {
		if got := b(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
