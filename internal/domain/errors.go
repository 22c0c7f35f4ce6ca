package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrLockHeld         = errors.New("lock already held")
	ErrSigningFailed    = errors.New("signing failed")
	ErrNoRoute          = errors.New("no swap route")
	ErrDuplicateRequest = errors.New("duplicate trade request")
	ErrRiskRejected     = errors.New("rejected by risk limits")
	ErrUnknownAgent     = errors.New("unknown agent")
	ErrInvalidAmount    = errors.New("invalid trade amount")

	// Execution failures. Only QuoteFailed, SubmissionFailed and
	// ConfirmationTimeout are retried by the executor.
	ErrNoLiquidity         = errors.New("no liquidity")
	ErrQuoteFailed         = errors.New("quote failed")
	ErrSubmissionFailed    = errors.New("submission failed")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	ErrInsufficientBalance = errors.New("insufficient balance")

	// Position failures.
	ErrPositionNotFound = errors.New("position not found")
	ErrInvalidQuantity  = errors.New("invalid quantity")
)

// ExecutionError is the terminal outcome of a failed trade request. Kind is
// one of the execution sentinels above; Err is the last underlying cause.
// Signature is set when the last attempt reached the network, so the
// transaction can be reconciled against the chain.
type ExecutionError struct {
	Kind      error
	Attempts  int
	Signature string
	Err       error
}

func (e *ExecutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v after %d attempt(s)", e.Kind, e.Attempts)
	}
	return fmt.Sprintf("%v after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *ExecutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Retryable reports whether an execution failure of this kind may succeed
// on a fresh attempt with a higher priority fee.
func Retryable(kind error) bool {
	switch kind {
	case ErrQuoteFailed, ErrSubmissionFailed, ErrConfirmationTimeout:
		return true
	default:
		return false
	}
}
