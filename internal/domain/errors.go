package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. Callers branch with
// errors.Is; errors that carry numeric context have a struct type below that
// reports Is(sentinel) == true.

var (
	// Validation errors — caller-fixable, rejected before any state change.
	ErrInvalidAmount   = errors.New("amount must be greater than zero")
	ErrEmptyCart       = errors.New("purchase cart is empty")
	ErrInvalidLineItem = errors.New("invalid line item")

	// Invariant violations — reported with exact numeric context, never retried.
	ErrInsufficientBudget       = errors.New("insufficient budget")
	ErrInsufficientPoolFunds    = errors.New("insufficient pool funds")
	ErrWouldUnderfundUsedBudget = errors.New("reversal would underfund spent budget")
	ErrExceedsReversibleAmount  = errors.New("amount exceeds reversible remainder")
	ErrAlreadyReversed          = errors.New("allocation already fully reversed")

	// Not-found errors — terminal, surfaced as-is.
	ErrAccountNotFound    = errors.New("account not found")
	ErrAllocationNotFound = errors.New("allocation entry not found")

	// Concurrency errors. ErrConcurrentModification is the store-level CAS
	// failure, retried internally by the engine; ErrOperationConflict is the
	// terminal error surfaced once retries are exhausted.
	ErrConcurrentModification = errors.New("account history changed concurrently")
	ErrOperationConflict      = errors.New("operation conflict after retries")
)

// ─── Structured Errors ──────────────────────────────────────────────────────

// InsufficientBudgetError reports an overspend rejection with the exact
// shortfall so the caller can self-correct.
type InsufficientBudgetError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBudgetError) Error() string {
	return fmt.Sprintf("insufficient budget: requested %s, available %s (short %s)",
		e.Requested, e.Available, e.Shortfall())
}

// Shortfall is the amount the request exceeds the remaining budget by.
func (e *InsufficientBudgetError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

func (e *InsufficientBudgetError) Is(target error) bool { return target == ErrInsufficientBudget }

// InsufficientPoolFundsError reports an allocation that exceeds the pool.
type InsufficientPoolFundsError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientPoolFundsError) Error() string {
	return fmt.Sprintf("insufficient pool funds: requested %s, pool remaining %s",
		e.Requested, e.Available)
}

func (e *InsufficientPoolFundsError) Is(target error) bool { return target == ErrInsufficientPoolFunds }

// UnderfundError reports a reversal that would leave less allocated than spent.
type UnderfundError struct {
	ResultingAllocated decimal.Decimal
	Used               decimal.Decimal
}

func (e *UnderfundError) Error() string {
	return fmt.Sprintf("reversal would leave allocated %s below used %s",
		e.ResultingAllocated, e.Used)
}

func (e *UnderfundError) Is(target error) bool { return target == ErrWouldUnderfundUsedBudget }

// ExceedsReversibleError reports a reversal larger than the unreversed remainder.
type ExceedsReversibleError struct {
	Requested  decimal.Decimal
	Reversible decimal.Decimal
}

func (e *ExceedsReversibleError) Error() string {
	return fmt.Sprintf("reversal of %s exceeds reversible remainder %s",
		e.Requested, e.Reversible)
}

func (e *ExceedsReversibleError) Is(target error) bool { return target == ErrExceedsReversibleAmount }

// LineItemError reports which cart line failed validation and why.
type LineItemError struct {
	Index  int
	Reason string
}

func (e *LineItemError) Error() string {
	return fmt.Sprintf("line item %d: %s", e.Index, e.Reason)
}

func (e *LineItemError) Is(target error) bool { return target == ErrInvalidLineItem }
