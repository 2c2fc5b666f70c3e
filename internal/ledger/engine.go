// Package ledger implements the budget ledger engine.
//
// The engine:
//  1. Serializes all mutations per account (single writer per account)
//  2. Reads the account history, validates the command against invariants
//  3. Appends the new entry with optimistic concurrency at the store
//  4. Retries the read-check-append cycle on CAS conflicts, with backoff
//  5. Emits one audit record per successful mutation (fire-and-forget)
//
// Every balance is derived from the entry history through the single
// canonical projection in the domain package — there is no stored balance
// that can drift.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/budgetpool/budgetpool/internal/domain"
)

// Config controls engine behavior.
type Config struct {
	EnforceSolvency bool          // Reject allocations exceeding the pool (default: true)
	MaxRetries      int           // CAS retry attempts before OperationConflict (default: 5)
	RetryBackoff    time.Duration // Base backoff, doubled per attempt (default: 25ms)
}

// DefaultConfig returns safe engine defaults.
func DefaultConfig() Config {
	return Config{
		EnforceSolvency: true,
		MaxRetries:      5,
		RetryBackoff:    25 * time.Millisecond,
	}
}

// Engine accepts commands that append ledger entries and rejects commands
// that would violate invariants. It owns no business state of its own;
// everything is recomputed from the record store.
type Engine struct {
	cfg      Config
	store    domain.RecordStore
	activity domain.ActivitySink

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-account write locks

	poolMu sync.Mutex // serializes pool-ceiling checks and pool additions
}

// New creates a ledger engine. The activity sink may be nil.
func New(cfg Config, store domain.RecordStore, activity domain.ActivitySink) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    store,
		activity: activity,
		locks:    make(map[string]*sync.Mutex),
	}
}

// ─── Operations ─────────────────────────────────────────────────────────────

// Allocate grants funds from the pool to an account. The account springs
// into existence on its first allocation.
func (e *Engine) Allocate(ctx context.Context, accountID string, amount decimal.Decimal, actor domain.Actor, note string) (domain.LedgerEntry, error) {
	if !amount.IsPositive() {
		return domain.LedgerEntry{}, e.reject("allocate", domain.ErrInvalidAmount)
	}

	// The pool ceiling is the only state shared across accounts; checking it
	// and appending must not interleave with other allocations.
	e.poolMu.Lock()
	defer e.poolMu.Unlock()

	entry, err := e.mutate(ctx, "allocate", accountID, func(history []domain.LedgerEntry, bal domain.Balance) (domain.LedgerEntry, error) {
		if e.cfg.EnforceSolvency {
			pool, err := e.poolBudgetLocked(ctx)
			if err != nil {
				return domain.LedgerEntry{}, err
			}
			if amount.GreaterThan(pool.Remaining) {
				return domain.LedgerEntry{}, &domain.InsufficientPoolFundsError{
					Requested: amount,
					Available: pool.Remaining,
				}
			}
		}
		return e.newEntry(accountID, domain.EntryAllocation, amount, actor, note), nil
	})
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	e.audit(ctx, domain.ActionAllocationMade, actor, map[string]string{
		"account_id": accountID,
		"entry_id":   entry.ID,
		"amount":     amount.String(),
		"note":       note,
	})
	return entry, nil
}

// Reverse cancels part or all of a prior allocation. Only original
// allocations are reversible; a reversal can never be reversed, and funds
// already spent cannot be pulled back.
func (e *Engine) Reverse(ctx context.Context, accountID, allocationID string, amount decimal.Decimal, actor domain.Actor) (domain.LedgerEntry, error) {
	if !amount.IsPositive() {
		return domain.LedgerEntry{}, e.reject("reverse", domain.ErrInvalidAmount)
	}

	entry, err := e.mutate(ctx, "reverse", accountID, func(history []domain.LedgerEntry, bal domain.Balance) (domain.LedgerEntry, error) {
		var alloc *domain.LedgerEntry
		for i := range history {
			if history[i].ID == allocationID {
				alloc = &history[i]
				break
			}
		}
		if alloc == nil || alloc.Kind != domain.EntryAllocation {
			return domain.LedgerEntry{}, domain.ErrAllocationNotFound
		}

		reversible := alloc.Amount.Sub(domain.ReversedAgainst(history, allocationID))
		if !reversible.IsPositive() {
			return domain.LedgerEntry{}, domain.ErrAlreadyReversed
		}
		if amount.GreaterThan(reversible) {
			return domain.LedgerEntry{}, &domain.ExceedsReversibleError{
				Requested:  amount,
				Reversible: reversible,
			}
		}

		resulting := bal.TotalAllocated.Sub(amount)
		if resulting.LessThan(bal.Used) {
			return domain.LedgerEntry{}, &domain.UnderfundError{
				ResultingAllocated: resulting,
				Used:               bal.Used,
			}
		}

		rev := e.newEntry(accountID, domain.EntryReversal, amount, actor, "")
		rev.RefID = allocationID
		return rev, nil
	})
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	e.audit(ctx, domain.ActionAllocationReversed, actor, map[string]string{
		"account_id":    accountID,
		"entry_id":      entry.ID,
		"allocation_id": allocationID,
		"amount":        amount.String(),
	})
	return entry, nil
}

// RecordPurchase spends against an account's allocation. The overspend check
// and the append happen inside the per-account critical section, so two
// concurrent purchases can never jointly exceed the budget.
func (e *Engine) RecordPurchase(ctx context.Context, accountID string, items []domain.LineItem, actor domain.Actor) (domain.LedgerEntry, error) {
	if len(items) == 0 {
		return domain.LedgerEntry{}, e.reject("purchase", domain.ErrEmptyCart)
	}
	for i, li := range items {
		switch {
		case li.Name == "":
			return domain.LedgerEntry{}, e.reject("purchase", &domain.LineItemError{Index: i, Reason: "name is empty"})
		case li.UnitPrice.IsNegative():
			return domain.LedgerEntry{}, e.reject("purchase", &domain.LineItemError{Index: i, Reason: "unit price is negative"})
		case li.Quantity < 1:
			return domain.LedgerEntry{}, e.reject("purchase", &domain.LineItemError{Index: i, Reason: "quantity must be at least 1"})
		}
	}
	total := domain.CartTotal(items)
	if !total.IsPositive() {
		return domain.LedgerEntry{}, e.reject("purchase", domain.ErrInvalidAmount)
	}

	entry, err := e.mutate(ctx, "purchase", accountID, func(history []domain.LedgerEntry, bal domain.Balance) (domain.LedgerEntry, error) {
		if bal.Used.Add(total).GreaterThan(bal.TotalAllocated) {
			return domain.LedgerEntry{}, &domain.InsufficientBudgetError{
				Requested: total,
				Available: bal.Remaining,
			}
		}
		p := e.newEntry(accountID, domain.EntryPurchase, total, actor, "")
		p.Items = items
		return p, nil
	})
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	e.audit(ctx, domain.ActionPurchaseCompleted, actor, map[string]string{
		"account_id": accountID,
		"entry_id":   entry.ID,
		"amount":     total.String(),
		"item_count": fmt.Sprintf("%d", len(items)),
	})
	return entry, nil
}

// ReturnFunds gives unspent allocation back to the pool. Only the unspent
// remainder may be returned; spent funds are corrected by reversing the
// purchase flow upstream, not here.
func (e *Engine) ReturnFunds(ctx context.Context, accountID string, amount decimal.Decimal, actor domain.Actor, note string) (domain.LedgerEntry, error) {
	if !amount.IsPositive() {
		return domain.LedgerEntry{}, e.reject("return", domain.ErrInvalidAmount)
	}

	entry, err := e.mutate(ctx, "return", accountID, func(history []domain.LedgerEntry, bal domain.Balance) (domain.LedgerEntry, error) {
		resulting := bal.TotalAllocated.Sub(amount)
		if resulting.LessThan(bal.Used) {
			return domain.LedgerEntry{}, &domain.UnderfundError{
				ResultingAllocated: resulting,
				Used:               bal.Used,
			}
		}
		return e.newEntry(accountID, domain.EntryReturn, amount, actor, note), nil
	})
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	e.audit(ctx, domain.ActionFundsReturned, actor, map[string]string{
		"account_id": accountID,
		"entry_id":   entry.ID,
		"amount":     amount.String(),
		"note":       note,
	})
	return entry, nil
}

// AddPoolFunds records an admin funding the global pool.
func (e *Engine) AddPoolFunds(ctx context.Context, amount decimal.Decimal, actor domain.Actor, note string) (domain.PoolAddition, error) {
	if !amount.IsPositive() {
		return domain.PoolAddition{}, e.reject("pool_add", domain.ErrInvalidAmount)
	}

	e.poolMu.Lock()
	defer e.poolMu.Unlock()

	add := domain.PoolAddition{
		ID:        uuid.NewString(),
		Amount:    amount,
		Actor:     actor,
		Note:      note,
		Timestamp: time.Now().UTC(),
	}
	if err := e.store.AppendPoolAddition(ctx, add); err != nil {
		opsTotal.WithLabelValues("pool_add", outcomeError).Inc()
		return domain.PoolAddition{}, err
	}
	opsTotal.WithLabelValues("pool_add", outcomeOK).Inc()

	e.audit(ctx, domain.ActionFundsAdded, actor, map[string]string{
		"addition_id": add.ID,
		"amount":      amount.String(),
		"note":        note,
	})
	return add, nil
}

// ─── Projections ────────────────────────────────────────────────────────────

// GetBalance projects an account's balance from its history. Pure read,
// no side effects; reflects every entry acknowledged before the read began.
func (e *Engine) GetBalance(ctx context.Context, accountID string) (domain.Balance, error) {
	history, version, err := e.store.History(ctx, accountID)
	if err != nil {
		return domain.Balance{}, err
	}
	if version == 0 {
		return domain.Balance{}, domain.ErrAccountNotFound
	}
	return domain.ComputeBalance(accountID, history), nil
}

// History returns an account's entries in append order.
func (e *Engine) History(ctx context.Context, accountID string) ([]domain.LedgerEntry, error) {
	history, version, err := e.store.History(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, domain.ErrAccountNotFound
	}
	return history, nil
}

// PoolBudget projects the global fund: total added, total allocated across
// all accounts, and the remainder available for new allocations.
func (e *Engine) PoolBudget(ctx context.Context) (domain.PoolBudget, error) {
	e.poolMu.Lock()
	defer e.poolMu.Unlock()
	return e.poolBudgetLocked(ctx)
}

// Summary aggregates all accounts for the admin dashboard.
func (e *Engine) Summary(ctx context.Context) (domain.Summary, error) {
	accounts, err := e.store.Accounts(ctx)
	if err != nil {
		return domain.Summary{}, err
	}
	adds, err := e.store.PoolAdditions(ctx)
	if err != nil {
		return domain.Summary{}, err
	}

	sum := domain.Summary{
		TotalFunds:     decimal.Zero,
		TotalAllocated: decimal.Zero,
		TotalUsed:      decimal.Zero,
		TotalRemaining: decimal.Zero,
		AccountCount:   len(accounts),
	}
	for _, a := range adds {
		sum.TotalFunds = sum.TotalFunds.Add(a.Amount)
	}
	for _, id := range accounts {
		history, _, err := e.store.History(ctx, id)
		if err != nil {
			return domain.Summary{}, err
		}
		bal := domain.ComputeBalance(id, history)
		sum.TotalAllocated = sum.TotalAllocated.Add(bal.TotalAllocated)
		sum.TotalUsed = sum.TotalUsed.Add(bal.Used)
		sum.TotalRemaining = sum.TotalRemaining.Add(bal.Remaining)
	}
	return sum, nil
}

// Accounts lists every account with at least one ledger entry.
func (e *Engine) Accounts(ctx context.Context) ([]string, error) {
	return e.store.Accounts(ctx)
}

// ─── Internals ──────────────────────────────────────────────────────────────

// decideFunc validates a command against the current history and, when the
// command is accepted, produces the entry to append. Returning an error
// rejects the command with no state change.
type decideFunc func(history []domain.LedgerEntry, bal domain.Balance) (domain.LedgerEntry, error)

// mutate runs the read-check-append cycle under the account's write lock,
// retrying store-level CAS conflicts with exponential backoff. Validation
// and invariant errors are never retried.
func (e *Engine) mutate(ctx context.Context, op, accountID string, decide decideFunc) (domain.LedgerEntry, error) {
	timer := prometheus.NewTimer(opDuration.WithLabelValues(op))
	defer timer.ObserveDuration()

	lock := e.lockFor(accountID)
	lock.Lock()
	defer lock.Unlock()

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			casRetries.WithLabelValues(op).Inc()
			if err := sleepCtx(ctx, e.cfg.RetryBackoff<<(attempt-1)); err != nil {
				return domain.LedgerEntry{}, err
			}
		}

		history, version, err := e.store.History(ctx, accountID)
		if err != nil {
			opsTotal.WithLabelValues(op, outcomeError).Inc()
			return domain.LedgerEntry{}, err
		}

		entry, err := decide(history, domain.ComputeBalance(accountID, history))
		if err != nil {
			return domain.LedgerEntry{}, e.reject(op, err)
		}

		err = e.store.AppendEntry(ctx, entry, version)
		if err == nil {
			opsTotal.WithLabelValues(op, outcomeOK).Inc()
			return entry, nil
		}
		if !errors.Is(err, domain.ErrConcurrentModification) {
			opsTotal.WithLabelValues(op, outcomeError).Inc()
			return domain.LedgerEntry{}, err
		}
		if attempt >= e.cfg.MaxRetries {
			opsTotal.WithLabelValues(op, outcomeConflict).Inc()
			return domain.LedgerEntry{}, fmt.Errorf("%s on account %s: %w", op, accountID, domain.ErrOperationConflict)
		}
	}
}

func (e *Engine) newEntry(accountID string, kind domain.EntryKind, amount decimal.Decimal, actor domain.Actor, note string) domain.LedgerEntry {
	return domain.LedgerEntry{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Kind:      kind,
		Amount:    amount,
		Actor:     actor,
		Note:      note,
		Timestamp: time.Now().UTC(),
	}
}

// poolBudgetLocked computes the pool projection. Caller holds poolMu.
func (e *Engine) poolBudgetLocked(ctx context.Context) (domain.PoolBudget, error) {
	adds, err := e.store.PoolAdditions(ctx)
	if err != nil {
		return domain.PoolBudget{}, err
	}
	added := decimal.Zero
	for _, a := range adds {
		added = added.Add(a.Amount)
	}

	accounts, err := e.store.Accounts(ctx)
	if err != nil {
		return domain.PoolBudget{}, err
	}
	allocated := decimal.Zero
	for _, id := range accounts {
		history, _, err := e.store.History(ctx, id)
		if err != nil {
			return domain.PoolBudget{}, err
		}
		allocated = allocated.Add(domain.ComputeBalance(id, history).TotalAllocated)
	}

	return domain.PoolBudget{
		TotalAdded:     added,
		TotalAllocated: allocated,
		Remaining:      added.Sub(allocated),
	}, nil
}

func (e *Engine) lockFor(accountID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[accountID] = l
	}
	return l
}

// reject counts a rejected command and passes the error through unchanged.
func (e *Engine) reject(op string, err error) error {
	opsTotal.WithLabelValues(op, outcomeRejected).Inc()
	return err
}

// audit emits one activity record. Failures are logged and swallowed — a
// sink outage must never roll back the mutation it describes.
func (e *Engine) audit(ctx context.Context, action domain.ActivityAction, actor domain.Actor, details map[string]string) {
	if e.activity == nil {
		return
	}
	entry := domain.ActivityLogEntry{
		ID:        uuid.NewString(),
		Action:    action,
		Details:   details,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
	}
	if err := e.activity.Record(ctx, entry); err != nil {
		log.Printf("activity log write failed (action=%s): %v", action, err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
