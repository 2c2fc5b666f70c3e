// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Identifiers & Roles ────────────────────────────────────────────────────

// Actor identifies who performed an operation. The engine trusts that the
// caller resolved and authorized the identity before invoking it.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Role tags an actor's authorization level. Authorization itself happens
// upstream; the role is carried into the audit trail.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleSubAdmin Role = "sub_admin"
	RoleSystem   Role = "system"
)

// ─── Ledger Entries ─────────────────────────────────────────────────────────

// EntryKind discriminates the ledger entry union.
type EntryKind string

const (
	EntryAllocation EntryKind = "allocation"
	EntryReversal   EntryKind = "reversal"
	EntryPurchase   EntryKind = "purchase"
	EntryReturn     EntryKind = "return"
)

// LedgerEntry is an immutable record appended to an account's history.
// Entries are never mutated or removed; corrections are made by appending
// compensating entries (reversals, returns).
type LedgerEntry struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Kind      EntryKind       `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	RefID     string          `json:"ref_id,omitempty"` // reversal → referenced allocation
	Items     []LineItem      `json:"items,omitempty"`  // purchase only
	Actor     Actor           `json:"actor"`
	Note      string          `json:"note,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// LineItem is a single cart line within a purchase.
type LineItem struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`
}

// Total returns unit price times quantity.
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(li.Quantity))
}

// CartTotal sums all line item totals.
func CartTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.Total())
	}
	return total
}

// ─── Balance Projection ─────────────────────────────────────────────────────

// Balance is the derived state of one account. It is always recomputed from
// the entry history — there is no stored balance that can drift out of sync.
type Balance struct {
	AccountID      string          `json:"account_id"`
	TotalAllocated decimal.Decimal `json:"total_allocated"`
	Used           decimal.Decimal `json:"used"`
	Remaining      decimal.Decimal `json:"remaining"`
	UsagePercent   int             `json:"usage_percent"`
}

// ComputeBalance is the single canonical balance projection. Allocations grow
// the allocated total; reversals and returns shrink it; purchases grow used.
// UsagePercent is 0 for an account with no allocation (never NaN or Inf).
func ComputeBalance(accountID string, entries []LedgerEntry) Balance {
	allocated := decimal.Zero
	used := decimal.Zero
	for _, e := range entries {
		switch e.Kind {
		case EntryAllocation:
			allocated = allocated.Add(e.Amount)
		case EntryReversal, EntryReturn:
			allocated = allocated.Sub(e.Amount)
		case EntryPurchase:
			used = used.Add(e.Amount)
		}
	}
	return Balance{
		AccountID:      accountID,
		TotalAllocated: allocated,
		Used:           used,
		Remaining:      allocated.Sub(used),
		UsagePercent:   usagePercent(used, allocated),
	}
}

func usagePercent(used, allocated decimal.Decimal) int {
	if !allocated.IsPositive() {
		return 0
	}
	pct := used.Div(allocated).Mul(decimal.NewFromInt(100)).Round(0)
	return int(pct.IntPart())
}

// ─── Allocation State Machine ───────────────────────────────────────────────

// AllocationState tracks how much of an allocation has been reversed.
// Transitions are monotonic: Active → PartiallyReversed → FullyReversed.
type AllocationState string

const (
	AllocationActive            AllocationState = "active"
	AllocationPartiallyReversed AllocationState = "partially_reversed"
	AllocationFullyReversed     AllocationState = "fully_reversed"
)

// ReversedAgainst sums the reversal amounts referencing the given allocation.
func ReversedAgainst(entries []LedgerEntry, allocationID string) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		if e.Kind == EntryReversal && e.RefID == allocationID {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}

// StateOfAllocation derives the state machine position of one allocation
// entry from the history it belongs to.
func StateOfAllocation(entries []LedgerEntry, alloc LedgerEntry) AllocationState {
	reversed := ReversedAgainst(entries, alloc.ID)
	switch {
	case reversed.GreaterThanOrEqual(alloc.Amount):
		return AllocationFullyReversed
	case reversed.IsPositive():
		return AllocationPartiallyReversed
	default:
		return AllocationActive
	}
}

// ─── Pool Budget ────────────────────────────────────────────────────────────

// PoolAddition records an admin funding the global pool.
type PoolAddition struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Actor     Actor           `json:"actor"`
	Note      string          `json:"note,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// PoolBudget is the derived state of the global fund.
type PoolBudget struct {
	TotalAdded     decimal.Decimal `json:"total_added"`
	TotalAllocated decimal.Decimal `json:"total_allocated"`
	Remaining      decimal.Decimal `json:"remaining"`
}

// ─── Summary ────────────────────────────────────────────────────────────────

// Summary aggregates the whole system for the admin dashboard.
type Summary struct {
	TotalFunds     decimal.Decimal `json:"total_funds"`
	TotalAllocated decimal.Decimal `json:"total_allocated"`
	TotalUsed      decimal.Decimal `json:"total_used"`
	TotalRemaining decimal.Decimal `json:"total_remaining"`
	AccountCount   int             `json:"account_count"`
}

// ─── Activity Log ───────────────────────────────────────────────────────────

// ActivityAction tags an audit trail record.
type ActivityAction string

const (
	ActionFundsAdded         ActivityAction = "funds_added"
	ActionAllocationMade     ActivityAction = "allocation_made"
	ActionAllocationReversed ActivityAction = "allocation_reversed"
	ActionPurchaseCompleted  ActivityAction = "purchase_completed"
	ActionFundsReturned      ActivityAction = "funds_returned"
)

// ActivityLogEntry is an append-only audit record emitted after every
// successful mutation. The engine only writes these; it never reads them back.
type ActivityLogEntry struct {
	ID        string            `json:"id"`
	Action    ActivityAction    `json:"action"`
	Details   map[string]string `json:"details,omitempty"`
	Actor     Actor             `json:"actor"`
	Timestamp time.Time         `json:"timestamp"`
}

// ─── Item Catalog ───────────────────────────────────────────────────────────

// CatalogItem is a predefined purchasable item sub-admins can pick from.
type CatalogItem struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}
