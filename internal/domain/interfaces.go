package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the ledger engine depends on them.

// RecordStore is the append-only, per-account keyed store of ledger entries.
// Appends use optimistic concurrency: the caller passes the history version
// it read, and the store fails with ErrConcurrentModification if the
// account's history changed since.
type RecordStore interface {
	// AppendEntry durably appends one entry. expectedVersion is the version
	// returned by the History read the caller validated against.
	AppendEntry(ctx context.Context, entry LedgerEntry, expectedVersion int64) error

	// History returns an account's entries in append order plus the current
	// version. A never-seen account yields an empty history at version 0.
	History(ctx context.Context, accountID string) ([]LedgerEntry, int64, error)

	// Accounts lists every account that has at least one entry.
	Accounts(ctx context.Context) ([]string, error)

	// PoolAdditions returns all pool fund additions in append order.
	PoolAdditions(ctx context.Context) ([]PoolAddition, error)

	// AppendPoolAddition durably appends one pool funding record.
	AppendPoolAddition(ctx context.Context, add PoolAddition) error
}

// ActivitySink receives one audit record per successful mutation. Writes are
// fire-and-forget from the engine's perspective: a sink failure must never
// roll back the ledger mutation it describes.
type ActivitySink interface {
	Record(ctx context.Context, entry ActivityLogEntry) error
}
