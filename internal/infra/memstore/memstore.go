// Package memstore is an in-memory RecordStore. It backs tests and
// ephemeral runs; durable deployments use the sqlite store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/budgetpool/budgetpool/internal/domain"
)

// Store holds per-account entry histories and pool additions in memory.
// The version of an account is the length of its history; appends are
// compare-and-swap on that version.
type Store struct {
	mu        sync.RWMutex
	histories map[string][]domain.LedgerEntry
	pool      []domain.PoolAddition
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{histories: make(map[string][]domain.LedgerEntry)}
}

// AppendEntry appends one entry if the account's history is still at
// expectedVersion, otherwise fails with ErrConcurrentModification.
func (s *Store) AppendEntry(ctx context.Context, entry domain.LedgerEntry, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.histories[entry.AccountID]
	if int64(len(history)) != expectedVersion {
		return domain.ErrConcurrentModification
	}
	s.histories[entry.AccountID] = append(history, entry)
	return nil
}

// History returns a copy of the account's entries in append order and the
// current version. Unknown accounts yield an empty history at version 0.
func (s *Store) History(ctx context.Context, accountID string) ([]domain.LedgerEntry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.histories[accountID]
	out := make([]domain.LedgerEntry, len(history))
	copy(out, history)
	return out, int64(len(history)), nil
}

// Accounts lists accounts with at least one entry, sorted for determinism.
func (s *Store) Accounts(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.histories))
	for id, history := range s.histories {
		if len(history) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// PoolAdditions returns all pool funding records in append order.
func (s *Store) PoolAdditions(ctx context.Context) ([]domain.PoolAddition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PoolAddition, len(s.pool))
	copy(out, s.pool)
	return out, nil
}

// AppendPoolAddition appends one pool funding record.
func (s *Store) AppendPoolAddition(ctx context.Context, add domain.PoolAddition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pool = append(s.pool, add)
	return nil
}
