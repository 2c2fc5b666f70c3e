package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/budgetpool/budgetpool/internal/domain"
)

// ─── RecordStore Implementation ─────────────────────────────────────────────
// DB satisfies domain.RecordStore. The version of an account is the number
// of its entries; AppendEntry inserts at seq = expectedVersion+1 and treats
// a primary-key collision as a concurrent modification.

// AppendEntry durably appends one ledger entry with optimistic concurrency.
func (d *DB) AppendEntry(ctx context.Context, entry domain.LedgerEntry, expectedVersion int64) error {
	itemsJSON := ""
	if len(entry.Items) > 0 {
		b, err := json.Marshal(entry.Items)
		if err != nil {
			return fmt.Errorf("marshal items: %w", err)
		}
		itemsJSON = string(b)
	}

	res, err := d.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO ledger_entries
			(account_id, seq, id, kind, amount, ref_id, items_json, actor_id, actor_role, note, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.AccountID, expectedVersion+1, entry.ID, string(entry.Kind), entry.Amount.String(),
		entry.RefID, itemsJSON, entry.Actor.ID, string(entry.Actor.Role), entry.Note,
		entry.Timestamp.Format(time.RFC3339Nano))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Another writer took this seq since our read.
		return domain.ErrConcurrentModification
	}
	return nil
}

// History returns an account's entries in append order plus the version.
func (d *DB) History(ctx context.Context, accountID string) ([]domain.LedgerEntry, int64, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, kind, amount, ref_id, items_json, actor_id, actor_role, note, ts
		FROM ledger_entries WHERE account_id = ? ORDER BY seq
	`, accountID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var kind, role, amountStr, tsStr, itemsJSON string
		if err := rows.Scan(&e.ID, &kind, &amountStr, &e.RefID, &itemsJSON,
			&e.Actor.ID, &role, &e.Note, &tsStr); err != nil {
			return nil, 0, err
		}
		e.AccountID = accountID
		e.Kind = domain.EntryKind(kind)
		e.Actor.Role = domain.Role(role)
		if e.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, 0, fmt.Errorf("parse amount %q: %w", amountStr, err)
		}
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, tsStr); err != nil {
			return nil, 0, fmt.Errorf("parse timestamp %q: %w", tsStr, err)
		}
		if itemsJSON != "" {
			if err := json.Unmarshal([]byte(itemsJSON), &e.Items); err != nil {
				return nil, 0, fmt.Errorf("unmarshal items: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, int64(len(entries)), nil
}

// Accounts lists every account with at least one ledger entry.
func (d *DB) Accounts(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT DISTINCT account_id FROM ledger_entries ORDER BY account_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PoolAdditions returns the pool funding history in append order.
func (d *DB) PoolAdditions(ctx context.Context) ([]domain.PoolAddition, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, amount, actor_id, actor_role, note, ts
		FROM pool_additions ORDER BY seq
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var adds []domain.PoolAddition
	for rows.Next() {
		var (
			a                domain.PoolAddition
			role             string
			amountStr, tsStr string
		)
		if err := rows.Scan(&a.ID, &amountStr, &a.Actor.ID, &role, &a.Note, &tsStr); err != nil {
			return nil, err
		}
		a.Actor.Role = domain.Role(role)
		if a.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amountStr, err)
		}
		if a.Timestamp, err = time.Parse(time.RFC3339Nano, tsStr); err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", tsStr, err)
		}
		adds = append(adds, a)
	}
	return adds, rows.Err()
}

// AppendPoolAddition durably appends one pool funding record.
func (d *DB) AppendPoolAddition(ctx context.Context, add domain.PoolAddition) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO pool_additions (id, amount, actor_id, actor_role, note, ts)
		VALUES (?, ?, ?, ?, ?, ?)
	`, add.ID, add.Amount.String(), add.Actor.ID, string(add.Actor.Role), add.Note,
		add.Timestamp.Format(time.RFC3339Nano))
	return err
}
